package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Relayer RelayerConfig `mapstructure:"relayer"`
	Prices  PricesConfig  `mapstructure:"prices"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// ChainConfig 目标链配置。RpcUrl 只用于取 gas price 和自签广播，
// 余额扫描和证明走 Engine 边界。
type ChainConfig struct {
	ChainID uint64 `mapstructure:"chain_id"`
	RpcUrl  string `mapstructure:"rpc_url"`
}

// EngineConfig points at the shielded-pool engine sidecar.
type EngineConfig struct {
	URL            string `mapstructure:"url"`
	RequestTimeout int    `mapstructure:"request_timeout_sec"` // proof calls can take minutes
}

type RelayerConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	HealthTimeoutSec int    `mapstructure:"health_timeout_sec"`
	QuoteTimeoutSec  int    `mapstructure:"quote_timeout_sec"`
	SubmitTimeoutSec int    `mapstructure:"submit_timeout_sec"`
}

type PricesConfig struct {
	URL    string `mapstructure:"url"`
	TTLSec int    `mapstructure:"ttl_sec"`
}

type WalletConfig struct {
	KeystorePath string `mapstructure:"keystore_path"`
	Password     string `mapstructure:"password"` // 通常通过环境变量 WALLET_PASSWORD 传入
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "shield_user")
	viper.SetDefault("db.password", "shield_password")
	viper.SetDefault("db.name", "shield_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.rpc_url", "https://cloudflare-eth.com")

	viper.SetDefault("engine.url", "http://localhost:9040")
	viper.SetDefault("engine.request_timeout_sec", 600)

	viper.SetDefault("relayer.base_url", "http://localhost:9050")
	viper.SetDefault("relayer.health_timeout_sec", 2)
	viper.SetDefault("relayer.quote_timeout_sec", 3)
	viper.SetDefault("relayer.submit_timeout_sec", 120)

	viper.SetDefault("prices.url", "http://localhost:9060")
	viper.SetDefault("prices.ttl_sec", 30)

	viper.SetDefault("wallet.keystore_path", "wallet.json")
}
