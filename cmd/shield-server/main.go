package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"shield-core/internal/handler"
	"shield-core/internal/model"
	"shield-core/internal/pipeline"
	"shield-core/internal/relayer"
	"shield-core/internal/sdk"
	"shield-core/internal/server"
	"shield-core/internal/service"
	"shield-core/internal/service/mq"
	"shield-core/internal/submitter"
	"shield-core/pkg/bip39"
	"shield-core/pkg/cache"
	"shield-core/pkg/config"
	"shield-core/pkg/database"
	"shield-core/pkg/keystore"
	"shield-core/pkg/logger"
	"shield-core/pkg/prices"
	"shield-core/pkg/utils/lock"
	"shield-core/pkg/validator"
)

// @title Shield Core API
// @version 1.0
// @description Shielded-pool transfer orchestration server

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	validator.Init()

	// 2. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. Schema 迁移 (仅开发环境)
	if config.Global.App.Env == "development" {
		logger.Info("开发环境: GORM AutoMigrate...")
		if err := db.AutoMigrate(&model.TransferAttempt{}); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	// 5. 加载自签钱包
	// keystore 里存的是助记词，派生出的公开钱包只承担降级自签
	keyJSON, err := keystore.LoadFromFile(config.Global.Wallet.KeystorePath)
	if err != nil {
		logger.Fatal("加载 keystore 失败", zap.Error(err))
	}
	mnemonic, err := keystore.DecryptSecret(keyJSON, config.Global.Wallet.Password)
	if err != nil {
		logger.Fatal("解密 keystore 失败", zap.Error(err))
	}
	seed := bip39.NewMnemonicService().MnemonicToSeed(mnemonic, "")
	privKey, err := crypto.ToECDSA(seed[:32])
	if err != nil {
		logger.Fatal("派生签名私钥失败", zap.Error(err))
	}
	signer := submitter.NewKeySigner(privKey)
	logger.Info("自签钱包已加载", zap.String("address", signer.Address().Hex()))

	// 6. 外部协作方
	ethClient, err := ethclient.Dial(config.Global.Chain.RpcUrl)
	if err != nil {
		logger.Fatal("连接链上节点失败", zap.Error(err))
	}

	engine := sdk.NewClient(config.Global.Engine.URL,
		time.Duration(config.Global.Engine.RequestTimeout)*time.Second)

	gateway := relayer.NewGateway(config.Global.Relayer.BaseURL,
		time.Duration(config.Global.Relayer.HealthTimeoutSec)*time.Second,
		time.Duration(config.Global.Relayer.QuoteTimeoutSec)*time.Second,
		time.Duration(config.Global.Relayer.SubmitTimeoutSec)*time.Second)

	// 价格源: 本地内存 L1 + Redis L2
	priceCache := cache.NewMultiLevelCache(
		cache.NewMemoryCache(time.Minute, 5*time.Minute),
		cache.NewRedisCache(rdb),
	)
	priceSrc := prices.NewCachedSource(
		prices.NewHTTPSource(config.Global.Prices.URL),
		priceCache,
		time.Duration(config.Global.Prices.TTLSec)*time.Second,
	)

	// 7. 组装管线
	dispatcher := submitter.New(gateway, signer, ethClient)
	pipe := pipeline.New(engine, gateway, priceSrc, ethClient, dispatcher, signer.Address())

	// 8. 消息队列
	var producer mq.Producer
	var consumer mq.Consumer
	if config.Global.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers)
		consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, "shield_audit_group")
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
		consumer = mq.NewRedisConsumer(rdb, "shield_audit", "audit-0")
	}

	// 9. 业务服务
	transfers := service.NewTransferService(db, lock.NewRedisLock(rdb), producer, pipe)

	auditCtx, auditCancel := context.WithCancel(context.Background())
	service.NewAuditService(consumer).Start(auditCtx)

	cronSvc := service.NewCronService(rdb, gateway, priceSrc, config.Global.Chain.ChainID)
	cronSvc.Start()

	// 10. HTTP Server
	r := server.NewHTTPRouter(handler.NewTransferHandler(transfers, config.Global.Chain.ChainID))
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r)
	app.OnStop(cronSvc.Stop)
	app.OnStop(auditCancel)

	app.Run()

	// 11. 退出后资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	ethClient.Close()
	logger.Info("系统已退出")
}
