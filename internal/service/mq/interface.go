package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID      string // 消息ID (例如 Redis Stream ID)
	Topic   string // 主题 (例如 "shield_events_transfer")
	Key     string // 分区键 (例如 WalletID), 同样用于 Kafka Partition
	Payload []byte // 消息体 (JSON)
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息
	// key: 分区键，保证同一钱包的事件有序。传空字符串则随机分区。
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// Consumer 消费者接口。终态事件的下游（对账、通知）在各自的服务里消费。
type Consumer interface {
	// Subscribe 订阅主题，handler 返回 error 表示处理失败不 ACK
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error

	Close() error
}
