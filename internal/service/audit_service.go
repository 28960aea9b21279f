package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"shield-core/internal/event"
	"shield-core/internal/service/mq"
	"shield-core/pkg/logger"
)

// AuditService 消费终态事件并输出结构化审计日志。
// 对账和通知等重量级下游走各自的消费组，这里只保底留痕。
type AuditService struct {
	consumer mq.Consumer
}

func NewAuditService(consumer mq.Consumer) *AuditService {
	return &AuditService{consumer: consumer}
}

// Start 启动消费。RedisConsumer 的 Subscribe 会阻塞，放到 goroutine 里跑。
func (s *AuditService) Start(ctx context.Context) {
	go func() {
		err := s.consumer.Subscribe(ctx, event.TopicTransfer, s.handle)
		if err != nil {
			logger.Error("audit consumer failed to start", zap.Error(err))
		}
	}()
}

func (s *AuditService) handle(msg *mq.Message) error {
	var ev event.TransferSettledEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		// 坏事件记下来丢弃，不卡消费组
		logger.Error("malformed transfer event", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	logger.Info("transfer settled",
		zap.Uint64("attempt_id", ev.AttemptID),
		zap.String("wallet_id", ev.WalletID),
		zap.Uint64("chain_id", ev.ChainID),
		zap.String("status", ev.Status),
		zap.String("tx_hash", ev.TxHash),
		zap.Bool("used_relayer", ev.UsedRelayer))
	return nil
}
