package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shield-core/internal/event"
	"shield-core/internal/model"
	"shield-core/internal/pipeline"
	"shield-core/internal/sdk"
	"shield-core/internal/service/mq"
	"shield-core/pkg/errno"
	"shield-core/pkg/logger"
	"shield-core/pkg/utils/lock"
)

// transferLockTTL 覆盖最慢的证明生成。锁到期前流程没跑完的话，
// 引擎侧对同一花费密钥的并发证明本来也会失败，锁只是第一道闸。
const transferLockTTL = 10 * time.Minute

// Runner 是管线的最小契约，便于测试替换。
type Runner interface {
	Run(ctx context.Context, req *pipeline.Request, progress chan<- sdk.ProgressEvent) (*pipeline.Result, error)
}

// TransferService 串行化同一钱包的转账，落历史，发终态事件。
// 引擎不允许同一花费密钥并发证明，分布式锁在服务入口挡住并发。
type TransferService struct {
	db       *gorm.DB
	locker   lock.DistributedLock
	producer mq.Producer
	runner   Runner
}

func NewTransferService(db *gorm.DB, locker lock.DistributedLock, producer mq.Producer, runner Runner) *TransferService {
	return &TransferService{db: db, locker: locker, producer: producer, runner: runner}
}

// SubmitTransfer 发起一次转账。同一钱包已有尝试在途时直接拒绝，
// 不排队：费用和 gas 报价都是时间敏感的，排队等到的报价已经失效。
func (s *TransferService) SubmitTransfer(ctx context.Context, req *pipeline.Request, progress chan<- sdk.ProgressEvent) (*pipeline.Result, error) {
	lockKey := "wallet:transfer:" + req.WalletID
	locked, err := s.locker.Acquire(ctx, lockKey, transferLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errno.ErrAttemptInFlight
	}
	defer s.locker.Release(ctx, lockKey)

	attempt := &model.TransferAttempt{
		WalletID:         req.WalletID,
		ChainID:          req.ChainID,
		TokenAddress:     req.TokenAddress.Hex(),
		RecipientAddress: req.RecipientAddress.Hex(),
		GrossAmount:      req.Amount.String(),
		Status:           "PENDING",
	}
	if err := s.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, errno.ErrDatabase
	}

	res, runErr := s.runner.Run(ctx, req, progress)
	if runErr != nil {
		s.settleFailed(ctx, attempt, runErr)
		return nil, runErr
	}

	s.settleSubmitted(ctx, attempt, res)
	return res, nil
}

// History 返回某钱包最近的提交历史。
func (s *TransferService) History(ctx context.Context, walletID string, limit int) ([]model.TransferAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []model.TransferAttempt
	err := s.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errno.ErrDatabase
	}
	return rows, nil
}

func (s *TransferService) settleSubmitted(ctx context.Context, attempt *model.TransferAttempt, res *pipeline.Result) {
	updates := map[string]interface{}{
		"status":           "SUBMITTED",
		"tx_hash":          res.TransactionHash,
		"used_relayer":     res.UsedRelayer,
		"privacy_level":    string(res.PrivacyLevel),
		"recipient_amount": res.Quote.RecipientAmount.String(),
		"relayer_fee":      res.Quote.RelayerFee.String(),
		"gas_fee":          res.Quote.GasReclamationFee.String(),
		"protocol_fee":     res.Quote.ProtocolFee.String(),
	}
	if err := s.db.WithContext(ctx).Model(attempt).Updates(updates).Error; err != nil {
		logger.Error("failed to persist submitted attempt", zap.Uint64("id", attempt.ID), zap.Error(err))
	}

	s.publishSettled(ctx, attempt, res.TransactionHash, res.UsedRelayer, string(res.PrivacyLevel), "SUBMITTED")
}

func (s *TransferService) settleFailed(ctx context.Context, attempt *model.TransferAttempt, runErr error) {
	updates := map[string]interface{}{
		"status":      "FAILED",
		"fail_stage":  failStage(runErr),
		"fail_reason": runErr.Error(),
	}
	if err := s.db.WithContext(ctx).Model(attempt).Updates(updates).Error; err != nil {
		logger.Error("failed to persist failed attempt", zap.Uint64("id", attempt.ID), zap.Error(err))
	}

	s.publishSettled(ctx, attempt, "", false, "", "FAILED")
}

// publishSettled 发终态事件。事件是旁路通知，发失败只记日志不反悔落库结果。
func (s *TransferService) publishSettled(ctx context.Context, attempt *model.TransferAttempt, txHash string, usedRelayer bool, privacy, status string) {
	if s.producer == nil {
		return
	}
	payload, err := json.Marshal(event.TransferSettledEvent{
		AttemptID:    attempt.ID,
		WalletID:     attempt.WalletID,
		ChainID:      attempt.ChainID,
		TxHash:       txHash,
		UsedRelayer:  usedRelayer,
		PrivacyLevel: privacy,
		GrossAmount:  attempt.GrossAmount,
		Status:       status,
	})
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, event.TopicTransfer, attempt.WalletID, payload); err != nil {
		logger.Error("failed to publish transfer event", zap.Uint64("id", attempt.ID), zap.Error(err))
	}
}

// failStage 从管线错误里取阶段前缀，形如 "prove: ..."。
func failStage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 && i < 32 {
		return msg[:i]
	}
	return "unknown"
}
