package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"shield-core/internal/pipeline"
	"shield-core/pkg/logger"
	"shield-core/pkg/monitor"
	"shield-core/pkg/prices"
	"shield-core/pkg/utils/lock"
)

// CronService 后台周期任务：relayer 健康巡检和价格预热。
type CronService struct {
	cron    *cron.Cron
	redis   *redis.Client
	relay   pipeline.RelaySource
	prices  prices.Source
	chainID uint64
}

func NewCronService(rdb *redis.Client, relay pipeline.RelaySource, priceSrc prices.Source, chainID uint64) *CronService {
	return &CronService{
		cron:    cron.New(),
		redis:   rdb,
		relay:   relay,
		prices:  priceSrc,
		chainID: chainID,
	}
}

func (s *CronService) Start() {
	_, _ = s.cron.AddFunc("@every 1m", s.PollRelayerHealth)
	_, _ = s.cron.AddFunc("@every 30s", s.WarmNativePrice)

	s.cron.Start()
	logger.Info("Cron Service started")
}

func (s *CronService) Stop() {
	s.cron.Stop()
	logger.Info("Cron Service stopped")
}

// PollRelayerHealth 巡检 relayer 可用性并更新 gauge。
// 巡检结果只进监控，提交路径每次仍然现场探测。
func (s *CronService) PollRelayerHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v := 0.0
	if s.relay.CheckHealth(ctx) {
		v = 1.0
	}
	monitor.Business.RelayerHealthy.WithLabelValues("default").Set(v)
}

// WarmNativePrice 预热原生币报价缓存，多实例下锁住只跑一个。
func (s *CronService) WarmNativePrice() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lockKey := "cron:lock:warm_price"
	locker := lock.NewRedisLock(s.redis)
	locked, err := locker.Acquire(ctx, lockKey, 10*time.Second)
	if err != nil || !locked {
		logger.Debug("WarmNativePrice: lock held elsewhere, skipping")
		return
	}
	defer locker.Release(ctx, lockKey)

	if _, err := s.prices.NativePriceUSD(ctx, s.chainID); err != nil {
		logger.Debug("native price warm failed")
	}
}
