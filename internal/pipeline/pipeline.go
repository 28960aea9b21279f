// Package pipeline 驱动单次转账的四阶段状态机：
//
//	Idle → BalanceRefreshed → FeesComputed → GasEstimated
//	     → Proved → Populated → Submitted → Terminal
//
// 一次 Run 独占自己的 bundle 和 FeeQuote，不与任何并发尝试共享；
// 同一钱包的并发转账由上层服务串行化。
package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"shield-core/internal/fees"
	"shield-core/internal/invariant"
	"shield-core/internal/relayer"
	"shield-core/internal/sdk"
	"shield-core/internal/submitter"
	"shield-core/pkg/amount"
	"shield-core/pkg/logger"
	"shield-core/pkg/monitor"
	"shield-core/pkg/prices"
)

const (
	// gasPadPercent 估算值的安全加成。
	gasPadPercent = 20
	// minGasLimit 拥堵 L2 上长期低估的兜底下限。
	minGasLimit = 1_200_000
)

// PrivacyLevel 描述最终提交路径暴露了多少链上关联。
type PrivacyLevel string

const (
	PrivacyShielded PrivacyLevel = "shielded" // relayer 广播，公开地址不上链
	PrivacyReduced  PrivacyLevel = "reduced"  // 自签直发，公开地址可见
)

// GasPriceSource 取链上建议 gas price，ethclient 天然满足。
type GasPriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// RelaySource 是管线需要的 relayer 旁路视图。
type RelaySource interface {
	CheckHealth(ctx context.Context) bool
	Info(ctx context.Context, chainID uint64) (*relayer.RelayerInfo, error)
}

// Dispatcher 终末派发，由 submitter.Submitter 实现。
type Dispatcher interface {
	Submit(ctx context.Context, req *submitter.Request) (*submitter.Result, error)
}

// Request 一次转账请求。Amount 是总额，费用从中扣除。
type Request struct {
	WalletID         string
	ChainID          uint64
	TokenAddress     common.Address // 零地址为原生币
	RecipientAddress common.Address
	Amount           *amount.Amount
	FeeTokenDecimals uint8
}

// Result 终态结果。
type Result struct {
	TransactionHash string
	UsedRelayer     bool
	PrivacyLevel    PrivacyLevel
	Quote           *fees.FeeQuote
}

// Pipeline 把外部协作方绑定成一条可执行的提交流水线。
type Pipeline struct {
	engine     sdk.Engine
	relay      RelaySource
	prices     prices.Source
	gasPrice   GasPriceSource
	dispatcher Dispatcher
	senderAddr common.Address // 自签公开钱包地址，用于自指向校验
}

func New(engine sdk.Engine, relay RelaySource, priceSrc prices.Source, gasPrice GasPriceSource, dispatcher Dispatcher, senderAddr common.Address) *Pipeline {
	return &Pipeline{
		engine:     engine,
		relay:      relay,
		prices:     priceSrc,
		gasPrice:   gasPrice,
		dispatcher: dispatcher,
		senderAddr: senderAddr,
	}
}

// Run 执行一次完整的提交尝试。progress 非 nil 时接收证明进度，
// 发送永不阻塞管线。返回的错误都带阶段上下文。
func (p *Pipeline) Run(ctx context.Context, req *Request, progress chan<- sdk.ProgressEvent) (*Result, error) {
	chain := fmt.Sprintf("%d", req.ChainID)

	// BalanceRefreshed: 费用计算和证明必须基于当前可花余额
	if err := p.engine.RefreshBalances(ctx, req.ChainID, []string{req.WalletID}); err != nil {
		return nil, p.fail(chain, "balance_refresh", err)
	}

	// FeesComputed: 健康检查决定路径，报价和不变式都在任何密码学工作之前
	useRelayer := p.relay.CheckHealth(ctx)
	if !useRelayer {
		logger.Warn("relayer unhealthy, routing directly to self-sign", zap.String("chain", chain))
	}

	rawGasPrice, err := p.gasPrice.SuggestGasPrice(ctx)
	if err != nil {
		return nil, p.fail(chain, "fees", err)
	}
	guarded := fees.ApplyGasPriceGuard(req.ChainID, rawGasPrice)
	gas := &sdk.GasDetails{Type: sdk.GasTypeLegacy, GasPrice: guarded}

	var (
		quote  *fees.FeeQuote
		bundle *sdk.TransferBundle
		bcFee  *sdk.BroadcasterFee
	)

	if useRelayer {
		info, err := p.relay.Info(ctx, req.ChainID)
		if err != nil {
			// 健康但取不到自述信息，等同不健康
			logger.Warn("relayer info unavailable, degrading to self-sign", zap.Error(err))
			useRelayer = false
		} else {
			quote, bundle, bcFee, err = p.quoteRelayerPath(ctx, req, guarded, info)
			if err != nil {
				return nil, p.fail(chain, "fees", err)
			}
		}
	}
	if !useRelayer {
		quote, err = fees.QuoteForSelfSign(req.Amount)
		if err != nil {
			return nil, p.fail(chain, "fees", err)
		}
		if err := invariant.AssertNotSelfTargeting(p.senderAddr.Hex(), req.RecipientAddress.Hex(), ""); err != nil {
			return nil, p.fail(chain, "fees", err)
		}
		if err := invariant.AssertConservation(req.Amount, quote.RecipientAmount,
			quote.RelayerFee, quote.GasReclamationFee, quote.ProtocolFee); err != nil {
			return nil, p.fail(chain, "fees", err)
		}
		bundle = buildSelfSignBundle(req, quote)
		bcFee = nil
	}

	// relayer 框架证明用 swpw=false，自签框架用 true
	sendWithPublicWallet := !useRelayer

	// GasEstimated: 估算只影响执行参数，费额已冻结在 quote 里
	estimate, err := p.engine.EstimateUnprovenGas(ctx, bundle, bcFee, gas)
	if err != nil {
		return nil, p.fail(chain, "gas_estimate", err)
	}
	gas.GasEstimate = new(big.Int).SetUint64(padGasEstimate(estimate))

	// Proved: 指纹先于证明记录，bundle 从此不许再动
	atProof := invariant.ComputeFingerprint(bundle, bcFee, sendWithPublicWallet)

	proofStart := time.Now()
	err = p.engine.GenerateProof(ctx, bundle, bcFee, sendWithPublicWallet, func(ev sdk.ProgressEvent) {
		if progress == nil {
			return
		}
		select {
		case progress <- ev:
		default: // 消费方慢就丢事件，管线不等 UI
		}
	})
	if err != nil {
		return nil, p.fail(chain, "prove", err)
	}
	monitor.Business.ProofDuration.WithLabelValues(chain).Observe(time.Since(proofStart).Seconds())

	// Populated: 填充之前重算指纹，漂移则丢弃证明，绝不提交
	atPopulate := invariant.ComputeFingerprint(bundle, bcFee, sendWithPublicWallet)
	if err := invariant.AssertParity(atProof, atPopulate); err != nil {
		return nil, p.fail(chain, "populate", err)
	}

	populated, err := p.engine.PopulateTransaction(ctx, bundle, bcFee, sendWithPublicWallet, gas)
	if err != nil {
		return nil, p.fail(chain, "populate", err)
	}

	// Submitted
	subRes, err := p.dispatcher.Submit(ctx, &submitter.Request{
		ChainID:      req.ChainID,
		UseRelayer:   useRelayer,
		Populated:    populated,
		Gas:          gas,
		TokenAddress: req.TokenAddress,
		Amount:       req.Amount,
		FeeDetails: relayer.FeeDetails{
			RelayerFee:        quote.RelayerFee.String(),
			GasReclamationFee: quote.GasReclamationFee.String(),
			FeeTokenAddress:   req.TokenAddress.Hex(),
		},
	})
	if err != nil {
		return nil, p.fail(chain, "submit", err)
	}

	level := PrivacyReduced
	if subRes.UsedRelayer {
		level = PrivacyShielded
	}
	monitor.Business.TransferSubmittedTotal.WithLabelValues(chain, pathLabel(subRes.UsedRelayer)).Inc()
	recordFeeUnits(chain, quote)

	logger.Info("transfer submitted",
		zap.String("chain", chain),
		zap.String("tx_hash", subRes.TransactionHash),
		zap.Bool("used_relayer", subRes.UsedRelayer),
		zap.String("recipient_amount", quote.RecipientAmount.String()))

	return &Result{
		TransactionHash: subRes.TransactionHash,
		UsedRelayer:     subRes.UsedRelayer,
		PrivacyLevel:    level,
		Quote:           quote,
	}, nil
}

// quoteRelayerPath 计算 relayer 路径的报价并组装 bundle。
// gas 回收费基于守卫后的 gas price 和标称 gas 用量，在证明前定死。
func (p *Pipeline) quoteRelayerPath(ctx context.Context, req *Request, guardedGasPrice *big.Int, info *relayer.RelayerInfo) (*fees.FeeQuote, *sdk.TransferBundle, *sdk.BroadcasterFee, error) {
	nativePrice, err := p.prices.NativePriceUSD(ctx, req.ChainID)
	if err != nil {
		return nil, nil, nil, err
	}
	feeTokenPrice, err := p.prices.TokenPriceUSD(ctx, req.ChainID, req.TokenAddress)
	if err != nil {
		return nil, nil, nil, err
	}

	gasCost := new(big.Int).Mul(guardedGasPrice, big.NewInt(fees.DefaultRelayGasEstimate))
	quote, err := fees.QuoteForRelayer(req.Amount, gasCost, nativePrice, feeTokenPrice, req.FeeTokenDecimals)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := invariant.AssertNotSelfTargeting(p.senderAddr.Hex(), req.RecipientAddress.Hex(), info.ShieldedAddress); err != nil {
		return nil, nil, nil, err
	}
	if err := invariant.AssertConservation(req.Amount, quote.RecipientAmount,
		quote.RelayerFee, quote.GasReclamationFee, quote.ProtocolFee); err != nil {
		return nil, nil, nil, err
	}

	bundle, bcFee, err := buildRelayerBundle(req, quote, info)
	if err != nil {
		return nil, nil, nil, err
	}
	return quote, bundle, bcFee, nil
}

// padGasEstimate 加 20% 安全边际并套用全局下限。
func padGasEstimate(estimate uint64) uint64 {
	padded := estimate * (100 + gasPadPercent) / 100
	if padded < minGasLimit {
		return minGasLimit
	}
	return padded
}

func (p *Pipeline) fail(chain, stage string, err error) error {
	monitor.Business.TransferFailedTotal.WithLabelValues(chain, stage).Inc()
	logger.Error("transfer attempt aborted",
		zap.String("chain", chain),
		zap.String("stage", stage),
		zap.Error(err))
	return fmt.Errorf("%s: %w", stage, err)
}

func pathLabel(usedRelayer bool) string {
	if usedRelayer {
		return "relayed"
	}
	return "self_signed"
}

func recordFeeUnits(chain string, q *fees.FeeQuote) {
	for kind, v := range map[string]*amount.Amount{
		"relayer":  q.RelayerFee,
		"gas":      q.GasReclamationFee,
		"protocol": q.ProtocolFee,
	} {
		f, _ := new(big.Float).SetInt(v).Float64()
		monitor.Business.FeeUnitsTotal.WithLabelValues(chain, kind).Add(f)
	}
}
