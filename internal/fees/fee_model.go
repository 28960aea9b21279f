// Package fees 实现纯整数的手续费模型。
// 三种费用叠加：协议费、relayer 服务费、gas 回收费。
// 百分比费用向下取整，gas 回收费向上取整，舍入永远偏向协议一侧。
package fees

import (
	"math/big"

	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
)

const (
	// ProtocolFeeBps 屏蔽池协议在解除屏蔽时抽取的基点数。
	// 该费用由引擎在池内隐式扣除，这里计算只为守恒校验记账。
	ProtocolFeeBps = 25

	// RelayerFeeBps relayer 服务费基点数。
	RelayerFeeBps = 50

	// nativeDecimals EVM 原生币统一 18 位小数。
	nativeDecimals = 18
)

// DefaultRelayGasEstimate 是计算 gas 回收费时使用的标称 gas 用量。
// 费用在证明之前就要定死，真实估算值只影响执行参数，不影响费额。
const DefaultRelayGasEstimate = 1_200_000

// FeeQuote 一次提交尝试的完整费用拆分。计算完成后不可变。
type FeeQuote struct {
	RelayerFee        *amount.Amount
	GasReclamationFee *amount.Amount
	ProtocolFee       *amount.Amount
	RecipientAmount   *amount.Amount
}

// CombinedFee 返回向用户收取的全部费用之和（含隐式协议费）。
func (q *FeeQuote) CombinedFee() *amount.Amount {
	return amount.Sum(q.RelayerFee, q.GasReclamationFee, q.ProtocolFee)
}

// ProtocolFee computes the implicit pool fee, floor-rounded.
func ProtocolFee(gross *amount.Amount) *amount.Amount {
	return amount.Bps(gross, ProtocolFeeBps)
}

// RelayerFee computes the relayer service fee, floor-rounded.
func RelayerFee(gross *amount.Amount) *amount.Amount {
	return amount.Bps(gross, RelayerFeeBps)
}

// GasReclamationFee 把原生币 gas 成本折算成费用代币数量。
//
//	tokenUnits = ceil(gasCostWei * nativePrice * 10^dec / (feePrice * 10^18))
//
// 两个价格都是 1e8 定标的美元整数价。向上取整保证 relayer 不被少付；
// 价格缺失或为零直接报 ErrPriceUnavailable，绝不按零收费。
func GasReclamationFee(gasCostNative, nativePriceUSD, feeTokenPriceUSD *amount.Amount, feeTokenDecimals uint8) (*amount.Amount, error) {
	if nativePriceUSD == nil || nativePriceUSD.Sign() <= 0 {
		return nil, errno.ErrPriceUnavailable
	}
	if feeTokenPriceUSD == nil || feeTokenPriceUSD.Sign() <= 0 {
		return nil, errno.ErrPriceUnavailable
	}

	num := new(big.Int).Mul(gasCostNative, nativePriceUSD)
	num.Mul(num, amount.Pow10(feeTokenDecimals))

	den := new(big.Int).Mul(feeTokenPriceUSD, amount.Pow10(nativeDecimals))

	return amount.CeilDiv(num, den), nil
}

// ValidateCombinedFee 校验费用总和严格小于总额。
// 等于也算失败：收款人拿到零等价于资金错配。
func ValidateCombinedFee(combined, gross *amount.Amount) error {
	if combined.Cmp(gross) >= 0 {
		return errno.ErrFeeExceedsAmount
	}
	return nil
}

// QuoteForRelayer 计算 relayer 协助路径的费用拆分。
// gasCostNative 为以 wei 计的标称广播成本。
func QuoteForRelayer(gross, gasCostNative, nativePriceUSD, feeTokenPriceUSD *amount.Amount, feeTokenDecimals uint8) (*FeeQuote, error) {
	relayerFee := RelayerFee(gross)
	protocolFee := ProtocolFee(gross)

	gasFee, err := GasReclamationFee(gasCostNative, nativePriceUSD, feeTokenPriceUSD, feeTokenDecimals)
	if err != nil {
		return nil, err
	}

	q := &FeeQuote{
		RelayerFee:        relayerFee,
		GasReclamationFee: gasFee,
		ProtocolFee:       protocolFee,
	}
	if err := ValidateCombinedFee(q.CombinedFee(), gross); err != nil {
		return nil, err
	}

	// recipient = gross - relayer - gas - protocol，守恒式的唯一未知量
	q.RecipientAmount = new(big.Int).Sub(gross, q.CombinedFee())
	return q, nil
}

// QuoteForSelfSign 计算自签路径的费用拆分。
// 用户自己付 gas，不经 relayer，只剩隐式协议费。
func QuoteForSelfSign(gross *amount.Amount) (*FeeQuote, error) {
	q := &FeeQuote{
		RelayerFee:        amount.New(0),
		GasReclamationFee: amount.New(0),
		ProtocolFee:       ProtocolFee(gross),
	}
	if err := ValidateCombinedFee(q.CombinedFee(), gross); err != nil {
		return nil, err
	}
	q.RecipientAmount = new(big.Int).Sub(gross, q.CombinedFee())
	return q, nil
}
