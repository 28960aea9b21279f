package fees

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
)

// 价格全部为 1e8 定标的美元整数
var (
	priceETH  = amount.New(3000_00000000) // $3000
	priceUSDC = amount.New(1_00000000)    // $1
)

func TestQuoteForRelayerSplit(t *testing.T) {
	// gross 1,000,000 units: relayer 50bps=5000, protocol 25bps=2500
	gross := amount.New(1_000_000)
	gasCost := amount.New(0) // 单测聚焦百分比拆分，gas 费单独测

	q, err := QuoteForRelayer(gross, gasCost, priceETH, priceUSDC, 6)
	require.NoError(t, err)

	assert.Equal(t, "5000", q.RelayerFee.String())
	assert.Equal(t, "2500", q.ProtocolFee.String())
	assert.Equal(t, "0", q.GasReclamationFee.String())
	assert.Equal(t, "992500", q.RecipientAmount.String())

	// 守恒：显式输出 + 隐式协议费 == gross
	total := amount.Sum(q.RecipientAmount, q.RelayerFee, q.GasReclamationFee, q.ProtocolFee)
	assert.Zero(t, total.Cmp(gross))
}

func TestQuoteForSelfSignOnlyProtocolFee(t *testing.T) {
	gross := amount.New(1_000_000)

	q, err := QuoteForSelfSign(gross)
	require.NoError(t, err)

	assert.Equal(t, "0", q.RelayerFee.String())
	assert.Equal(t, "0", q.GasReclamationFee.String())
	assert.Equal(t, "2500", q.ProtocolFee.String())
	assert.Equal(t, "997500", q.RecipientAmount.String())
}

func TestGasReclamationFeeRoundsUp(t *testing.T) {
	// gas 成本 100,000 wei, ETH $3000, USDC $1, 6 位小数:
	// 精确值 0.0003 USDC 单位，向下取整是 0，向上取整必须是 1
	gasCost := amount.New(100_000)

	fee, err := GasReclamationFee(gasCost, priceETH, priceUSDC, 6)
	require.NoError(t, err)
	assert.Equal(t, "1", fee.String())

	// 整除场景不应多收
	exact := amount.New(1_000_000_000_000) // 1e12 wei -> 恰好 3 USDC units
	fee, err = GasReclamationFee(exact, priceETH, priceUSDC, 6)
	require.NoError(t, err)
	assert.Equal(t, "3000", fee.String())
}

func TestGasReclamationFeeNeverUnderCollects(t *testing.T) {
	// ceil 结果换回美元后必须覆盖真实 gas 成本
	dec := uint8(6)
	for _, wei := range []int64{1, 7, 100_000, 999_999_999_999, 123_456_789} {
		gasCost := amount.New(wei)
		fee, err := GasReclamationFee(gasCost, priceETH, priceUSDC, dec)
		require.NoError(t, err)

		feeUSD := new(big.Int).Mul(fee, priceUSDC)
		feeUSD.Mul(feeUSD, amount.Pow10(18))
		costUSD := new(big.Int).Mul(gasCost, priceETH)
		costUSD.Mul(costUSD, amount.Pow10(dec))

		assert.True(t, feeUSD.Cmp(costUSD) >= 0, "wei=%d under-collects", wei)
	}
}

func TestGasReclamationFeePriceUnavailable(t *testing.T) {
	gasCost := amount.New(100_000)

	_, err := GasReclamationFee(gasCost, nil, priceUSDC, 6)
	assert.True(t, errno.Is(err, errno.ErrPriceUnavailable))

	_, err = GasReclamationFee(gasCost, priceETH, amount.New(0), 6)
	assert.True(t, errno.Is(err, errno.ErrPriceUnavailable))
}

func TestValidateCombinedFee(t *testing.T) {
	gross := amount.New(1000)

	assert.NoError(t, ValidateCombinedFee(amount.New(999), gross))

	// combined == gross 也必须失败
	err := ValidateCombinedFee(amount.New(1000), gross)
	assert.True(t, errno.Is(err, errno.ErrFeeExceedsAmount))

	err = ValidateCombinedFee(amount.New(1001), gross)
	assert.True(t, errno.Is(err, errno.ErrFeeExceedsAmount))
}

func TestQuoteForRelayerRejectsDustAmounts(t *testing.T) {
	// gross 太小，gas 回收费就会吃掉全部金额
	gross := amount.New(1)
	gasCost := amount.New(1_000_000_000_000) // 3000 USDC units 的 gas 费

	_, err := QuoteForRelayer(gross, gasCost, priceETH, priceUSDC, 6)
	assert.True(t, errno.Is(err, errno.ErrFeeExceedsAmount))
}

func TestConservationAcrossAmounts(t *testing.T) {
	gasCost := amount.New(100_000)
	for _, g := range []int64{100_000, 1_000_000, 999_999_999, 1} {
		gross := amount.New(g)
		q, err := QuoteForRelayer(gross, gasCost, priceETH, priceUSDC, 6)
		if err != nil {
			continue // dust 被费用守卫拒绝是合法出口
		}
		total := amount.Sum(q.RecipientAmount, q.RelayerFee, q.GasReclamationFee, q.ProtocolFee)
		assert.Zero(t, total.Cmp(gross), "gross=%d", g)
	}
}
