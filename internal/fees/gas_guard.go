package fees

import (
	"math/big"

	"go.uber.org/zap"

	"shield-core/internal/sdk"
	"shield-core/pkg/amount"
	"shield-core/pkg/logger"
)

// 每条链的 gas price 下限（wei）。节点偶尔会报出离谱的低价，
// 低价交易会卡在内存池里拖死整个提交流程，宁可多付也要保证打包。
// 上新链之前必须重新核对这张表。
var gasPriceFloors = map[uint64]*big.Int{
	1:     big.NewInt(1_000_000_000),  // Ethereum: 1 gwei
	56:    big.NewInt(3_000_000_000),  // BSC: 3 gwei
	137:   big.NewInt(30_000_000_000), // Polygon: 30 gwei
	42161: big.NewInt(10_000_000),     // Arbitrum: 0.01 gwei
}

// 有强制 priority fee 下限的链。只抬 tip，不动 base fee。
var priorityFeeFloors = map[uint64]*big.Int{
	137: big.NewInt(30_000_000_000), // Polygon: 30 gwei tip
}

// ApplyGasPriceGuard 将节点报价钳制到链下限之上。
// 未登记的链原样放行。
func ApplyGasPriceGuard(chainID uint64, rawGasPrice *amount.Amount) *amount.Amount {
	floor, ok := gasPriceFloors[chainID]
	if !ok || rawGasPrice.Cmp(floor) >= 0 {
		return rawGasPrice
	}
	logger.Warn("gas price below chain floor, clamping", // 钳制
		zap.Uint64("chain_id", chainID),
		zap.String("raw", rawGasPrice.String()),
		zap.String("floor", floor.String()))
	return new(big.Int).Set(floor)
}

// ClampFeeData 对完整的 GasDetails 应用守卫。
// legacy 只钳 GasPrice；EIP-1559 钳 MaxFeePerGas，并对有 tip 下限的链
// 抬高 MaxPriorityFeePerGas，同时保证 maxFee >= priority。
func ClampFeeData(chainID uint64, gas *sdk.GasDetails) {
	if gas == nil {
		return
	}

	if gas.Type == sdk.GasTypeLegacy {
		if gas.GasPrice != nil {
			gas.GasPrice = ApplyGasPriceGuard(chainID, gas.GasPrice)
		}
		return
	}

	if gas.MaxFeePerGas != nil {
		gas.MaxFeePerGas = ApplyGasPriceGuard(chainID, gas.MaxFeePerGas)
	}
	if floor, ok := priorityFeeFloors[chainID]; ok {
		if gas.MaxPriorityFeePerGas == nil || gas.MaxPriorityFeePerGas.Cmp(floor) < 0 {
			gas.MaxPriorityFeePerGas = new(big.Int).Set(floor)
		}
		if gas.MaxFeePerGas != nil && gas.MaxFeePerGas.Cmp(gas.MaxPriorityFeePerGas) < 0 {
			gas.MaxFeePerGas = new(big.Int).Set(gas.MaxPriorityFeePerGas)
		}
	}
}
