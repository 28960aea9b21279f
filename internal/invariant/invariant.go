// Package invariant 在证明生成前后强制执行资金安全不变式。
// 这里的失败全是硬中止：守恒被破坏或公开输入漂移意味着
// 记账 bug 或被篡改，绝不能让这样的交易走到链上。
package invariant

import (
	"strings"

	"go.uber.org/zap"

	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
	"shield-core/pkg/logger"
)

// AssertNotSelfTargeting 校验发送方、收款方、relayer 三方地址互不重合。
// relayer 地址为空表示自签路径，允许跳过该项比较。
func AssertNotSelfTargeting(sender, recipient, relayer string) error {
	if equalAddr(sender, recipient) {
		return errno.ErrSelfTargeting
	}
	if relayer != "" && equalAddr(sender, relayer) {
		// relayer 不能同时是提取价值的一方
		return errno.ErrSelfTargeting
	}
	return nil
}

// AssertConservation 校验输出严格守恒：
//
//	recipient + relayerFee + gasFee + protocolFee == gross
//
// 任何偏差都阻断证明生成，这不是警告。
func AssertConservation(gross, recipient, relayerFee, gasFee, protocolFee *amount.Amount) error {
	total := amount.Sum(recipient, relayerFee, gasFee, protocolFee)
	if total.Cmp(gross) != 0 {
		logger.Error("conservation violated",
			zap.String("gross", gross.String()),
			zap.String("sum", total.String()),
			zap.String("recipient", recipient.String()),
			zap.String("relayer_fee", relayerFee.String()),
			zap.String("gas_fee", gasFee.String()),
			zap.String("protocol_fee", protocolFee.String()))
		return errno.ErrConservationViolated
	}
	return nil
}

// AssertParity 比较证明时与填充时的公开输入指纹。
// 费额和收款人已被永久烧进证明，任何漂移都会导致链上失败，
// 或者更糟：资金被静默改道。
func AssertParity(atProof, atPopulate Fingerprint) error {
	if atProof != atPopulate {
		return errno.ErrParityMismatch
	}
	return nil
}

func equalAddr(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
