package invariant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
)

func TestAssertNotSelfTargeting(t *testing.T) {
	sender := "0xAbC0000000000000000000000000000000000001"
	recipient := "0x0000000000000000000000000000000000000002"
	relayer := "0x0000000000000000000000000000000000000003"

	assert.NoError(t, AssertNotSelfTargeting(sender, recipient, relayer))

	// 收款方 == 发送方
	err := AssertNotSelfTargeting(sender, sender, relayer)
	assert.True(t, errno.Is(err, errno.ErrSelfTargeting))

	// relayer == 发送方，大小写不同也要命中
	err = AssertNotSelfTargeting(sender, recipient, "0xabc0000000000000000000000000000000000001")
	assert.True(t, errno.Is(err, errno.ErrSelfTargeting))

	// 自签路径没有 relayer
	assert.NoError(t, AssertNotSelfTargeting(sender, recipient, ""))
}

func TestAssertConservation(t *testing.T) {
	gross := amount.New(1_000_000)

	assert.NoError(t, AssertConservation(gross,
		amount.New(992_499), amount.New(5_000), amount.New(1), amount.New(2_500)))

	// 差一个最小单位也必须失败
	err := AssertConservation(gross,
		amount.New(992_500), amount.New(5_000), amount.New(1), amount.New(2_500))
	assert.True(t, errno.Is(err, errno.ErrConservationViolated))

	err = AssertConservation(gross,
		amount.New(992_498), amount.New(5_000), amount.New(1), amount.New(2_500))
	assert.True(t, errno.Is(err, errno.ErrConservationViolated))
}
