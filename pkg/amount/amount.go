package amount

import (
	"fmt"
	"math/big"
)

// Amount 表示某个代币最小单位下的非负整数金额。
// 手续费计算一旦开始，金额绝不允许退化为浮点数。
type Amount = big.Int

// New returns an Amount from an int64.
func New(v int64) *Amount {
	return big.NewInt(v)
}

// FromString parses a base-10 integer string into an Amount.
// Negative values are rejected: amounts are token base units, never deltas.
func FromString(s string) (*Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// Bps 按基点 (1 bps = 0.01%) 截断向下取整。
// 百分比手续费一律向下取整，余数留给接收方。
func Bps(v *Amount, bps int64) *Amount {
	out := new(big.Int).Mul(v, big.NewInt(bps))
	return out.Quo(out, big.NewInt(10_000))
}

// FloorDiv returns a/b rounded toward zero. Panics on b == 0,
// matching big.Int semantics.
func FloorDiv(a, b *Amount) *Amount {
	return new(big.Int).Quo(a, b)
}

// CeilDiv returns a/b rounded up.
// Invariant relied on by fee math: CeilDiv(a,b)*b >= a for a,b > 0.
func CeilDiv(a, b *Amount) *Amount {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Sum adds any number of amounts into a fresh value.
func Sum(vs ...*Amount) *Amount {
	out := new(big.Int)
	for _, v := range vs {
		out.Add(out, v)
	}
	return out
}

// Pow10 returns 10^n, used for token-decimal scaling.
func Pow10(n uint8) *Amount {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
