package submitter

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shield-core/internal/relayer"
	"shield-core/internal/sdk"
	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
	"shield-core/pkg/monitor"
)

func TestMain(m *testing.M) {
	monitor.InitBusinessMetrics()
	os.Exit(m.Run())
}

type fakeRelay struct {
	calls int
	res   *relayer.SubmitResult
	err   error
}

func (f *fakeRelay) Submit(ctx context.Context, chainID uint64, serializedTx string, token common.Address, amt *amount.Amount, fees relayer.FeeDetails) (*relayer.SubmitResult, error) {
	f.calls++
	return f.res, f.err
}

type fakeBroadcaster struct {
	calls int
	sent  *types.Transaction
	err   error
}

func (f *fakeBroadcaster) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.calls++
	f.sent = tx
	return f.err
}

func newTestSigner(t *testing.T) *KeySigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewKeySigner(key)
}

func populatedTx() *sdk.PopulatedTransaction {
	return &sdk.PopulatedTransaction{
		To:         "0x0000000000000000000000000000000000000042",
		Data:       "0xa9059cbb",
		Value:      "0",
		GasLimit:   1_440_000,
		Nonce:      7,
		Serialized: "0x02f8...",
	}
}

func legacyGas() *sdk.GasDetails {
	return &sdk.GasDetails{Type: sdk.GasTypeLegacy, GasPrice: big.NewInt(1_000_000_000)}
}

func relayRequest() *Request {
	return &Request{
		ChainID:      1,
		UseRelayer:   true,
		Populated:    populatedTx(),
		Gas:          legacyGas(),
		TokenAddress: common.HexToAddress("0xAA"),
		Amount:       amount.New(1_000_000),
	}
}

func TestSubmitViaRelayer(t *testing.T) {
	relay := &fakeRelay{res: &relayer.SubmitResult{TransactionHash: "0xrelayed"}}
	bc := &fakeBroadcaster{}
	s := New(relay, newTestSigner(t), bc)

	res, err := s.Submit(context.Background(), relayRequest())
	require.NoError(t, err)
	assert.True(t, res.UsedRelayer)
	assert.Equal(t, "0xrelayed", res.TransactionHash)
	assert.Equal(t, 1, relay.calls)
	assert.Zero(t, bc.calls) // 没理由动本地签名
}

func TestSubmitFallsBackExactlyOnce(t *testing.T) {
	relay := &fakeRelay{err: errno.ErrRelayerTimeout}
	bc := &fakeBroadcaster{}
	s := New(relay, newTestSigner(t), bc)

	res, err := s.Submit(context.Background(), relayRequest())
	require.NoError(t, err)
	assert.False(t, res.UsedRelayer)
	assert.NotEmpty(t, res.TransactionHash)

	// relayer 恰好一次，自签恰好一次
	assert.Equal(t, 1, relay.calls)
	assert.Equal(t, 1, bc.calls)

	// 降级复用已填充交易，字段不得改动
	assert.Equal(t, uint64(1_440_000), bc.sent.Gas())
	assert.Equal(t, uint64(7), bc.sent.Nonce())
}

func TestSubmitFallbackFailureSurfaces(t *testing.T) {
	relay := &fakeRelay{err: errno.ErrRelayerUnavailable}
	bc := &fakeBroadcaster{err: assert.AnError}
	s := New(relay, newTestSigner(t), bc)

	_, err := s.Submit(context.Background(), relayRequest())
	require.Error(t, err)
	assert.Equal(t, 1, relay.calls)
	assert.Equal(t, 1, bc.calls) // 自签也只试一次
}

func TestSubmitNonRelayerErrorDoesNotFallBack(t *testing.T) {
	// 致命类别不得触发自签
	relay := &fakeRelay{err: errno.ErrParityMismatch}
	bc := &fakeBroadcaster{}
	s := New(relay, newTestSigner(t), bc)

	_, err := s.Submit(context.Background(), relayRequest())
	assert.True(t, errno.Is(err, errno.ErrParityMismatch))
	assert.Zero(t, bc.calls)
}

func TestSelfSignDirectPath(t *testing.T) {
	relay := &fakeRelay{}
	bc := &fakeBroadcaster{}
	s := New(relay, newTestSigner(t), bc)

	req := relayRequest()
	req.UseRelayer = false

	res, err := s.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.UsedRelayer)
	assert.Zero(t, relay.calls)
	assert.Equal(t, 1, bc.calls)
}

func TestSelfSignEip1559(t *testing.T) {
	bc := &fakeBroadcaster{}
	s := New(&fakeRelay{}, newTestSigner(t), bc)

	req := relayRequest()
	req.UseRelayer = false
	req.Gas = &sdk.GasDetails{
		Type:                 sdk.GasTypeEip1559,
		MaxFeePerGas:         big.NewInt(40_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	}

	_, err := s.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint8(types.DynamicFeeTxType), bc.sent.Type())
	assert.Equal(t, "40000000000", bc.sent.GasFeeCap().String())
}

func TestSelfSignMalformedTransaction(t *testing.T) {
	s := New(&fakeRelay{}, newTestSigner(t), &fakeBroadcaster{})

	mutations := map[string]func(*Request){
		"missing to":        func(r *Request) { r.Populated.To = "" },
		"missing data":      func(r *Request) { r.Populated.Data = "" },
		"zero gas limit":    func(r *Request) { r.Populated.GasLimit = 0 },
		"nil populated":     func(r *Request) { r.Populated = nil },
		"bad value":         func(r *Request) { r.Populated.Value = "12.5" },
		"missing gas price": func(r *Request) { r.Gas = nil },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := relayRequest()
			req.UseRelayer = false
			mutate(req)
			_, err := s.Submit(context.Background(), req)
			assert.True(t, errno.Is(err, errno.ErrMalformedTransaction))
		})
	}
}
