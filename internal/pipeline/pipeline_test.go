package pipeline

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shield-core/internal/fees"
	"shield-core/internal/relayer"
	"shield-core/internal/sdk"
	"shield-core/internal/submitter"
	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
	"shield-core/pkg/monitor"
)

func TestMain(m *testing.M) {
	monitor.InitBusinessMetrics()
	os.Exit(m.Run())
}

// fakeEngine 记录调用顺序，可在证明和填充之间注入 bundle 漂移。
type fakeEngine struct {
	calls        []string
	driftAfter   func(b *sdk.TransferBundle, f *sdk.BroadcasterFee)
	estimate     uint64
	provenSwpw   *bool
	populateSwpw *bool
}

func (e *fakeEngine) RefreshBalances(ctx context.Context, chainID uint64, walletIDs []string) error {
	e.calls = append(e.calls, "refresh")
	return nil
}

func (e *fakeEngine) EstimateUnprovenGas(ctx context.Context, b *sdk.TransferBundle, f *sdk.BroadcasterFee, g *sdk.GasDetails) (uint64, error) {
	e.calls = append(e.calls, "estimate")
	if e.estimate == 0 {
		return 1_500_000, nil
	}
	return e.estimate, nil
}

func (e *fakeEngine) GenerateProof(ctx context.Context, b *sdk.TransferBundle, f *sdk.BroadcasterFee, swpw bool, progress func(sdk.ProgressEvent)) error {
	e.calls = append(e.calls, "prove")
	e.provenSwpw = &swpw
	if progress != nil {
		progress(sdk.ProgressEvent{Stage: "circuit", Pct: 100})
	}
	if e.driftAfter != nil {
		e.driftAfter(b, f)
	}
	return nil
}

func (e *fakeEngine) PopulateTransaction(ctx context.Context, b *sdk.TransferBundle, f *sdk.BroadcasterFee, swpw bool, g *sdk.GasDetails) (*sdk.PopulatedTransaction, error) {
	e.calls = append(e.calls, "populate")
	e.populateSwpw = &swpw
	return &sdk.PopulatedTransaction{
		To:         "0x0000000000000000000000000000000000000042",
		Data:       "0xa9059cbb",
		Value:      "0",
		GasLimit:   g.GasEstimate.Uint64(),
		Serialized: "0x02f8...",
	}, nil
}

type fakeRelaySource struct {
	healthy bool
	info    *relayer.RelayerInfo
	infoErr error
}

func (r *fakeRelaySource) CheckHealth(ctx context.Context) bool { return r.healthy }
func (r *fakeRelaySource) Info(ctx context.Context, chainID uint64) (*relayer.RelayerInfo, error) {
	return r.info, r.infoErr
}

type fakePrices struct{}

func (fakePrices) TokenPriceUSD(ctx context.Context, chainID uint64, token common.Address) (*amount.Amount, error) {
	if token == (common.Address{}) {
		return amount.New(3000_00000000), nil // 原生币 $3000
	}
	return amount.New(1_00000000), nil // $1
}
func (fakePrices) NativePriceUSD(ctx context.Context, chainID uint64) (*amount.Amount, error) {
	return amount.New(3000_00000000), nil // $3000
}

type fakeGasPrice struct{ price int64 }

func (g fakeGasPrice) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(g.price), nil
}

type fakeDispatcher struct {
	calls int
	req   *submitter.Request
	err   error
}

func (d *fakeDispatcher) Submit(ctx context.Context, req *submitter.Request) (*submitter.Result, error) {
	d.calls++
	d.req = req
	if d.err != nil {
		return nil, d.err
	}
	return &submitter.Result{TransactionHash: "0xok", UsedRelayer: req.UseRelayer}, nil
}

var (
	sender    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	recipient = common.HexToAddress("0x0000000000000000000000000000000000000002")
	usdc      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func testRequest() *Request {
	return &Request{
		WalletID:         "w-1",
		ChainID:          1,
		TokenAddress:     usdc,
		RecipientAddress: recipient,
		Amount:           amount.New(100_000_000_000), // 100k USDC
		FeeTokenDecimals: 6,
	}
}

func healthyRelay() *fakeRelaySource {
	return &fakeRelaySource{
		healthy: true,
		info:    &relayer.RelayerInfo{ShieldedAddress: "0zk1relayer", FeeTokenAddress: usdc},
	}
}

func newTestPipeline(engine *fakeEngine, relay RelaySource, d Dispatcher) *Pipeline {
	return New(engine, relay, fakePrices{}, fakeGasPrice{price: 5_000_000_000}, d, sender)
}

func TestRunRelayerPath(t *testing.T) {
	engine := &fakeEngine{}
	disp := &fakeDispatcher{}
	p := newTestPipeline(engine, healthyRelay(), disp)

	res, err := p.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"refresh", "estimate", "prove", "populate"}, engine.calls)
	assert.True(t, res.UsedRelayer)
	assert.Equal(t, PrivacyShielded, res.PrivacyLevel)
	assert.Equal(t, "0xok", res.TransactionHash)

	// relayer 框架证明和填充都用 swpw=false
	require.NotNil(t, engine.provenSwpw)
	assert.False(t, *engine.provenSwpw)
	assert.False(t, *engine.populateSwpw)

	// 守恒
	q := res.Quote
	total := amount.Sum(q.RecipientAmount, q.RelayerFee, q.GasReclamationFee, q.ProtocolFee)
	assert.Zero(t, total.Cmp(testRequest().Amount))
	assert.True(t, q.RelayerFee.Sign() > 0)
	assert.True(t, q.GasReclamationFee.Sign() > 0)
}

func TestRunUnhealthyRelayerGoesStraightToSelfSign(t *testing.T) {
	engine := &fakeEngine{}
	disp := &fakeDispatcher{}
	p := newTestPipeline(engine, &fakeRelaySource{healthy: false}, disp)

	res, err := p.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)

	assert.False(t, res.UsedRelayer)
	assert.Equal(t, PrivacyReduced, res.PrivacyLevel)

	// 不健康时派发请求一开始就不是 relayer 路径
	assert.False(t, disp.req.UseRelayer)
	assert.True(t, *engine.provenSwpw)

	// 自签只剩协议费
	assert.Equal(t, "0", res.Quote.RelayerFee.String())
	assert.Equal(t, "0", res.Quote.GasReclamationFee.String())
	assert.True(t, res.Quote.ProtocolFee.Sign() > 0)
}

func TestRunParityDriftAbortsBeforePopulate(t *testing.T) {
	engine := &fakeEngine{
		driftAfter: func(b *sdk.TransferBundle, f *sdk.BroadcasterFee) {
			b.RecipientAmount = new(big.Int).Add(b.RecipientAmount, big.NewInt(1))
		},
	}
	disp := &fakeDispatcher{}
	p := newTestPipeline(engine, healthyRelay(), disp)

	_, err := p.Run(context.Background(), testRequest(), nil)
	require.Error(t, err)
	assert.True(t, errno.Is(err, errno.ErrParityMismatch))

	// 填充和提交都不能发生
	assert.NotContains(t, engine.calls, "populate")
	assert.Zero(t, disp.calls)
}

func TestRunFeeDriftInBroadcasterFeeAborts(t *testing.T) {
	engine := &fakeEngine{
		driftAfter: func(b *sdk.TransferBundle, f *sdk.BroadcasterFee) {
			f.Amount = new(big.Int).Sub(f.Amount, big.NewInt(1))
		},
	}
	disp := &fakeDispatcher{}
	p := newTestPipeline(engine, healthyRelay(), disp)

	_, err := p.Run(context.Background(), testRequest(), nil)
	assert.True(t, errno.Is(err, errno.ErrParityMismatch))
	assert.Zero(t, disp.calls)
}

func TestRunSelfTargetingRejected(t *testing.T) {
	engine := &fakeEngine{}
	p := newTestPipeline(engine, healthyRelay(), &fakeDispatcher{})

	req := testRequest()
	req.RecipientAddress = sender

	_, err := p.Run(context.Background(), req, nil)
	assert.True(t, errno.Is(err, errno.ErrSelfTargeting))
	// 任何密码学工作之前就要拦下
	assert.NotContains(t, engine.calls, "prove")
}

func TestRunUnregisteredChainRejectedBeforeProof(t *testing.T) {
	engine := &fakeEngine{}
	disp := &fakeDispatcher{}
	p := newTestPipeline(engine, healthyRelay(), disp)

	// 链 10 没有登记转发合约，放行的话全额会解到零地址
	req := testRequest()
	req.ChainID = 10

	_, err := p.Run(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, errno.Is(err, errno.ErrUnsupportedChain))
	assert.NotContains(t, engine.calls, "prove")
	assert.Zero(t, disp.calls)
}

func TestBuildRelayerBundleUnregisteredChain(t *testing.T) {
	req := testRequest()
	req.ChainID = 10

	bundle, fee, err := buildRelayerBundle(req, &fees.FeeQuote{
		RelayerFee:        amount.New(1),
		GasReclamationFee: amount.New(1),
		ProtocolFee:       amount.New(1),
		RecipientAmount:   amount.New(97),
	}, &relayer.RelayerInfo{ShieldedAddress: "0zk1relayer"})
	assert.True(t, errno.Is(err, errno.ErrUnsupportedChain))
	assert.Nil(t, bundle)
	assert.Nil(t, fee)
}

func TestRunGasEstimatePaddingAndFloor(t *testing.T) {
	tests := []struct {
		name     string
		estimate uint64
		want     uint64
	}{
		{"padded by 20 percent", 2_000_000, 2_400_000},
		{"floored at minimum", 100_000, 1_200_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{estimate: tt.estimate}
			disp := &fakeDispatcher{}
			p := newTestPipeline(engine, healthyRelay(), disp)

			_, err := p.Run(context.Background(), testRequest(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, disp.req.Gas.GasEstimate.Uint64())
		})
	}
}

func TestRunGasPriceGuardApplied(t *testing.T) {
	engine := &fakeEngine{}
	disp := &fakeDispatcher{}
	// 节点报 1 wei，主网下限 1 gwei
	p := New(engine, healthyRelay(), fakePrices{}, fakeGasPrice{price: 1}, disp, sender)

	_, err := p.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "1000000000", disp.req.Gas.GasPrice.String())
}

func TestRunRelayerInfoFailureDegradesToSelfSign(t *testing.T) {
	engine := &fakeEngine{}
	disp := &fakeDispatcher{}
	relay := &fakeRelaySource{healthy: true, infoErr: errno.ErrRelayerUnavailable}
	p := newTestPipeline(engine, relay, disp)

	res, err := p.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.False(t, res.UsedRelayer)
}

func TestRunProgressForwardedWithoutBlocking(t *testing.T) {
	engine := &fakeEngine{}
	p := newTestPipeline(engine, healthyRelay(), &fakeDispatcher{})

	// 无缓冲且无人消费：进度应被丢弃而不是卡死管线
	progress := make(chan sdk.ProgressEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := p.Run(context.Background(), testRequest(), progress)
		assert.NoError(t, err)
	}()
	<-done
}

func TestErc20TransferData(t *testing.T) {
	data := erc20TransferData(recipient, big.NewInt(992_500))
	require.Len(t, data, 68)
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, data[:4])
	// 地址右对齐在第一个参数字
	assert.Equal(t, recipient.Bytes(), data[4+12:4+32])
	// 金额大端右对齐在第二个参数字
	assert.Equal(t, big.NewInt(992_500).Bytes(), data[68-3:])
}

func TestBuildRelayerBundleShapes(t *testing.T) {
	info := &relayer.RelayerInfo{ShieldedAddress: "0zk1relayer"}

	t.Run("erc20", func(t *testing.T) {
		req := testRequest()
		quote, _, bcFee, err := newTestPipeline(&fakeEngine{}, healthyRelay(), &fakeDispatcher{}).
			quoteRelayerPath(context.Background(), req, big.NewInt(5_000_000_000), info)
		require.NoError(t, err)

		bundle, fee, err := buildRelayerBundle(req, quote, info)
		require.NoError(t, err)
		assert.Equal(t, forwardingContracts[1], bundle.RecipientAddress)
		require.Len(t, bundle.CrossContractCalls, 1)
		assert.Equal(t, req.TokenAddress, bundle.CrossContractCalls[0].To)
		assert.Equal(t, fee.Amount, bcFee.Amount)
		// broadcaster fee = relayer 服务费 + gas 回收费
		assert.Zero(t, fee.Amount.Cmp(amount.Sum(quote.RelayerFee, quote.GasReclamationFee)))
	})

	t.Run("base token call carries value", func(t *testing.T) {
		req := testRequest()
		req.TokenAddress = common.Address{}
		req.FeeTokenDecimals = 18
		req.Amount = amount.New(2_000_000_000_000_000_000) // 2 ETH

		quote, _, _, err := newTestPipeline(&fakeEngine{}, healthyRelay(), &fakeDispatcher{}).
			quoteRelayerPath(context.Background(), req, big.NewInt(5_000_000_000), info)
		require.NoError(t, err)

		bundle, _, err := buildRelayerBundle(req, quote, info)
		require.NoError(t, err)
		require.Len(t, bundle.CrossContractCalls, 1)
		call := bundle.CrossContractCalls[0]
		assert.Equal(t, req.RecipientAddress, call.To)
		assert.Nil(t, call.Data)
		assert.Zero(t, call.Value.Cmp(quote.RecipientAmount))
	})
}
