// Package submitter 负责终末派发：优先交给 relayer 广播，
// 失败则降级为本地签名直发。降级有且只有一次，绝不循环重试。
package submitter

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"shield-core/internal/relayer"
	"shield-core/internal/sdk"
	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
	"shield-core/pkg/logger"
	"shield-core/pkg/monitor"
)

// RelayChannel 是 relayer 提交通道的最小契约，便于测试替换。
type RelayChannel interface {
	Submit(ctx context.Context, chainID uint64, serializedTx string, token common.Address, amt *amount.Amount, fees relayer.FeeDetails) (*relayer.SubmitResult, error)
}

// Signer 本地签名方。
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Broadcaster 把签好的交易广播到链上，通常由 ethclient 实现。
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeySigner 用内存私钥实现 Signer。私钥来自解密后的 keystore。
type KeySigner struct {
	key *ecdsa.PrivateKey
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

func (s *KeySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Request 一次派发请求。Populated 交易在证明奇偶校验通过后冻结，
// 降级路径原样复用，不再改动任何字段。
type Request struct {
	ChainID      uint64
	UseRelayer   bool
	Populated    *sdk.PopulatedTransaction
	Gas          *sdk.GasDetails
	TokenAddress common.Address
	Amount       *amount.Amount
	FeeDetails   relayer.FeeDetails
}

// Result 派发结果。
type Result struct {
	TransactionHash string
	UsedRelayer     bool
}

// Submitter 终末派发器。
type Submitter struct {
	relay       RelayChannel
	signer      Signer
	broadcaster Broadcaster
}

func New(relay RelayChannel, signer Signer, broadcaster Broadcaster) *Submitter {
	return &Submitter{relay: relay, signer: signer, broadcaster: broadcaster}
}

// Submit 执行派发。relayer 路径失败且错误属于可恢复类别时，
// 降级自签一次；其他错误类别直接上抛，不得重试。
func (s *Submitter) Submit(ctx context.Context, req *Request) (*Result, error) {
	if req.UseRelayer {
		res, err := s.relay.Submit(ctx, req.ChainID, req.Populated.Serialized, req.TokenAddress, req.Amount, req.FeeDetails)
		if err == nil {
			return &Result{TransactionHash: res.TransactionHash, UsedRelayer: true}, nil
		}
		if !errno.IsRelayerFailure(err) {
			return nil, err
		}

		// 回退复用的是为 relayer 框架填充的交易，不重新生成证明
		code, msg := errno.Decode(err)
		logger.Warn("relayer submission failed, falling back to self-sign once",
			zap.Uint64("chain_id", req.ChainID),
			zap.Int("code", code),
			zap.String("reason", msg))
		monitor.Business.RelayerFallbackTotal.WithLabelValues(chainLabel(req.ChainID), msg).Inc()
	}

	hash, err := s.selfSign(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Result{TransactionHash: hash, UsedRelayer: false}, nil
}

// selfSign 重建、签名并直发填充好的交易。
// to/data/gasLimit 缺一不可，缺了说明填充结果已损坏。
func (s *Submitter) selfSign(ctx context.Context, req *Request) (string, error) {
	p := req.Populated
	if p == nil || p.To == "" || p.Data == "" || p.GasLimit == 0 {
		return "", errno.ErrMalformedTransaction
	}

	data, err := hexutil.Decode(ensureHexPrefix(p.Data))
	if err != nil {
		return "", errno.ErrMalformedTransaction
	}

	value := new(big.Int)
	if p.Value != "" {
		if _, ok := value.SetString(p.Value, 10); !ok {
			return "", errno.ErrMalformedTransaction
		}
	}

	to := common.HexToAddress(p.To)
	var tx *types.Transaction
	if req.Gas != nil && req.Gas.Type == sdk.GasTypeEip1559 {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(req.ChainID),
			Nonce:     p.Nonce,
			GasTipCap: req.Gas.MaxPriorityFeePerGas,
			GasFeeCap: req.Gas.MaxFeePerGas,
			Gas:       p.GasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	} else {
		var gasPrice *big.Int
		if req.Gas != nil {
			gasPrice = req.Gas.GasPrice
		}
		if gasPrice == nil {
			return "", errno.ErrMalformedTransaction
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    p.Nonce,
			GasPrice: gasPrice,
			Gas:      p.GasLimit,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}

	signed, err := s.signer.SignTx(tx, new(big.Int).SetUint64(req.ChainID))
	if err != nil {
		return "", err
	}

	if err := s.broadcaster.SendTransaction(ctx, signed); err != nil {
		return "", err
	}

	logger.Info("transaction self-signed and broadcast",
		zap.Uint64("chain_id", req.ChainID),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("from", s.signer.Address().Hex()))
	return signed.Hash().Hex(), nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

func chainLabel(chainID uint64) string {
	return new(big.Int).SetUint64(chainID).String()
}
