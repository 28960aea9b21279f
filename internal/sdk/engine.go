// Package sdk 定义与外部屏蔽池引擎 (sidecar) 的边界。
// 密钥派生、Merkle 树扫描、电路求值都发生在引擎一侧；
// 本仓库只负责按正确顺序、用逐字节一致的公开参数去调用它。
package sdk

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GasType 区分两种 EVM 计价模式。
type GasType int

const (
	GasTypeLegacy GasType = iota
	GasTypeEip1559
)

// GasDetails 是一次尝试的 gas 定价快照。
// 只允许 GasPriceGuard 和估算阶段修改；证明生成之前必须冻结。
type GasDetails struct {
	Type        GasType
	GasEstimate *big.Int // gas units
	// legacy
	GasPrice *big.Int
	// EIP-1559
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// CrossContractCall 是解除屏蔽后由转发合约执行的一次外部调用。
type CrossContractCall struct {
	To    common.Address `json:"to"`
	Data  []byte         `json:"data"`
	Value *big.Int       `json:"value"`
}

// BroadcasterFee 指定付给 relayer 的那一份输出。
// 金额进入证明的公开输入，之后不可更改。
type BroadcasterFee struct {
	ShieldedRecipient string         `json:"shielded_recipient"` // relayer 的 0zk 地址
	TokenAddress      common.Address `json:"token_address"`
	Amount            *big.Int       `json:"amount"`
}

// TransferBundle 描述一次转出/解除屏蔽的全部输出。
// 每次提交尝试独占一个 bundle，严禁跨尝试共享：
// 证明和填充两个阶段必须看到同一个对象。
type TransferBundle struct {
	WalletID           string
	ChainID            uint64
	TokenAddress       common.Address // 零地址代表原生币
	RecipientAddress   common.Address
	RecipientAmount    *big.Int
	CrossContractCalls []CrossContractCall
}

// PopulatedTransaction 是引擎填充出的未签名交易。
// Serialized 供 relayer 提交；其余字段供自签路径重建交易对象。
type PopulatedTransaction struct {
	To         string `json:"to"`       // hex address
	Data       string `json:"data"`     // hex calldata
	Value      string `json:"value"`    // base-10 wei
	GasLimit   uint64 `json:"gas_limit"`
	Nonce      uint64 `json:"nonce"`
	Serialized string `json:"serialized"` // unsigned RLP, hex
}

// ProgressEvent 证明生成进度。管线把它透传给调用方，自己绝不阻塞在上面。
type ProgressEvent struct {
	Stage string `json:"stage"`
	Pct   int    `json:"pct"`
}

// Engine 是屏蔽池引擎的调用契约。
// GenerateProof 和 PopulateTransaction 必须收到完全一致的
// (bundle, fee, sendWithPublicWallet)，否则证明作废。
type Engine interface {
	// RefreshBalances 触发并等待一次余额/Merkle 树重扫。
	RefreshBalances(ctx context.Context, chainID uint64, walletIDs []string) error

	// EstimateUnprovenGas 用未证明的 bundle 形状估算 gas 用量。
	EstimateUnprovenGas(ctx context.Context, bundle *TransferBundle, fee *BroadcasterFee, gas *GasDetails) (uint64, error)

	// GenerateProof 生成零知识证明。不可取消：ctx 只约束排队，不中断电路求值。
	GenerateProof(ctx context.Context, bundle *TransferBundle, fee *BroadcasterFee, sendWithPublicWallet bool, progress func(ProgressEvent)) error

	// PopulateTransaction 把已证明的 bundle 填充为未签名交易。
	PopulateTransaction(ctx context.Context, bundle *TransferBundle, fee *BroadcasterFee, sendWithPublicWallet bool, gas *GasDetails) (*PopulatedTransaction, error)
}
