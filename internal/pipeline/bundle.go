package pipeline

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"shield-core/internal/fees"
	"shield-core/internal/relayer"
	"shield-core/internal/sdk"
	"shield-core/pkg/errno"
)

// Path 提交路径。
type Path int

const (
	RelayerAssisted Path = iota
	SelfSigned
)

func (p Path) String() string {
	if p == RelayerAssisted {
		return "relayed"
	}
	return "self_signed"
}

// TokenKind 原生币或 ERC-20。
type TokenKind int

const (
	BaseToken TokenKind = iota
	ERC20
)

// BundleShape 是四种流程变体的参数化表示，
// 替代原先按 路径×币种 展开的四份近似重复代码。
type BundleShape struct {
	Path  Path
	Token TokenKind
}

func shapeFor(path Path, token common.Address) BundleShape {
	kind := ERC20
	if token == (common.Address{}) {
		kind = BaseToken
	}
	return BundleShape{Path: path, Token: kind}
}

// 各链的转发合约。relayer 路径先把全额解到转发合约，
// 再由合约把净额转给最终收款人。上新链必须登记。
var forwardingContracts = map[uint64]common.Address{
	1:     common.HexToAddress("0x4025ee6512DBbda97049Bcf5AA5D38C54aF6bE8a"),
	56:    common.HexToAddress("0x741936fb83DDf324636D3048b3E6bC800B8D9e12"),
	137:   common.HexToAddress("0xc7FfA542736321A3dd69246d73987566a5486968"),
	42161: common.HexToAddress("0x5aD95C537b002770a39dea342c4bb2b68B1497aA"),
}

// transferSelector 是 ERC-20 transfer(address,uint256) 的函数选择子。
var transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// erc20TransferData 打包 transfer(to, amount) 的 calldata。
func erc20TransferData(to common.Address, amt *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)

	var addrWord [32]byte
	copy(addrWord[12:], to.Bytes())
	data = append(data, addrWord[:]...)

	var amtWord [32]byte
	amt.FillBytes(amtWord[:])
	return append(data, amtWord[:]...)
}

// buildRelayerBundle 组装 relayer 协助路径的 bundle：
// 全额进转发合约，broadcaster fee 输出把 relayer 分成打到其屏蔽地址，
// 一个跨合约调用把净额送达最终收款人。
// 未登记转发合约的链直接拒绝：map 零值是零地址，全额会打进黑洞。
func buildRelayerBundle(req *Request, quote *fees.FeeQuote, info *relayer.RelayerInfo) (*sdk.TransferBundle, *sdk.BroadcasterFee, error) {
	forward, ok := forwardingContracts[req.ChainID]
	if !ok {
		return nil, nil, errno.ErrUnsupportedChain
	}
	shape := shapeFor(RelayerAssisted, req.TokenAddress)

	var call sdk.CrossContractCall
	if shape.Token == BaseToken {
		call = sdk.CrossContractCall{
			To:    req.RecipientAddress,
			Data:  nil,
			Value: new(big.Int).Set(quote.RecipientAmount),
		}
	} else {
		call = sdk.CrossContractCall{
			To:    req.TokenAddress,
			Data:  erc20TransferData(req.RecipientAddress, quote.RecipientAmount),
			Value: new(big.Int),
		}
	}

	bundle := &sdk.TransferBundle{
		WalletID:           req.WalletID,
		ChainID:            req.ChainID,
		TokenAddress:       req.TokenAddress,
		RecipientAddress:   forward,
		RecipientAmount:    new(big.Int).Set(quote.RecipientAmount),
		CrossContractCalls: []sdk.CrossContractCall{call},
	}

	fee := &sdk.BroadcasterFee{
		ShieldedRecipient: info.ShieldedAddress,
		TokenAddress:      req.TokenAddress,
		Amount:            new(big.Int).Add(quote.RelayerFee, quote.GasReclamationFee),
	}
	return bundle, fee, nil
}

// buildSelfSignBundle 组装自签路径的 bundle：唯一输出就是收款人，
// 金额为扣除协议费后的净额，没有 broadcaster fee。
func buildSelfSignBundle(req *Request, quote *fees.FeeQuote) *sdk.TransferBundle {
	return &sdk.TransferBundle{
		WalletID:         req.WalletID,
		ChainID:          req.ChainID,
		TokenAddress:     req.TokenAddress,
		RecipientAddress: req.RecipientAddress,
		RecipientAmount:  new(big.Int).Set(quote.RecipientAmount),
	}
}
