// Package relayer 封装远端转发服务的提交通道。
// 健康检查和报价都是短超时的旁路调用；submit 是长超时主路，
// 失败归入可恢复错误类别，由上层触发唯一一次自签回退。
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
	"shield-core/pkg/logger"
)

// RelayerInfo relayer 自述信息。每次尝试现取，不跨链/跨代币缓存。
type RelayerInfo struct {
	ShieldedAddress string         `json:"shielded_address"`
	FeeTokenAddress common.Address `json:"fee_token_address"`
	FeePerUnitGas   *amount.Amount `json:"-"`
}

// FeeDetails 随交易一起提交的费用明细，供 relayer 校验自己的分成。
type FeeDetails struct {
	RelayerFee        string `json:"relayer_fee"`
	GasReclamationFee string `json:"gas_reclamation_fee"`
	FeeTokenAddress   string `json:"fee_token_address"`
}

// SubmitResult relayer 广播成功的回执。
type SubmitResult struct {
	TransactionHash string `json:"transaction_hash"`
	GasUsed         uint64 `json:"gas_used"`
	TotalFee        string `json:"total_fee"`
}

// Gateway 是 relayer HTTP 通道。健康/报价短超时，提交长超时。
type Gateway struct {
	baseURL      string
	healthClient *http.Client
	quoteClient  *http.Client
	submitClient *http.Client
}

func NewGateway(baseURL string, healthTimeout, quoteTimeout, submitTimeout time.Duration) *Gateway {
	return &Gateway{
		baseURL:      baseURL,
		healthClient: &http.Client{Timeout: healthTimeout},
		quoteClient:  &http.Client{Timeout: quoteTimeout},
		submitClient: &http.Client{Timeout: submitTimeout},
	}
}

// CheckHealth 探测 relayer 可用性。任何网络错误或非 200 都返回 false，
// 本方法从不返回 error：不健康就走自签，没有别的分支。
func (g *Gateway) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := g.healthClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "healthy"
}

// Info 获取 relayer 的屏蔽地址和费用代币。
func (g *Gateway) Info(ctx context.Context, chainID uint64) (*RelayerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/info?chain=%d", g.baseURL, chainID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.quoteClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errno.ErrRelayerUnavailable
	}

	var body struct {
		ShieldedAddress string `json:"shielded_address"`
		FeeTokenAddress string `json:"fee_token_address"`
		FeePerUnitGas   string `json:"fee_per_unit_gas"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errno.ErrRelayerUnavailable
	}

	info := &RelayerInfo{
		ShieldedAddress: body.ShieldedAddress,
		FeeTokenAddress: common.HexToAddress(body.FeeTokenAddress),
	}
	if body.FeePerUnitGas != "" {
		v, err := amount.FromString(body.FeePerUnitGas)
		if err != nil {
			// 费率只做展示，解析失败不阻断，但要能看见 relayer 在乱报
			logger.Warn("relayer reported unparseable fee_per_unit_gas",
				zap.String("fee_per_unit_gas", body.FeePerUnitGas), zap.Error(err))
		} else {
			info.FeePerUnitGas = v
		}
	}
	return info, nil
}

// QuoteFee 向 relayer 要一个展示用报价。尽力而为：失败不阻断流程，
// 本地 FeeModel 的计算才是权威值。
func (g *Gateway) QuoteFee(ctx context.Context, chainID uint64, token common.Address, amt *amount.Amount, gasEstimate uint64) (*amount.Amount, error) {
	body, _ := json.Marshal(map[string]any{
		"chain_id":      chainID,
		"token_address": token.Hex(),
		"amount":        amt.String(),
		"gas_estimate":  gasEstimate,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/fees/quote", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.quoteClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errno.ErrRelayerUnavailable
	}
	var out struct {
		Fee string `json:"fee"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errno.ErrRelayerUnavailable
	}
	return amount.FromString(out.Fee)
}

type submitRequest struct {
	ChainID               uint64     `json:"chain_id"`
	SerializedTransaction string     `json:"serialized_transaction"`
	TokenAddress          string     `json:"token_address"`
	Amount                string     `json:"amount"`
	FeeDetails            FeeDetails `json:"fee_details"`
}

// Submit 把填充好的未签名交易交给 relayer 广播。
// 特例：节点过载的错误应答里若带了 transaction_hash，按成功处理，
// 哈希本身就是已广播的铁证，错误信封不算数。
func (g *Gateway) Submit(ctx context.Context, chainID uint64, serializedTx string, token common.Address, amt *amount.Amount, fees FeeDetails) (*SubmitResult, error) {
	body, err := json.Marshal(submitRequest{
		ChainID:               chainID,
		SerializedTransaction: serializedTx,
		TokenAddress:          token.Hex(),
		Amount:                amt.String(),
		FeeDetails:            fees,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/transactions/submit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.submitClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out SubmitResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, errno.ErrRelayerRejected
		}
		if out.TransactionHash == "" {
			return nil, errno.ErrRelayerRejected
		}
		return &out, nil
	}

	var fail struct {
		Error           string `json:"error"`
		TransactionHash string `json:"transaction_hash"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&fail)

	if fail.TransactionHash != "" {
		logger.Warn("relayer returned error envelope with transaction hash, treating as broadcast", // 过载误报
			zap.String("tx_hash", fail.TransactionHash),
			zap.String("error", fail.Error))
		return &SubmitResult{TransactionHash: fail.TransactionHash}, nil
	}

	logger.Error("relayer rejected transaction",
		zap.Uint64("chain_id", chainID),
		zap.Int("status", resp.StatusCode),
		zap.String("error", fail.Error))
	return nil, errno.ErrRelayerRejected
}

// classifyTransportError 把传输层错误映射到可恢复错误类别。
func classifyTransportError(err error) error {
	var nerr interface{ Timeout() bool }
	if errors.As(err, &nerr) && nerr.Timeout() {
		return errno.ErrRelayerTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errno.ErrRelayerTimeout
	}
	return errno.ErrRelayerUnavailable
}
