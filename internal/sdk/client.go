package sdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shield-core/pkg/logger"
)

// Client 通过 HTTP 调用引擎 sidecar，实现 Engine 接口。
// 证明接口是长连接流式响应，每行一个 JSON 进度事件，最后一行携带 done/error。
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type refreshRequest struct {
	ChainID   uint64   `json:"chain_id"`
	WalletIDs []string `json:"wallet_ids"`
}

func (c *Client) RefreshBalances(ctx context.Context, chainID uint64, walletIDs []string) error {
	var out struct {
		Rescanned int `json:"rescanned"`
	}
	if err := c.post(ctx, "/v1/balances/refresh", refreshRequest{ChainID: chainID, WalletIDs: walletIDs}, &out); err != nil {
		return fmt.Errorf("refresh balances: %w", err)
	}
	logger.Debug("engine balance refresh done",
		zap.Uint64("chain_id", chainID),
		zap.Int("rescanned", out.Rescanned))
	return nil
}

// bundleWire 是 bundle 的线上表示。金额统一十进制字符串，
// 避免引擎侧 JSON number 精度丢失。
type bundleWire struct {
	WalletID             string     `json:"wallet_id"`
	ChainID              uint64     `json:"chain_id"`
	TokenAddress         string     `json:"token_address"`
	RecipientAddress     string     `json:"recipient_address"`
	RecipientAmount      string     `json:"recipient_amount"`
	CrossContractCalls   []callWire `json:"cross_contract_calls,omitempty"`
	SendWithPublicWallet bool       `json:"send_with_public_wallet"`
}

type callWire struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type feeWire struct {
	ShieldedRecipient string `json:"shielded_recipient"`
	TokenAddress      string `json:"token_address"`
	Amount            string `json:"amount"`
}

type gasWire struct {
	Type                 string `json:"type"` // "legacy" | "eip1559"
	GasEstimate          string `json:"gas_estimate,omitempty"`
	GasPrice             string `json:"gas_price,omitempty"`
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
}

func encodeBundle(b *TransferBundle, swpw bool) bundleWire {
	w := bundleWire{
		WalletID:             b.WalletID,
		ChainID:              b.ChainID,
		TokenAddress:         b.TokenAddress.Hex(),
		RecipientAddress:     b.RecipientAddress.Hex(),
		RecipientAmount:      b.RecipientAmount.String(),
		SendWithPublicWallet: swpw,
	}
	for _, cc := range b.CrossContractCalls {
		w.CrossContractCalls = append(w.CrossContractCalls, callWire{
			To:    cc.To.Hex(),
			Data:  "0x" + hex.EncodeToString(cc.Data),
			Value: bigString(cc.Value),
		})
	}
	return w
}

func encodeFee(f *BroadcasterFee) *feeWire {
	if f == nil {
		return nil
	}
	return &feeWire{
		ShieldedRecipient: f.ShieldedRecipient,
		TokenAddress:      f.TokenAddress.Hex(),
		Amount:            f.Amount.String(),
	}
}

func encodeGas(g *GasDetails) *gasWire {
	if g == nil {
		return nil
	}
	w := &gasWire{
		GasEstimate:          bigString(g.GasEstimate),
		GasPrice:             bigString(g.GasPrice),
		MaxFeePerGas:         bigString(g.MaxFeePerGas),
		MaxPriorityFeePerGas: bigString(g.MaxPriorityFeePerGas),
	}
	if g.Type == GasTypeEip1559 {
		w.Type = "eip1559"
	} else {
		w.Type = "legacy"
	}
	return w
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

type estimateRequest struct {
	Bundle bundleWire `json:"bundle"`
	Fee    *feeWire   `json:"fee,omitempty"`
	Gas    *gasWire   `json:"gas,omitempty"`
}

func (c *Client) EstimateUnprovenGas(ctx context.Context, bundle *TransferBundle, fee *BroadcasterFee, gas *GasDetails) (uint64, error) {
	var out struct {
		GasEstimate uint64 `json:"gas_estimate"`
	}
	req := estimateRequest{Bundle: encodeBundle(bundle, false), Fee: encodeFee(fee), Gas: encodeGas(gas)}
	if err := c.post(ctx, "/v1/transactions/estimate", req, &out); err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return out.GasEstimate, nil
}

type proveRequest struct {
	Bundle bundleWire `json:"bundle"`
	Fee    *feeWire   `json:"fee,omitempty"`
}

// proveLine 是证明流中的一行。终结行用 done 或 error 标记。
type proveLine struct {
	ProgressEvent
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func (c *Client) GenerateProof(ctx context.Context, bundle *TransferBundle, fee *BroadcasterFee, sendWithPublicWallet bool, progress func(ProgressEvent)) error {
	body, err := json.Marshal(proveRequest{Bundle: encodeBundle(bundle, sendWithPublicWallet), Fee: encodeFee(fee)})
	if err != nil {
		return err
	}

	// 证明耗时以分钟计，沿用客户端整体超时而不是逐行超时
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions/prove", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("prove: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prove: engine returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line proveLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return fmt.Errorf("prove: malformed progress line: %w", err)
		}
		if line.Error != "" {
			return fmt.Errorf("prove: %s", line.Error)
		}
		if line.Done {
			return nil
		}
		if progress != nil {
			progress(line.ProgressEvent)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("prove: stream broken: %w", err)
	}
	return fmt.Errorf("prove: stream ended without completion marker")
}

type populateRequest struct {
	Bundle bundleWire `json:"bundle"`
	Fee    *feeWire   `json:"fee,omitempty"`
	Gas    *gasWire   `json:"gas,omitempty"`
}

func (c *Client) PopulateTransaction(ctx context.Context, bundle *TransferBundle, fee *BroadcasterFee, sendWithPublicWallet bool, gas *GasDetails) (*PopulatedTransaction, error) {
	var out PopulatedTransaction
	req := populateRequest{Bundle: encodeBundle(bundle, sendWithPublicWallet), Fee: encodeFee(fee), Gas: encodeGas(gas)}
	if err := c.post(ctx, "/v1/transactions/populate", req, &out); err != nil {
		return nil, fmt.Errorf("populate transaction: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var fail struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&fail)
		if fail.Error != "" {
			return fmt.Errorf("engine %s: %s", path, fail.Error)
		}
		return fmt.Errorf("engine %s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
