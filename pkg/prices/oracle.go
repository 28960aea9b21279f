package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"shield-core/pkg/amount"
	"shield-core/pkg/errno"
)

// ScaleDecimals 是美元价格的定点小数位数。所有价格在进入手续费计算
// 之前都被放大为 10^8 的整数，之后不再出现浮点数。
const ScaleDecimals = 8

// Source 报价接口。返回值为 1e8 定标的整数美元价格。
type Source interface {
	// TokenPriceUSD 查询代币价格。零地址代表链的原生币。
	TokenPriceUSD(ctx context.Context, chainID uint64, token common.Address) (*amount.Amount, error)
	// NativePriceUSD 查询原生币价格。
	NativePriceUSD(ctx context.Context, chainID uint64) (*amount.Amount, error)
}

// HTTPSource 从外部行情服务取价。
// 接口契约: GET {base}/v1/price?chain=<id>&token=<addr> -> {"price_usd": "2987.41"}
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type priceResponse struct {
	PriceUSD string `json:"price_usd"`
}

func (s *HTTPSource) TokenPriceUSD(ctx context.Context, chainID uint64, token common.Address) (*amount.Amount, error) {
	q := url.Values{}
	q.Set("chain", fmt.Sprintf("%d", chainID))
	q.Set("token", token.Hex())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errno.ErrPriceUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errno.ErrPriceUnavailable
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errno.ErrPriceUnavailable
	}

	return scalePrice(body.PriceUSD)
}

func (s *HTTPSource) NativePriceUSD(ctx context.Context, chainID uint64) (*amount.Amount, error) {
	return s.TokenPriceUSD(ctx, chainID, common.Address{})
}

// scalePrice 将十进制美元报价转换为 1e8 定标整数。
// 报价缺失或为零一律视为不可用：绝不允许静默按零收费。
func scalePrice(priceUSD string) (*amount.Amount, error) {
	d, err := decimal.NewFromString(priceUSD)
	if err != nil {
		return nil, errno.ErrPriceUnavailable
	}
	scaled := d.Shift(ScaleDecimals).Truncate(0).BigInt()
	if scaled.Sign() <= 0 {
		return nil, errno.ErrPriceUnavailable
	}
	return scaled, nil
}
