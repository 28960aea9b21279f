package request

// CreateTransferRequest 发起转账/解除屏蔽
// Amount 是代币基础单位的十进制整数字符串，服务端拒绝小数。
type CreateTransferRequest struct {
	WalletID         string `json:"wallet_id" binding:"required"`
	TokenAddress     string `json:"token_address"` // 空或零地址为原生币
	RecipientAddress string `json:"recipient_address" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	FeeTokenDecimals uint8  `json:"fee_token_decimals" binding:"required,max=36"`
}

// HistoryRequest 查询提交历史
type HistoryRequest struct {
	WalletID string `form:"wallet_id" binding:"required"`
	Limit    int    `form:"limit"`
}
