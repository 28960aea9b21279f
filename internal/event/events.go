package event

// TransferSettledEvent 转账终态事件
// Topic: shield_events_transfer
type TransferSettledEvent struct {
	AttemptID    uint64 `json:"attempt_id"`
	WalletID     string `json:"wallet_id"`
	ChainID      uint64 `json:"chain_id"`
	TxHash       string `json:"tx_hash"`
	UsedRelayer  bool   `json:"used_relayer"`
	PrivacyLevel string `json:"privacy_level"`
	GrossAmount  string `json:"gross_amount"` // 整数基础单位
	Status       string `json:"status"`       // SUBMITTED, FAILED
}

// TopicTransfer 转账事件主题
const TopicTransfer = "shield_events_transfer"
