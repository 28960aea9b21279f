package model

import (
	"time"

	"gorm.io/gorm"
)

// TransferAttempt 提交历史表。
// 金额用 decimal(78,0) 存整数基础单位，uint256 全域不丢精度。
type TransferAttempt struct {
	ID               uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID         string         `gorm:"type:varchar(128);not null;index" json:"wallet_id"`
	ChainID          uint64         `gorm:"not null" json:"chain_id"`
	TokenAddress     string         `gorm:"type:varchar(42);not null" json:"token_address"`
	RecipientAddress string         `gorm:"type:varchar(42);not null" json:"recipient_address"`
	GrossAmount      string         `gorm:"type:decimal(78,0);not null" json:"gross_amount"`
	RecipientAmount  string         `gorm:"type:decimal(78,0)" json:"recipient_amount"`
	RelayerFee       string         `gorm:"type:decimal(78,0)" json:"relayer_fee"`
	GasFee           string         `gorm:"type:decimal(78,0)" json:"gas_fee"`
	ProtocolFee      string         `gorm:"type:decimal(78,0)" json:"protocol_fee"`
	TxHash           string         `gorm:"type:varchar(66);index" json:"tx_hash"`
	UsedRelayer      bool           `json:"used_relayer"`
	PrivacyLevel     string         `gorm:"type:varchar(20)" json:"privacy_level"`
	Status           string         `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SUBMITTED, FAILED
	FailStage        string         `gorm:"type:varchar(50)" json:"fail_stage,omitempty"`
	FailReason       string         `gorm:"type:text" json:"fail_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (TransferAttempt) TableName() string {
	return "transfer_attempts"
}
