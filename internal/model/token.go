package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenRecord 钱包下的代币元数据，归属于唯一一个 WalletRecord
type TokenRecord struct {
	ContractAddress string          `json:"contractAddress" binding:"required,hexaddr"` // 小写存储
	Name            string          `json:"name" binding:"required"`
	Symbol          string          `json:"symbol" binding:"required"`
	Decimals        int             `json:"decimals" binding:"gte=0,lte=255"`
	Balance         decimal.Decimal `json:"balance"`
	RawBalance      string          `json:"rawBalance"`
	NetworkLabel    string          `json:"networkLabel"`
	Verified        bool            `json:"verified"`
	AddedAt         time.Time       `json:"addedAt"`
	LastUpdatedAt   time.Time       `json:"lastUpdatedAt"`
}

// TokenMap 是 TokenVault 加密 blob 的内容：walletID -> 代币列表
type TokenMap map[string][]TokenRecord
