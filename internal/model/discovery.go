package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscoveredAccount 账户发现的中间结果，不直接持久化
type DiscoveredAccount struct {
	Index            uint32          `json:"index"`
	Address          string          `json:"address"`
	PrivateKey       string          `json:"-"`
	DerivationPath   string          `json:"derivation_path"`
	HasActivity      bool            `json:"has_activity"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int             `json:"transaction_count"`
	TokenCount       int             `json:"token_count"`
	ProbeFailures    int             `json:"probe_failures,omitempty"`
}

func (a DiscoveredAccount) String() string {
	return fmt.Sprintf("DiscoveredAccount{Index:%d Address:%s Active:%t PrivateKey:[REDACTED]}", a.Index, a.Address, a.HasActivity)
}

// Activity 是三个链上探测组合后的结果
type Activity struct {
	HasActivity      bool
	Balance          decimal.Decimal
	TransactionCount int
	Tokens           []TokenRecord
	// Failures 失败 (含超时) 的探测数，失败项按 "无活动" 处理
	Failures int
	// Err 第一个失败的原因
	Err error
}
