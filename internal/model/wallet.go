package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
)

// WalletRecord 钱包记录，只以加密形式落盘
// PrivateKey / Mnemonic 只允许出现在加密信封内，日志与 API 输出都经过脱敏
type WalletRecord struct {
	ID               string          `json:"id"` // uuid v4，创建后不可变
	Address          string          `json:"address"`
	PrivateKey       string          `json:"privateKey"`
	Mnemonic         string          `json:"mnemonic,omitempty"` // 仅 HD 派生的钱包
	DerivationPath   string          `json:"derivationPath,omitempty"`
	Alias            string          `json:"alias"`
	CreatedAt        time.Time       `json:"createdAt"`
	IsImported       bool            `json:"isImported"`
	CachedBalance    decimal.Decimal `json:"cachedBalance"` // 展示用缓存，不具权威性
	BalanceUpdatedAt time.Time       `json:"balanceUpdatedAt"`
}

// WalletData 是 WalletVault.Add 的输入
type WalletData struct {
	Address        string
	PrivateKey     string
	Mnemonic       string
	DerivationPath string
	IsImported     bool
}

// WalletView 对外展示的钱包信息，不含任何密钥材料
type WalletView struct {
	ID               string          `json:"id"`
	Address          string          `json:"address"`
	Alias            string          `json:"alias"`
	CreatedAt        time.Time       `json:"created_at"`
	IsImported       bool            `json:"is_imported"`
	HasMnemonic      bool            `json:"has_mnemonic"`
	DerivationPath   string          `json:"derivation_path,omitempty"`
	CachedBalance    decimal.Decimal `json:"cached_balance"`
	BalanceUpdatedAt time.Time       `json:"balance_updated_at"`
	Active           bool            `json:"active"`
}

func (w WalletRecord) View(activeID string) WalletView {
	return WalletView{
		ID:               w.ID,
		Address:          w.Address,
		Alias:            w.Alias,
		CreatedAt:        w.CreatedAt,
		IsImported:       w.IsImported,
		HasMnemonic:      w.Mnemonic != "",
		DerivationPath:   w.DerivationPath,
		CachedBalance:    w.CachedBalance,
		BalanceUpdatedAt: w.BalanceUpdatedAt,
		Active:           w.ID == activeID,
	}
}

func (w WalletRecord) String() string {
	return fmt.Sprintf("WalletRecord{ID:%s Address:%s Alias:%q PrivateKey:[REDACTED]}", w.ID, w.Address, w.Alias)
}

// MarshalLogObject 让 zap.Object 只输出非敏感字段
func (w WalletRecord) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", w.ID)
	enc.AddString("address", w.Address)
	enc.AddString("alias", w.Alias)
	enc.AddBool("imported", w.IsImported)
	return nil
}
