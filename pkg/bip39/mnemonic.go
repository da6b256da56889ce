package bip39

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"wallet-vault/pkg/errno"
)

// MnemonicService 提供助记词相关的功能
type MnemonicService struct{}

// NewMnemonicService 创建一个新的助记词服务实例
func NewMnemonicService() *MnemonicService {
	return &MnemonicService{}
}

// GenerateMnemonic 生成一个新的随机助记词 (BIP-39)。
// bitSize: 熵的位数，通常为 128 (12个单词) 或 256 (24个单词)。
func (s *MnemonicService) GenerateMnemonic(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("生成熵失败: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("生成助记词失败: %w", err)
	}

	return mnemonic, nil
}

// Parse 规范化并校验助记词，无效时返回 errno.ErrInvalidMnemonic
func (s *MnemonicService) Parse(mnemonic string) (string, error) {
	m := Normalize(mnemonic)
	if m == "" {
		return "", errno.ErrInvalidMnemonic
	}
	if _, err := bip39.EntropyFromMnemonic(m); err != nil {
		return "", fmt.Errorf("%w: %v", errno.ErrInvalidMnemonic, err)
	}
	return m, nil
}

// MnemonicToSeed 将助记词转换为种子 (BIP-39 Seed)。
// password: 可选的密码 (Passphrase)，不需要时传空字符串 ""。
func (s *MnemonicService) MnemonicToSeed(mnemonic string, password string) []byte {
	return bip39.NewSeed(Normalize(mnemonic), password)
}

// Normalize 去掉首尾空白并把连续空白折叠为单个空格，统一小写
func Normalize(mnemonic string) string {
	return strings.ToLower(strings.Join(strings.Fields(mnemonic), " "))
}
