package bip39

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-vault/pkg/errno"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonic(t *testing.T) {
	s := NewMnemonicService()

	m, err := s.GenerateMnemonic(128)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 12)
	_, err = s.Parse(m)
	assert.NoError(t, err)

	m, err = s.GenerateMnemonic(256)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 24)

	_, err = s.GenerateMnemonic(100)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	s := NewMnemonicService()

	got, err := s.Parse("  ABANDON abandon abandon abandon abandon abandon\tabandon abandon abandon abandon abandon   about ")
	require.NoError(t, err)
	assert.Equal(t, abandonMnemonic, got)

	for _, bad := range []string{
		"",
		"   ",
		"not a mnemonic at all",
		// 校验和错误
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon",
	} {
		_, err := s.Parse(bad)
		assert.ErrorIs(t, err, errno.ErrInvalidMnemonic, "mnemonic %q", bad)
	}
}

func TestMnemonicToSeed(t *testing.T) {
	s := NewMnemonicService()

	seed := s.MnemonicToSeed(abandonMnemonic, "")
	assert.Len(t, seed, 64)
	// 格式差异不影响种子
	assert.Equal(t, seed, s.MnemonicToSeed(" "+strings.ToUpper(abandonMnemonic), ""))
	assert.NotEqual(t, seed, s.MnemonicToSeed(abandonMnemonic, "TREZOR"))
}
