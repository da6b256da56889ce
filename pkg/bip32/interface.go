package bip32

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ExtendedKey 包装了 BIP-32 扩展密钥
type ExtendedKey interface {
	// String 返回 Base58 编码的密钥字符串 (xprv... / xpub...)
	String() string
	// ECPubKey 用于获取底层的 EC 公钥
	ECPubKey() (*btcec.PublicKey, error)
	// ECPrivKey 用于获取底层的 EC 私钥
	ECPrivKey() (*btcec.PrivateKey, error)
	// Derive 根据索引派生子密钥
	Derive(index uint32) (ExtendedKey, error)
}

var (
	ErrInvalidSeed = errors.New("无效的种子")
	ErrInvalidPath = errors.New("无效的派生路径")
)
