package bip32

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Keychain 实现了 ExtendedKey 接口，封装了 hdkeychain.ExtendedKey
type Keychain struct {
	key *hdkeychain.ExtendedKey
}

func (k *Keychain) String() string {
	return k.key.String()
}

func (k *Keychain) ECPubKey() (*btcec.PublicKey, error) {
	return k.key.ECPubKey()
}

func (k *Keychain) ECPrivKey() (*btcec.PrivateKey, error) {
	return k.key.ECPrivKey()
}

func (k *Keychain) Derive(index uint32) (ExtendedKey, error) {
	childKey, err := k.key.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("派生子密钥失败: %w", err)
	}
	return &Keychain{key: childKey}, nil
}

// Wallet 持有主密钥，按路径派生账户密钥
type Wallet struct {
	masterKey *Keychain
}

// NewMasterKeyFromSeed 使用 BIP-39 种子生成主密钥
// network 只影响 xprv/xpub 序列化前缀，为 nil 时使用 chaincfg.MainNetParams
func NewMasterKeyFromSeed(seed []byte, network *chaincfg.Params) (*Wallet, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, ErrInvalidSeed
	}

	if network == nil {
		network = &chaincfg.MainNetParams
	}

	masterKey, err := hdkeychain.NewMaster(seed, network)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}

	return &Wallet{masterKey: &Keychain{key: masterKey}}, nil
}

// DerivePath 解析路径并派生密钥
// 支持格式: m/44'/60'/0'/0/0 或 m/44h/60h/0h/0/0
func (w *Wallet) DerivePath(path string) (ExtendedKey, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	var current ExtendedKey = w.masterKey
	for _, index := range indexes {
		current, err = current.Derive(index)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// ParsePath 把派生路径解析为索引序列，硬化索引已加上 HardenedKeyStart
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %q 必须以 m/ 开头", ErrInvalidPath, path)
	}

	segments := strings.Split(path[2:], "/")
	indexes := make([]uint32, 0, len(segments))
	for _, segment := range segments {
		isHardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			isHardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 32)
		if err != nil || val >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: 无效的路径段 '%s'", ErrInvalidPath, segment)
		}
		index := uint32(val)
		if isHardened {
			index += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

// FormatPath 用模板 (如 "m/44'/60'/0'/0/%d") 生成第 index 个账户的路径
func FormatPath(template string, index uint32) string {
	return fmt.Sprintf(template, index)
}
