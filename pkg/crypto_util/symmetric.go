package crypto_util

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"io"

	"wallet-vault/pkg/safe_random"
)

// ErrCiphertextTooShort 密文长度不足以包含 nonce 与 GCM tag
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// KeySize AES-256 密钥长度
const KeySize = 32

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SealAESGCM 使用给定的密钥对明文进行 AES-GCM 加密，返回 nonce + 密文。
// 密钥必须是 16、24 或 32 字节长；aad 不加密，只参与 tag 计算，可为 nil。
func SealAESGCM(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(safe_random.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// OpenAESGCM 解密 SealAESGCM 的输出。aad 必须与加密时一致，否则认证失败。
func OpenAESGCM(key, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, aad)
}

// Wipe 将敏感字节清零（派生密钥、解密后的明文）
func Wipe(b []byte) {
	clear(b)
}
