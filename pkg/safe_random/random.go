package safe_random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Reader 是一个全局共享的加密安全随机数生成器实例。
// 默认为 crypto/rand.Reader，测试中可替换为失败的 Reader。
var Reader io.Reader = rand.Reader

// GenerateRandomBytes 生成指定长度的安全随机字节切片。
// 如果系统的安全随机数生成器失败，将返回错误。
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, fmt.Errorf("生成随机字节失败: %w", err)
	}
	return b, nil
}

// SessionTokenSize 会话 token 的字节数 (256 bit)
const SessionTokenSize = 32

// NewSessionToken 生成会话 token，返回原始字节与其 Hex 表示
func NewSessionToken() ([]byte, string, error) {
	b, err := GenerateRandomBytes(SessionTokenSize)
	if err != nil {
		return nil, "", err
	}
	return b, hex.EncodeToString(b), nil
}

// ParseSessionToken 将 Hex token 还原为字节，长度不符时报错
func ParseSessionToken(token string) ([]byte, error) {
	b, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if len(b) != SessionTokenSize {
		return nil, fmt.Errorf("invalid session token length %d", len(b))
	}
	return b, nil
}
