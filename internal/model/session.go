package model

import "time"

// SessionEntry 会话条目，只存在于非持久化缓存中
type SessionEntry struct {
	SessionToken      string    `json:"sessionToken"` // 32 字节随机数的 Hex
	EncryptedPassword []byte    `json:"encryptedPassword"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// Expired 判断条目在 now 时是否已过期
func (e SessionEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
