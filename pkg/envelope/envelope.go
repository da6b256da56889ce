// Package envelope 实现基于密码的认证加密信封。
//
// 序列化格式 (base64 std):
//
//	magic(8) || formatVer(1) || log2N(1) || r(4) || p(4) || salt(32) || nonce(12) || ciphertext
//
// 头部整体作为 AES-GCM 的附加认证数据，密文内部是
// {"payload": ..., "timestamp": <unix ms>, "formatVersion": 1} 的 JSON。
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/crypto/scrypt"

	"wallet-vault/pkg/crypto_util"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/safe_random"
)

const (
	magic = "WVENVLP1" // 8 bytes

	// FormatVersion 是当前写入的外层与内层格式版本
	FormatVersion uint8 = 1

	saltLen   = 32
	keyLen    = crypto_util.KeySize
	headerLen = 8 + 1 + 1 + 4 + 4 + saltLen

	// KDF 参数上限。头部参数在校验 GCM 标签之前就用于派生密钥，
	// scrypt 内存 128*r*N 不得超过 maxKDFMemory。
	maxLogN      = 20
	maxR         = 32
	maxP         = 4
	maxKDFMemory = 256 << 20
)

// KDFParams scrypt 参数，N = 2^LogN
type KDFParams struct {
	LogN uint8
	R    uint32
	P    uint32
}

// DefaultKDFParams 新信封使用的默认参数 (N=2^15, ~32MB)
var DefaultKDFParams = KDFParams{LogN: 15, R: 8, P: 1}

func (p KDFParams) validate() error {
	if p.LogN < 10 || p.LogN > maxLogN || p.R == 0 || p.R > maxR || p.P == 0 || p.P > maxP {
		return fmt.Errorf("kdf params out of range (logN=%d r=%d p=%d)", p.LogN, p.R, p.P)
	}
	if mem := p.memory(); mem > maxKDFMemory {
		return fmt.Errorf("kdf params need %d MiB, limit is %d MiB", mem>>20, maxKDFMemory>>20)
	}
	return nil
}

// memory 返回 scrypt 派生所需的近似内存字节数
func (p KDFParams) memory() uint64 {
	return 128 * uint64(p.R) << p.LogN
}

func (p KDFParams) derive(password, salt []byte) ([]byte, error) {
	return scrypt.Key(password, salt, 1<<p.LogN, int(p.R), int(p.P), keyLen)
}

// Meta 是 Open 成功后返回的信封元数据
type Meta struct {
	Timestamp     time.Time
	FormatVersion uint8
	// Stale 表示数据写入时间早于 maxAge，仅作提醒，数据仍然返回
	Stale bool
}

type inner struct {
	Payload       json.RawMessage `json:"payload"`
	Timestamp     int64           `json:"timestamp"`
	FormatVersion uint8           `json:"formatVersion"`
}

// Sealer 负责加密 / 解密信封
type Sealer struct {
	params KDFParams
	clock  clock.Clock
	maxAge time.Duration
}

type Option func(*Sealer)

// WithKDFParams 设置新信封使用的 scrypt 参数
func WithKDFParams(p KDFParams) Option {
	return func(s *Sealer) { s.params = p }
}

// WithClock 注入时钟 (测试使用 clock.NewTestClock)
func WithClock(c clock.Clock) Option {
	return func(s *Sealer) { s.clock = c }
}

// WithMaxAge 设置过期提醒阈值，0 表示不检查
func WithMaxAge(d time.Duration) Option {
	return func(s *Sealer) { s.maxAge = d }
}

// New 创建 Sealer。KDF 参数越界时返回错误。
func New(opts ...Option) (*Sealer, error) {
	s := &Sealer{
		params: DefaultKDFParams,
		clock:  clock.NewDefaultClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.params.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Seal 序列化 payload 并用 password 加密，返回 base64 字符串
func (s *Sealer) Seal(payload any, password string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	plaintext, err := json.Marshal(inner{
		Payload:       raw,
		Timestamp:     s.clock.Now().UnixMilli(),
		FormatVersion: FormatVersion,
	})
	crypto_util.Wipe(raw)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	defer crypto_util.Wipe(plaintext)

	salt, err := safe_random.GenerateRandomBytes(saltLen)
	if err != nil {
		return "", err
	}

	key, err := s.params.derive([]byte(password), salt)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	defer crypto_util.Wipe(key)

	header := encodeHeader(FormatVersion, s.params, salt)
	sealed, err := crypto_util.SealAESGCM(key, plaintext, header)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	return base64.StdEncoding.EncodeToString(append(header, sealed...)), nil
}

// Open 解密信封并把 payload 解码到 out。
// 所有解密、认证与格式错误都返回 errno.ErrWrongPasswordOrCorrupted；
// 版本号未知时返回 errno.ErrUnsupportedFormatVersion。
func (s *Sealer) Open(ciphertext, password string, out any) (*Meta, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, corrupted("base64: %v", err)
	}
	if len(data) < headerLen || !bytes.Equal(data[:8], []byte(magic)) {
		return nil, corrupted("missing envelope header")
	}

	formatVer := data[8]
	if formatVer != FormatVersion {
		return nil, fmt.Errorf("%w: header version %d", errno.ErrUnsupportedFormatVersion, formatVer)
	}

	params := KDFParams{
		LogN: data[9],
		R:    binary.BigEndian.Uint32(data[10:14]),
		P:    binary.BigEndian.Uint32(data[14:18]),
	}
	if err := params.validate(); err != nil {
		return nil, corrupted("%v", err)
	}
	header := data[:headerLen]
	salt := data[headerLen-saltLen : headerLen]

	key, err := params.derive([]byte(password), salt)
	if err != nil {
		return nil, corrupted("derive key: %v", err)
	}
	defer crypto_util.Wipe(key)

	plaintext, err := crypto_util.OpenAESGCM(key, data[headerLen:], header)
	if err != nil {
		return nil, corrupted("decrypt: %v", err)
	}
	defer crypto_util.Wipe(plaintext)

	var env inner
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, corrupted("decode envelope: %v", err)
	}
	if env.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: payload version %d", errno.ErrUnsupportedFormatVersion, env.FormatVersion)
	}
	if len(env.Payload) == 0 {
		return nil, corrupted("empty payload")
	}
	if out != nil {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return nil, corrupted("decode payload: %v", err)
		}
	}

	meta := &Meta{
		Timestamp:     time.UnixMilli(env.Timestamp),
		FormatVersion: env.FormatVersion,
	}
	if s.maxAge > 0 && s.clock.Now().Sub(meta.Timestamp) > s.maxAge {
		meta.Stale = true
	}
	return meta, nil
}

// ForMaxAge 返回共享 KDF 参数与时钟、但过期阈值不同的 Sealer
func (s *Sealer) ForMaxAge(d time.Duration) *Sealer {
	cp := *s
	cp.maxAge = d
	return &cp
}

func encodeHeader(version uint8, p KDFParams, salt []byte) []byte {
	h := make([]byte, headerLen)
	copy(h[:8], magic)
	h[8] = version
	h[9] = p.LogN
	binary.BigEndian.PutUint32(h[10:14], p.R)
	binary.BigEndian.PutUint32(h[14:18], p.P)
	copy(h[18:], salt)
	return h
}

func corrupted(format string, args ...any) error {
	return fmt.Errorf("%w (%s)", errno.ErrWrongPasswordOrCorrupted, fmt.Sprintf(format, args...))
}
