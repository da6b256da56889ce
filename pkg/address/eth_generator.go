package address

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"wallet-vault/pkg/errno"
)

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ETHGenerator 以太坊地址生成器
type ETHGenerator struct{}

func NewETHGenerator() *ETHGenerator {
	return &ETHGenerator{}
}

// PubKeyToAddress 将公钥字节 (非压缩格式, 65 bytes, 0x04...) 转换为 EIP-55 地址
func (g *ETHGenerator) PubKeyToAddress(pubKeyBytes []byte) (string, error) {
	if len(pubKeyBytes) == 65 && pubKeyBytes[0] == 0x04 {
		pubKeyBytes = pubKeyBytes[1:]
	}
	if len(pubKeyBytes) != 64 {
		return "", fmt.Errorf("公钥长度错误: %d", len(pubKeyBytes))
	}

	// Keccak-256 后取后 20 字节
	hash := keccak256(pubKeyBytes)
	addressHex := hex.EncodeToString(hash[12:])
	return "0x" + toChecksumAddress(addressHex), nil
}

// FromECPubKey 由 HD 派生得到的 secp256k1 公钥生成地址
func (g *ETHGenerator) FromECPubKey(pub *btcec.PublicKey) (string, error) {
	return g.PubKeyToAddress(pub.SerializeUncompressed())
}

// FromPrivateKeyHex 校验私钥 (可带 0x 前缀) 并返回规范化的私钥 Hex 与地址
func (g *ETHGenerator) FromPrivateKeyHex(keyHex string) (string, string, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return "", "", fmt.Errorf("invalid private key: %w", err)
	}
	addr, err := g.PubKeyToAddress(crypto.FromECDSAPub(&key.PublicKey))
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), addr, nil
}

// IsHexAddress 严格检查 0x + 40 位十六进制
func IsHexAddress(s string) bool {
	return hexAddressPattern.MatchString(s)
}

// Normalize 校验地址格式并转为小写，格式错误返回 errno.ErrInvalidAddressFormat
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", errno.ErrInvalidAddressFormat, s)
	}
	return strings.ToLower(s), nil
}

// Checksum 返回 EIP-55 形式的地址
func Checksum(s string) (string, error) {
	n, err := Normalize(s)
	if err != nil {
		return "", err
	}
	return "0x" + toChecksumAddress(n[2:]), nil
}

func keccak256(data []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	return hash.Sum(nil)
}

// toChecksumAddress 实现 EIP-55 混合大小写校验
func toChecksumAddress(address string) string {
	address = strings.ToLower(address)
	hexHash := hex.EncodeToString(keccak256([]byte(address)))

	var sb strings.Builder
	for i := 0; i < len(address); i++ {
		char := address[i]
		// hash 的第 i 位 >= 8 时大写
		if hexCharToInt(hexHash[i]) >= 8 {
			sb.WriteString(strings.ToUpper(string(char)))
		} else {
			sb.WriteByte(char)
		}
	}
	return sb.String()
}

func hexCharToInt(c byte) byte {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 10
	}
	return 0
}
