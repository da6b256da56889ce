package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"wallet-vault/pkg/errno"
)

type tokenForm struct {
	ContractAddress string `binding:"required,hexaddr"`
	Symbol          string `binding:"required"`
	Decimals        int    `binding:"gte=0,lte=36"`
}

func TestStruct(t *testing.T) {
	cases := []struct {
		name string
		in   tokenForm
		want error
	}{
		{"ok", tokenForm{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "USDT", 6}, nil},
		{"bad address", tokenForm{"not-a-hex-address", "USDT", 6}, errno.ErrInvalidAddressFormat},
		{"bad address wins over missing symbol", tokenForm{"0x12", "", 6}, errno.ErrInvalidAddressFormat},
		{"missing symbol", tokenForm{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "", 6}, errno.ErrMissingRequiredField},
		{"missing address", tokenForm{"", "USDT", 6}, errno.ErrMissingRequiredField},
		{"negative decimals", tokenForm{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "USDT", -1}, errno.ErrBind},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Struct(c.in)
			if c.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestGetErrorMsg(t *testing.T) {
	err := Struct(tokenForm{"", "", 6})
	msg := GetErrorMsg(err)
	assert.Contains(t, msg, "ContractAddress 不能为空")
	assert.Contains(t, msg, "Symbol 不能为空")

	assert.Equal(t, "请求参数错误", GetErrorMsg(assert.AnError))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Tether", Sanitize(`<script>alert(1)</script>Tether`, 64))
	assert.Equal(t, "bold", Sanitize(`  <b>bold</b>  `, 64))
	assert.Equal(t, "USDT", Sanitize("USDT<img src=x onerror=alert(1)>", 16))
	assert.Equal(t, strings.Repeat("a", 16), Sanitize(strings.Repeat("a", 40), 16))
	assert.Equal(t, "钱包钱包", Sanitize("钱包钱包钱包", 4))
}
