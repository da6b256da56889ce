package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"wallet-vault/pkg/address"
	"wallet-vault/pkg/errno"
)

var (
	once     sync.Once
	validate *validator.Validate
	strict   = bluemonday.StrictPolicy()
)

// Init 复用 gin 的校验引擎 (tag 名为 binding)，并注册自定义规则。可重复调用。
func Init() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
			v.SetTagName("binding")
		}
		// hexaddr: 严格的 0x + 40 位十六进制地址
		_ = v.RegisterValidation("hexaddr", func(fl validator.FieldLevel) bool {
			return address.IsHexAddress(strings.TrimSpace(fl.Field().String()))
		})
		validate = v
	})
}

// Struct 校验结构体，把校验失败映射为 errno：
// 地址格式错误优先返回 ErrInvalidAddressFormat，缺少必填字段返回 ErrMissingRequiredField。
func Struct(s any) error {
	Init()
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msg := GetErrorMsg(validationErrors)
	for _, e := range validationErrors {
		if e.Tag() == "hexaddr" {
			return fmt.Errorf("%w: %s", errno.ErrInvalidAddressFormat, msg)
		}
	}
	for _, e := range validationErrors {
		if e.Tag() == "required" {
			return fmt.Errorf("%w: %s", errno.ErrMissingRequiredField, msg)
		}
	}
	return fmt.Errorf("%w: %s", errno.ErrBind, msg)
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "请求参数错误"
	}

	var errMsgs []string
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
		case "hexaddr":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法的 0x 地址", field))
		case "min", "gte":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能小于 %s", field, param))
		case "max", "lte":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能超过 %s", field, param))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, e.Tag()))
		}
	}
	return strings.Join(errMsgs, "; ")
}

// Sanitize 去掉所有 HTML 标签，压缩首尾空白，并按字符数截断到 maxLen
func Sanitize(s string, maxLen int) string {
	s = strings.TrimSpace(strict.Sanitize(s))
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}
