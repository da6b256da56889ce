package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet-vault/pkg/errno"
)

// Response 统一响应结构，code 为 errno 编码
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    any    `json:"data"`
}

// 业务错误码对应的 HTTP 状态码，未列出的按 500 处理
var statusByCode = map[int]int{
	errno.OK.Code: http.StatusOK,

	errno.ErrBind.Code:                 http.StatusBadRequest,
	errno.ErrInvalidMnemonic.Code:      http.StatusBadRequest,
	errno.ErrInvalidAddressFormat.Code: http.StatusBadRequest,
	errno.ErrMissingRequiredField.Code: http.StatusBadRequest,

	errno.ErrPasswordRequired.Code:         http.StatusUnauthorized,
	errno.ErrWrongPasswordOrCorrupted.Code: http.StatusUnauthorized,

	errno.ErrNotFound.Code:       http.StatusNotFound,
	errno.ErrNoActiveWallet.Code: http.StatusNotFound,

	errno.ErrDuplicateAddress.Code: http.StatusConflict,
	errno.ErrDuplicateToken.Code:   http.StatusConflict,

	errno.ErrUnsupportedFormatVersion.Code: http.StatusUnprocessableEntity,

	errno.ErrStorageUnavailable.Code: http.StatusServiceUnavailable,
	errno.ErrProbeUnavailable.Code:   http.StatusServiceUnavailable,
	errno.ErrProbeTimeout.Code:       http.StatusGatewayTimeout,
}

// StatusOf 返回业务错误码对应的 HTTP 状态码
func StatusOf(code int) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Success 返回成功响应，data 为 nil 时输出空对象
func Success(c *gin.Context, data any) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error 按 errno 编码返回错误响应。消息是完整错误链，不含密钥材料。
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	c.JSON(StatusOf(code), Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}
