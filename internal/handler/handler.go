package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"wallet-vault/internal/app"
	"wallet-vault/internal/handler/response"
	"wallet-vault/pkg/errno"
	"wallet-vault/pkg/validator"
)

// PasswordHeader 请求级密码。缺省时使用会话中缓存的密码。
const PasswordHeader = "X-Wallet-Password"

type Handler struct {
	app *app.App
}

func New(a *app.App) *Handler {
	return &Handler{app: a}
}

// password 取请求密码，失败时已写入错误响应
func (h *Handler) password(c *gin.Context) (string, bool) {
	pw, err := h.app.Password(c.Request.Context(), c.GetHeader(PasswordHeader))
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	return pw, true
}

// bind 绑定 JSON 请求体，失败时已写入 ErrBind 响应
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, fmt.Errorf("%w: %s", errno.ErrBind, validator.GetErrorMsg(err)))
		return false
	}
	return true
}

// HealthCheck 检查存储是否可读
func (h *Handler) HealthCheck(c *gin.Context) {
	if _, _, err := h.app.Wallets.Active(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}
