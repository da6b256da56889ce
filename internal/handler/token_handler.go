package handler

import (
	"github.com/gin-gonic/gin"

	"wallet-vault/internal/handler/request"
	"wallet-vault/internal/handler/response"
)

// walletExists 确认钱包存在 (同时校验密码)，失败时已写入错误响应
func (h *Handler) walletExists(c *gin.Context, pw string) bool {
	if _, err := h.app.Wallets.Get(c.Request.Context(), c.Param("id"), pw); err != nil {
		response.Error(c, err)
		return false
	}
	return true
}

// ListTokens GET /api/v1/wallets/:id/tokens
func (h *Handler) ListTokens(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok || !h.walletExists(c, pw) {
		return
	}
	tokens, err := h.app.Tokens.List(c.Request.Context(), c.Param("id"), pw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"tokens": tokens})
}

// AddToken POST /api/v1/wallets/:id/tokens
func (h *Handler) AddToken(c *gin.Context) {
	var req request.AddTokenRequest
	if !bind(c, &req) {
		return
	}
	pw, ok := h.password(c)
	if !ok || !h.walletExists(c, pw) {
		return
	}
	rec, err := h.app.Tokens.Add(c.Request.Context(), c.Param("id"), req.Record(), pw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec)
}

// RemoveToken DELETE /api/v1/wallets/:id/tokens/:contract
func (h *Handler) RemoveToken(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok {
		return
	}
	if err := h.app.Tokens.Remove(c.Request.Context(), c.Param("id"), c.Param("contract"), pw); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MigrateTokens 把遗留的明文代币数据迁移进加密金库
// POST /api/v1/tokens/migrate
func (h *Handler) MigrateTokens(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok {
		return
	}
	res, err := h.app.Tokens.Migrate(c.Request.Context(), pw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
