package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"wallet-vault/internal/handler/request"
	"wallet-vault/internal/handler/response"
	"wallet-vault/pkg/errno"
)

// DestroyVault 删除全部钱包、代币与会话，不可恢复
// DELETE /api/v1/vault
func (h *Handler) DestroyVault(c *gin.Context) {
	var req request.DestroyRequest
	if !bind(c, &req) {
		return
	}
	if !req.Confirm {
		response.Error(c, fmt.Errorf("%w: confirm", errno.ErrMissingRequiredField))
		return
	}
	if err := h.app.DestroyAll(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
