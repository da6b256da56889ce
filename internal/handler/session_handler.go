package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"wallet-vault/internal/handler/request"
	"wallet-vault/internal/handler/response"
)

// Unlock 校验密码并缓存到会话
// POST /api/v1/session/unlock
func (h *Handler) Unlock(c *gin.Context) {
	var req request.UnlockRequest
	if !bind(c, &req) {
		return
	}
	ok, err := h.app.Unlock(c.Request.Context(), req.Password, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unlocked": true, "session": ok})
}

// Lock 清除会话
// POST /api/v1/session/lock
func (h *Handler) Lock(c *gin.Context) {
	h.app.Lock(c.Request.Context())
	response.Success(c, nil)
}

// Extend 延长会话有效期
// POST /api/v1/session/extend
func (h *Handler) Extend(c *gin.Context) {
	var req request.ExtendRequest
	if !bind(c, &req) {
		return
	}
	ok := h.app.Sessions.Extend(c.Request.Context(), time.Duration(req.TTLSeconds)*time.Second)
	response.Success(c, gin.H{"session": ok})
}

// SessionStatus GET /api/v1/session
func (h *Handler) SessionStatus(c *gin.Context) {
	_, ok := h.app.Sessions.Recall(c.Request.Context())
	response.Success(c, gin.H{"session": ok})
}
