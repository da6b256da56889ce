package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"wallet-vault/internal/handler/request"
	"wallet-vault/internal/handler/response"
	"wallet-vault/internal/model"
	"wallet-vault/internal/service/discovery"
	"wallet-vault/pkg/address"
	"wallet-vault/pkg/errno"
)

func views(wallets []model.WalletRecord, activeID string) []model.WalletView {
	out := make([]model.WalletView, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, w.View(activeID))
	}
	return out
}

// addedView 新增成功后的视图。第一个钱包由 Add 设为活动钱包；
// 活动指针读取失败不影响已完成的写入，此时按非活动返回。
func (h *Handler) addedView(c *gin.Context, rec *model.WalletRecord) model.WalletView {
	active, _, err := h.app.Wallets.Active(c.Request.Context())
	if err != nil {
		active = ""
	}
	return rec.View(active)
}

// ListWallets GET /api/v1/wallets
func (h *Handler) ListWallets(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok {
		return
	}
	listing, err := h.app.Wallets.List(c.Request.Context(), pw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"wallets":   views(listing.Wallets, listing.ActiveID),
		"active_id": listing.ActiveID,
		"created":   !listing.Missing,
	})
}

// GetWallet GET /api/v1/wallets/:id
func (h *Handler) GetWallet(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rec, err := h.app.Wallets.Get(ctx, c.Param("id"), pw)
	if err != nil {
		response.Error(c, err)
		return
	}
	active, _, err := h.app.Wallets.Active(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec.View(active))
}

// GenerateWallet 生成新助记词钱包，助记词只在本次响应中返回
// POST /api/v1/wallets/generate
func (h *Handler) GenerateWallet(c *gin.Context) {
	var req request.GenerateWalletRequest
	if !bind(c, &req) {
		return
	}
	pw, ok := h.password(c)
	if !ok {
		return
	}

	bits := 128
	if req.Words == 24 {
		bits = 256
	}
	data, err := h.app.Discovery.GenerateWallet(bits)
	if err != nil {
		response.Error(c, err)
		return
	}
	rec, err := h.app.Wallets.Add(c.Request.Context(), data, pw, req.Alias)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"wallet": h.addedView(c, rec), "mnemonic": data.Mnemonic})
}

// ImportWallet 从私钥或助记词 (指定索引) 导入
// POST /api/v1/wallets/import
func (h *Handler) ImportWallet(c *gin.Context) {
	var req request.ImportWalletRequest
	if !bind(c, &req) {
		return
	}
	if req.PrivateKey != "" && req.Mnemonic != "" {
		response.Error(c, fmt.Errorf("%w: private_key and mnemonic are mutually exclusive", errno.ErrBind))
		return
	}
	pw, ok := h.password(c)
	if !ok {
		return
	}

	var data model.WalletData
	if strings.TrimSpace(req.PrivateKey) != "" {
		key, addr, err := address.NewETHGenerator().FromPrivateKeyHex(req.PrivateKey)
		if err != nil {
			response.Error(c, fmt.Errorf("%w: %v", errno.ErrBind, err))
			return
		}
		data = model.WalletData{Address: addr, PrivateKey: key, IsImported: true}
	} else {
		acc, err := h.app.Discovery.Derive(req.Mnemonic, req.Index)
		if err != nil {
			response.Error(c, err)
			return
		}
		data = discovery.ToWalletData(*acc, req.Mnemonic)
	}

	rec, err := h.app.Wallets.Add(c.Request.Context(), data, pw, req.Alias)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.addedView(c, rec))
}

// RenameWallet PATCH /api/v1/wallets/:id
func (h *Handler) RenameWallet(c *gin.Context) {
	var req request.RenameWalletRequest
	if !bind(c, &req) {
		return
	}
	pw, ok := h.password(c)
	if !ok {
		return
	}
	if err := h.app.Wallets.Rename(c.Request.Context(), c.Param("id"), req.Alias, pw); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveWallet 删除钱包及其代币
// DELETE /api/v1/wallets/:id
func (h *Handler) RemoveWallet(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok {
		return
	}
	if err := h.app.Wallets.Remove(c.Request.Context(), c.Param("id"), pw); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ActiveWallet GET /api/v1/wallets/active
func (h *Handler) ActiveWallet(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok {
		return
	}
	rec, err := h.app.Wallets.ActiveWallet(c.Request.Context(), pw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec.View(rec.ID))
}

// SetActiveWallet PUT /api/v1/wallets/active
func (h *Handler) SetActiveWallet(c *gin.Context) {
	var req request.SetActiveRequest
	if !bind(c, &req) {
		return
	}
	pw, ok := h.password(c)
	if !ok {
		return
	}
	if err := h.app.Wallets.SetActive(c.Request.Context(), req.ID, pw); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"active_id": req.ID})
}

type failureView struct {
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error"`
}

// RefreshBalances 刷新全部钱包的原生余额与代币余额
// POST /api/v1/wallets/refresh
func (h *Handler) RefreshBalances(c *gin.Context) {
	pw, ok := h.password(c)
	if !ok {
		return
	}
	sum, err := h.app.RefreshAll(c.Request.Context(), pw)
	if err != nil {
		response.Error(c, err)
		return
	}

	failures := make([]failureView, 0, sum.Wallets.Failed+sum.Tokens.Failed)
	for _, f := range sum.Wallets.Failures {
		failures = append(failures, failureView{ID: f.WalletID, Address: f.Address, Error: f.Err.Error()})
	}
	for id, err := range sum.Tokens.Errors {
		failures = append(failures, failureView{ID: id, Error: "tokens: " + err.Error()})
	}

	active, _, _ := h.app.Wallets.Active(c.Request.Context())
	response.Success(c, gin.H{
		"wallets":        views(sum.Wallets.Wallets, active),
		"succeeded":      sum.Wallets.Succeeded,
		"failed":         sum.Wallets.Failed,
		"tokens_updated": sum.Tokens.Updated,
		"tokens_added":   sum.Tokens.Added,
		"failures":       failures,
	})
}
