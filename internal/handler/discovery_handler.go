package handler

import (
	"github.com/gin-gonic/gin"

	"wallet-vault/internal/handler/request"
	"wallet-vault/internal/handler/response"
	"wallet-vault/internal/model"
	"wallet-vault/pkg/errno"
)

type discoveryView struct {
	Accounts      []model.DiscoveredAccount `json:"accounts"`
	Active        int                       `json:"active"`
	ProbeFailures int                       `json:"probe_failures"`
	Code          int                       `json:"code"`
	Error         string                    `json:"error,omitempty"`
}

// Discover 对每个助记词执行账户发现，单个助记词失败不影响其他结果
// POST /api/v1/discovery
func (h *Handler) Discover(c *gin.Context) {
	var req request.DiscoverRequest
	if !bind(c, &req) {
		return
	}

	results := h.app.Discovery.DiscoverAll(c.Request.Context(), req.Mnemonics)
	out := make([]discoveryView, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			code, msg := errno.Decode(r.Err)
			out = append(out, discoveryView{Accounts: []model.DiscoveredAccount{}, Code: code, Error: msg})
			continue
		}
		out = append(out, discoveryView{
			Accounts:      r.Result.Accounts,
			Active:        len(r.Result.Active),
			ProbeFailures: r.Result.ProbeFailures,
		})
	}
	response.Success(c, gin.H{"results": out})
}

// ImportDiscovered 把选中的派生索引导入金库，已存在的地址跳过
// POST /api/v1/discovery/import
func (h *Handler) ImportDiscovered(c *gin.Context) {
	var req request.ImportDiscoveredRequest
	if !bind(c, &req) {
		return
	}
	pw, ok := h.password(c)
	if !ok {
		return
	}
	res, err := h.app.ImportDiscovered(c.Request.Context(), req.Mnemonic, req.Indexes, pw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"added": views(res.Added, ""), "skipped": res.Skipped})
}
