package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"propmarket/internal/service"
	"propmarket/internal/wallet"
)

// AdminHandler groups the operations reserved for the platform admin
// address: tokenizer grants, fee settings, deposits and account freezes.
// The services enforce the admin check themselves; the handler only shapes
// requests.
type AdminHandler struct {
	Registry  *service.PropertyRegistryService
	Settings  *service.SettingsService
	Accounts  *service.AccountService
	Snapshots *service.PoolSnapshotService
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/admin")
	g.GET("/tokenizers", h.listTokenizers)
	g.POST("/tokenizers", h.grantTokenizer)
	g.DELETE("/tokenizers/:address", h.revokeTokenizer)
	g.PUT("/fee", h.setFee)
	g.PUT("/fee-recipient", h.setFeeRecipient)
	g.GET("/settings", h.listSettings)
	g.POST("/accounts/:address/deposit", h.deposit)
	g.POST("/accounts/:address/freeze", h.freeze)
	g.POST("/accounts/:address/unfreeze", h.unfreeze)
	g.POST("/snapshots/run", h.runSnapshots)
}

func (h *AdminHandler) listTokenizers(c *gin.Context) {
	items, err := h.Registry.ListTokenizers(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, nil)
}

type grantTokenizerRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *AdminHandler) grantTokenizer(c *gin.Context) {
	var req grantTokenizerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	address := wallet.Normalize(req.Address)
	if err := h.Registry.GrantTokenizer(c.Request.Context(), call, address); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"granted": address}, nil)
}

func (h *AdminHandler) revokeTokenizer(c *gin.Context) {
	address := wallet.Normalize(c.Param("address"))
	if address == "" {
		Error(c, http.StatusBadRequest, "invalid address", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	if err := h.Registry.RevokeTokenizer(c.Request.Context(), call, address); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"revoked": address}, nil)
}

type setFeeRequest struct {
	FeeBP *int64 `json:"fee_bp" binding:"required"`
}

func (h *AdminHandler) setFee(c *gin.Context) {
	var req setFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	if err := h.Settings.SetFeePercentage(c.Request.Context(), call, *req.FeeBP); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"fee_bp": *req.FeeBP}, nil)
}

type setFeeRecipientRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

func (h *AdminHandler) setFeeRecipient(c *gin.Context) {
	var req setFeeRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	recipient := wallet.Normalize(req.Recipient)
	if err := h.Settings.SetFeeRecipient(c.Request.Context(), call, recipient); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"recipient": recipient}, nil)
}

func (h *AdminHandler) listSettings(c *gin.Context) {
	items, err := h.Settings.List(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, nil)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (h *AdminHandler) deposit(c *gin.Context) {
	address := wallet.Normalize(c.Param("address"))
	if address == "" {
		Error(c, http.StatusBadRequest, "invalid address", nil)
		return
	}
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	account, err := h.Accounts.Deposit(c.Request.Context(), call, address, req.Amount)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, account, nil)
}

func (h *AdminHandler) freeze(c *gin.Context) {
	h.setFrozen(c, true)
}

func (h *AdminHandler) unfreeze(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *AdminHandler) setFrozen(c *gin.Context, frozen bool) {
	address := wallet.Normalize(c.Param("address"))
	if address == "" {
		Error(c, http.StatusBadRequest, "invalid address", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	account, err := h.Accounts.SetFrozen(c.Request.Context(), call, address, frozen)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, account, nil)
}

func (h *AdminHandler) runSnapshots(c *gin.Context) {
	if err := h.Snapshots.RunOnce(c.Request.Context()); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"ran": true}, nil)
}
