package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"propmarket/internal/service"
	"propmarket/internal/wallet"
)

type SharesHandler struct {
	Ledger *service.ShareLedgerService
}

func (h *SharesHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/shares")
	g.POST("/tokenize", h.tokenize)
	g.POST("/approvals", h.setApproval)
	g.GET("/:id", h.get)
	g.POST("/:id/buy", h.buy)
	g.GET("/:id/offers", h.listOffers)
	g.POST("/:id/offers", h.listShares)
	g.POST("/:id/offers/cancel", h.cancelOffer)
	g.GET("/:id/offers/:seller", h.getOffer)
	g.POST("/:id/offers/:seller/buy", h.buyListed)
	g.GET("/:id/balances/:holder", h.balance)

	r.GET("/api/v1/holders/:address/balances", h.holderBalances)
}

type tokenizeRequest struct {
	PropertyID    uint64          `json:"property_id" binding:"required"`
	TotalShares   int64           `json:"total_shares" binding:"required"`
	PricePerShare decimal.Decimal `json:"price_per_share" binding:"required"`
}

// @Summary Tokenize a property into a share pool
// @Tags shares
// @Accept json
// @Produce json
// @Param request body tokenizeRequest true "pool parameters"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/tokenize [post]
func (h *SharesHandler) tokenize(c *gin.Context) {
	var req tokenizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	pool, err := h.Ledger.TokenizeProperty(c.Request.Context(), call, service.TokenizeParams{
		PropertyID:    req.PropertyID,
		TotalShares:   req.TotalShares,
		PricePerShare: req.PricePerShare,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, pool, nil)
}

// @Summary Get share pool info
// @Tags shares
// @Produce json
// @Param id path int true "share pool id"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id} [get]
func (h *SharesHandler) get(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid share id", nil)
		return
	}
	pool, err := h.Ledger.GetShareInfo(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, pool, nil)
}

type buySharesRequest struct {
	Amount int64           `json:"amount" binding:"required"`
	Value  decimal.Decimal `json:"value" binding:"required"`
}

// @Summary Buy shares from the pool at the fixed price
// @Tags shares
// @Accept json
// @Produce json
// @Param id path int true "share pool id"
// @Param request body buySharesRequest true "amount and exact payment"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id}/buy [post]
func (h *SharesHandler) buy(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid share id", nil)
		return
	}
	var req buySharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c), Value: req.Value}
	balance, err := h.Ledger.BuyShares(c.Request.Context(), call, id, req.Amount)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, balance, nil)
}

type listSharesRequest struct {
	Amount int64           `json:"amount" binding:"required"`
	Price  decimal.Decimal `json:"price" binding:"required"`
}

// @Summary List shares for peer sale
// @Tags shares
// @Accept json
// @Produce json
// @Param id path int true "share pool id"
// @Param request body listSharesRequest true "amount and unit price"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id}/offers [post]
func (h *SharesHandler) listShares(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid share id", nil)
		return
	}
	var req listSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	offer, err := h.Ledger.ListShares(c.Request.Context(), call, id, req.Amount, req.Price)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, offer, nil)
}

// @Summary Cancel the caller's open offer
// @Tags shares
// @Produce json
// @Param id path int true "share pool id"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id}/offers/cancel [post]
func (h *SharesHandler) cancelOffer(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid share id", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	if err := h.Ledger.CancelShareOffer(c.Request.Context(), call, id); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"cancelled": true}, nil)
}

// @Summary List open offers on a share pool
// @Tags shares
// @Produce json
// @Param id path int true "share pool id"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id}/offers [get]
func (h *SharesHandler) listOffers(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid share id", nil)
		return
	}
	offers, err := h.Ledger.ListOffers(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, offers, nil)
}

// @Summary Get a seller's offer on a share pool
// @Tags shares
// @Produce json
// @Param id path int true "share pool id"
// @Param seller path string true "seller address"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id}/offers/{seller} [get]
func (h *SharesHandler) getOffer(c *gin.Context) {
	id := uint64Param(c, "id")
	seller := wallet.Normalize(c.Param("seller"))
	if id == 0 || seller == "" {
		Error(c, http.StatusBadRequest, "invalid share id or seller", nil)
		return
	}
	offer, err := h.Ledger.GetListedShareInfo(c.Request.Context(), id, seller)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, offer, nil)
}

type buyListedRequest struct {
	Amount int64           `json:"amount" binding:"required"`
	Value  decimal.Decimal `json:"value" binding:"required"`
}

// @Summary Buy from a peer offer at the seller's price
// @Tags shares
// @Accept json
// @Produce json
// @Param id path int true "share pool id"
// @Param seller path string true "seller address"
// @Param request body buyListedRequest true "amount and exact payment"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id}/offers/{seller}/buy [post]
func (h *SharesHandler) buyListed(c *gin.Context) {
	id := uint64Param(c, "id")
	seller := wallet.Normalize(c.Param("seller"))
	if id == 0 || seller == "" {
		Error(c, http.StatusBadRequest, "invalid share id or seller", nil)
		return
	}
	var req buyListedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c), Value: req.Value}
	balance, err := h.Ledger.BuyListedShares(c.Request.Context(), call, id, seller, req.Amount)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, balance, nil)
}

// @Summary Get a holder's balance in a pool
// @Tags shares
// @Produce json
// @Param id path int true "share pool id"
// @Param holder path string true "holder address"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/{id}/balances/{holder} [get]
func (h *SharesHandler) balance(c *gin.Context) {
	id := uint64Param(c, "id")
	holder := wallet.Normalize(c.Param("holder"))
	if id == 0 || holder == "" {
		Error(c, http.StatusBadRequest, "invalid share id or holder", nil)
		return
	}
	amount, err := h.Ledger.BalanceOf(c.Request.Context(), id, holder)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"share_id": id, "holder": holder, "amount": amount}, nil)
}

// @Summary List all pool balances held by an address
// @Tags shares
// @Produce json
// @Param address path string true "holder address"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/holders/{address}/balances [get]
func (h *SharesHandler) holderBalances(c *gin.Context) {
	holder := wallet.Normalize(c.Param("address"))
	if holder == "" {
		Error(c, http.StatusBadRequest, "invalid holder address", nil)
		return
	}
	balances, err := h.Ledger.HolderBalances(c.Request.Context(), holder)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, balances, nil)
}

type setApprovalRequest struct {
	Operator string `json:"operator" binding:"required"`
	Approved *bool  `json:"approved" binding:"required"`
}

// @Summary Flip the caller's operator approval for share listings
// @Tags shares
// @Accept json
// @Produce json
// @Param request body setApprovalRequest true "operator and flag"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/shares/approvals [post]
func (h *SharesHandler) setApproval(c *gin.Context) {
	var req setApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	if err := h.Ledger.SetOperatorApproval(c.Request.Context(), call, strings.TrimSpace(req.Operator), *req.Approved); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"operator": strings.TrimSpace(req.Operator), "approved": *req.Approved}, nil)
}
