package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"propmarket/internal/repository"
	"propmarket/internal/service"
	"propmarket/internal/wallet"
)

type MarketHandler struct {
	Market *service.MarketplaceService
}

func (h *MarketHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/market/listings")
	g.POST("/property", h.createPropertyListing)
	g.POST("/shares", h.createSharesListing)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/buy-property", h.buyProperty)
	g.POST("/:id/buy-shares", h.buyShares)
	g.POST("/:id/cancel", h.cancel)
}

type createPropertyListingRequest struct {
	PropertyID uint64          `json:"property_id" binding:"required"`
	Price      decimal.Decimal `json:"price" binding:"required"`
}

// @Summary List a whole property for sale
// @Tags market
// @Accept json
// @Produce json
// @Param request body createPropertyListingRequest true "property and asking price"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/market/listings/property [post]
func (h *MarketHandler) createPropertyListing(c *gin.Context) {
	var req createPropertyListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	listing, err := h.Market.CreatePropertyListing(c.Request.Context(), call, req.PropertyID, req.Price)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, listing, nil)
}

type createSharesListingRequest struct {
	ShareID uint64          `json:"share_id" binding:"required"`
	Amount  int64           `json:"amount" binding:"required"`
	Price   decimal.Decimal `json:"price" binding:"required"`
}

// @Summary List pool shares for sale on the marketplace
// @Tags market
// @Accept json
// @Produce json
// @Param request body createSharesListingRequest true "pool, amount and unit price"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/market/listings/shares [post]
func (h *MarketHandler) createSharesListing(c *gin.Context) {
	var req createSharesListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	listing, err := h.Market.CreateSharesListing(c.Request.Context(), call, req.ShareID, req.Amount, req.Price)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, listing, nil)
}

// @Summary Browse marketplace listings
// @Tags market
// @Produce json
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/market/listings [get]
func (h *MarketHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListListingsParams{
		Limit:   limit,
		Offset:  offset,
		Kind:    strQueryPtr(c, "kind"),
		Seller:  strQueryPtr(c, "seller"),
		Active:  boolQueryPtr(c, "active"),
		TokenID: uint64QueryPtr(c, "token_id"),
		OrderBy: "id",
		Asc:     boolPtr(false),
	}
	items, total, err := h.Market.ListListings(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get a listing
// @Tags market
// @Produce json
// @Param id path int true "listing id"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/market/listings/{id} [get]
func (h *MarketHandler) get(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid listing id", nil)
		return
	}
	listing, err := h.Market.GetListing(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, listing, nil)
}

type buyPropertyRequest struct {
	Value decimal.Decimal `json:"value" binding:"required"`
}

// @Summary Buy a listed property
// @Tags market
// @Accept json
// @Produce json
// @Param id path int true "listing id"
// @Param request body buyPropertyRequest true "exact payment"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/market/listings/{id}/buy-property [post]
func (h *MarketHandler) buyProperty(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid listing id", nil)
		return
	}
	var req buyPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c), Value: req.Value}
	property, err := h.Market.BuyProperty(c.Request.Context(), call, id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, property, nil)
}

type buyListingSharesRequest struct {
	Amount int64           `json:"amount" binding:"required"`
	Value  decimal.Decimal `json:"value" binding:"required"`
}

// @Summary Buy shares from a marketplace listing
// @Tags market
// @Accept json
// @Produce json
// @Param id path int true "listing id"
// @Param request body buyListingSharesRequest true "amount and exact payment"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/market/listings/{id}/buy-shares [post]
func (h *MarketHandler) buyShares(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid listing id", nil)
		return
	}
	var req buyListingSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c), Value: req.Value}
	listing, err := h.Market.BuySharesListing(c.Request.Context(), call, id, req.Amount)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, listing, nil)
}

// @Summary Cancel the caller's listing
// @Tags market
// @Produce json
// @Param id path int true "listing id"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/market/listings/{id}/cancel [post]
func (h *MarketHandler) cancel(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid listing id", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	listing, err := h.Market.CancelListing(c.Request.Context(), call, id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, listing, nil)
}
