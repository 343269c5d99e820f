package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"propmarket/internal/repository"
	"propmarket/internal/service"
	"propmarket/internal/wallet"
)

type PropertyHandler struct {
	Registry *service.PropertyRegistryService
}

func (h *PropertyHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/properties")
	g.POST("", h.mint)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.POST("/:id/approve", h.approve)
}

type mintPropertyRequest struct {
	Owner          string          `json:"owner"`
	Address        string          `json:"address" binding:"required"`
	AreaSqM        decimal.Decimal `json:"area_sqm"`
	PropertyType   string          `json:"property_type"`
	AppraisedValue decimal.Decimal `json:"appraised_value"`
	DocumentURI    string          `json:"document_uri"`
	Latitude       decimal.Decimal `json:"latitude"`
	Longitude      decimal.Decimal `json:"longitude"`
}

// @Summary Mint a property record
// @Tags properties
// @Accept json
// @Produce json
// @Param request body mintPropertyRequest true "property attributes"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/properties [post]
func (h *PropertyHandler) mint(c *gin.Context) {
	var req mintPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	property, err := h.Registry.Mint(c.Request.Context(), call, service.MintPropertyParams{
		Owner:          wallet.Normalize(req.Owner),
		Address:        strings.TrimSpace(req.Address),
		AreaSqM:        req.AreaSqM,
		PropertyType:   strings.TrimSpace(req.PropertyType),
		AppraisedValue: req.AppraisedValue,
		DocumentURI:    strings.TrimSpace(req.DocumentURI),
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, property, nil)
}

// @Summary List properties
// @Tags properties
// @Produce json
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/properties [get]
func (h *PropertyHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPropertiesParams{
		Limit:     limit,
		Offset:    offset,
		Owner:     strQueryPtr(c, "owner"),
		Tokenized: boolQueryPtr(c, "tokenized"),
		OrderBy:   "id",
		Asc:       boolPtr(true),
	}
	items, total, err := h.Registry.List(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get a property
// @Tags properties
// @Produce json
// @Param id path int true "property id"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/properties/{id} [get]
func (h *PropertyHandler) get(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid property id", nil)
		return
	}
	property, err := h.Registry.GetInfo(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, property, nil)
}

type updatePropertyRequest struct {
	AreaSqM        decimal.Decimal `json:"area_sqm"`
	PropertyType   string          `json:"property_type"`
	AppraisedValue decimal.Decimal `json:"appraised_value"`
	DocumentURI    string          `json:"document_uri"`
}

// @Summary Update mutable property attributes
// @Tags properties
// @Accept json
// @Produce json
// @Param id path int true "property id"
// @Param request body updatePropertyRequest true "new attributes"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/properties/{id} [put]
func (h *PropertyHandler) update(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid property id", nil)
		return
	}
	var req updatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	property, err := h.Registry.UpdateInfo(c.Request.Context(), call, id, service.UpdatePropertyParams{
		AreaSqM:        req.AreaSqM,
		PropertyType:   strings.TrimSpace(req.PropertyType),
		AppraisedValue: req.AppraisedValue,
		DocumentURI:    strings.TrimSpace(req.DocumentURI),
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, property, nil)
}

type approvePropertyRequest struct {
	Operator string `json:"operator" binding:"required"`
}

// @Summary Approve an operator to take custody of a property
// @Tags properties
// @Accept json
// @Produce json
// @Param id path int true "property id"
// @Param request body approvePropertyRequest true "operator name"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/properties/{id}/approve [post]
func (h *PropertyHandler) approve(c *gin.Context) {
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid property id", nil)
		return
	}
	var req approvePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	call := service.Call{Caller: wallet.Caller(c)}
	property, err := h.Registry.Approve(c.Request.Context(), call, id, strings.TrimSpace(req.Operator))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, property, nil)
}
