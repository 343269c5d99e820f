package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"propmarket/internal/repository"
	"propmarket/internal/service"
	"propmarket/internal/stream"
	"propmarket/internal/wallet"
)

// EventsHandler exposes the persisted ledger event log and its live
// websocket tail, plus pool snapshot history and account reads.
type EventsHandler struct {
	Repo      repository.Repository
	Accounts  *service.AccountService
	Snapshots *service.PoolSnapshotService
	Stream    *stream.WSHandler
}

func (h *EventsHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/events", h.list)
	r.GET("/api/v1/accounts/:address", h.account)
	r.GET("/api/v1/snapshots", h.snapshots)
	if h.Stream != nil {
		r.GET("/api/v1/events/stream", h.Stream.Serve)
	}
}

// @Summary Query the ledger event log
// @Tags events
// @Produce json
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/events [get]
func (h *EventsHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListEventsParams{
		Limit:      limit,
		Offset:     offset,
		Kind:       strQueryPtr(c, "kind"),
		Actor:      strQueryPtr(c, "actor"),
		PropertyID: uint64QueryPtr(c, "property_id"),
		ShareID:    uint64QueryPtr(c, "share_id"),
		ListingID:  uint64QueryPtr(c, "listing_id"),
		SinceSeq:   uint64QueryPtr(c, "since_seq"),
		Since:      timeQueryPtr(c, "since"),
		OrderBy:    "seq",
		Asc:        boolPtr(true),
	}
	items, err := h.Repo.ListEvents(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	total, err := h.Repo.CountEvents(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get an account's balance and frozen state
// @Tags accounts
// @Produce json
// @Param address path string true "account address"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/accounts/{address} [get]
func (h *EventsHandler) account(c *gin.Context) {
	address := wallet.Normalize(c.Param("address"))
	if address == "" {
		Error(c, http.StatusBadRequest, "invalid address", nil)
		return
	}
	account, err := h.Accounts.Get(c.Request.Context(), address)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, account, nil)
}

// @Summary Query pool snapshot history
// @Tags events
// @Produce json
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/snapshots [get]
func (h *EventsHandler) snapshots(c *gin.Context) {
	params := repository.ListPoolSnapshotsParams{
		Limit:   intQuery(c, "limit", 100),
		Offset:  intQuery(c, "offset", 0),
		ShareID: uint64QueryPtr(c, "share_id"),
		Since:   timeQueryPtr(c, "since"),
		Until:   timeQueryPtr(c, "until"),
	}
	items, err := h.Snapshots.Snapshots(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, nil)
}

func timeQueryPtr(c *gin.Context, key string) *time.Time {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t
	}
	if unix, err := strconv.ParseInt(val, 10, 64); err == nil && unix > 0 {
		t := time.Unix(unix, 0).UTC()
		return &t
	}
	return nil
}
