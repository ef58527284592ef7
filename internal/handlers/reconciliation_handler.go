package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/decision"
	"ledger-reconciliation-backend/internal/services/reconciliation"
)

type ReconciliationHandler struct {
	service *reconciliation.Service
	queue   *decision.ReviewQueue
	stats   *reconciliation.StatsService
}

func NewReconciliationHandler(service *reconciliation.Service, queue *decision.ReviewQueue, stats *reconciliation.StatsService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service, queue: queue, stats: stats}
}

// Run triggers a reconciliation pass over one statement.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	statementID, err := uuid.Parse(c.Param("statementId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement ID"})
		return
	}

	summary, err := h.service.Run(c.Request.Context(), statementID)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetPendingReview lists the review queue in priority order.
func (h *ReconciliationHandler) GetPendingReview(c *gin.Context) {
	filters := decision.ListFilters{
		Counterparty: c.Query("counterparty"),
	}
	if raw := c.Query("statement_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement ID"})
			return
		}
		filters.StatementID = &id
	}

	entries, err := h.queue.List(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

type decidePayload struct {
	Action              string   `json:"action" binding:"required"`
	Version             int      `json:"version" binding:"required"`
	Actor               string   `json:"actor" binding:"required"`
	Note                string   `json:"note"`
	ReplacementEntryIDs []string `json:"replacement_entry_ids"`
}

// Decide applies a human accept/reject/supersede to one match.
func (h *ReconciliationHandler) Decide(c *gin.Context) {
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match ID"})
		return
	}

	var payload decidePayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	req := decision.DecideRequest{
		MatchID: matchID,
		Action:  payload.Action,
		Version: payload.Version,
		Actor:   payload.Actor,
		Note:    payload.Note,
	}
	for _, raw := range payload.ReplacementEntryIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid replacement entry ID"})
			return
		}
		req.ReplacementEntryIDs = append(req.ReplacementEntryIDs, id)
	}

	match, err := h.queue.Decide(c.Request.Context(), req)
	if err != nil {
		h.writeDecideError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": match})
}

type batchDecidePayload struct {
	Action  string `json:"action" binding:"required"`
	Actor   string `json:"actor" binding:"required"`
	Matches []struct {
		MatchID string `json:"match_id" binding:"required"`
		Version int    `json:"version" binding:"required"`
	} `json:"matches"`
	Counterparty string `json:"counterparty"`
}

// BatchDecide applies one action to a set of matches, or to every pending
// match of a counterparty when the payload names one instead of listing ids.
func (h *ReconciliationHandler) BatchDecide(c *gin.Context) {
	var payload batchDecidePayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Counterparty != "" {
		results, err := h.queue.DecideByCounterparty(c.Request.Context(), payload.Counterparty, payload.Action, payload.Actor)
		if err != nil {
			h.writeDecideError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}

	reqs := make([]decision.DecideRequest, 0, len(payload.Matches))
	for _, m := range payload.Matches {
		id, err := uuid.Parse(m.MatchID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match ID"})
			return
		}
		reqs = append(reqs, decision.DecideRequest{
			MatchID: id,
			Action:  payload.Action,
			Version: m.Version,
			Actor:   payload.Actor,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": h.queue.BatchDecide(c.Request.Context(), reqs)})
}

type bulkIgnorePayload struct {
	TransactionIDs []string `json:"transaction_ids" binding:"required"`
	Actor          string   `json:"actor" binding:"required"`
}

// BulkIgnore marks non-financial notification rows as ignored.
func (h *ReconciliationHandler) BulkIgnore(c *gin.Context) {
	var payload bulkIgnorePayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	ids := make([]uuid.UUID, 0, len(payload.TransactionIDs))
	for _, raw := range payload.TransactionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
			return
		}
		ids = append(ids, id)
	}

	c.JSON(http.StatusOK, gin.H{"results": h.queue.BulkIgnore(c.Request.Context(), ids, payload.Actor)})
}

// GetStats reports auto-match rate, accuracy proxy and review latency.
func (h *ReconciliationHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *ReconciliationHandler) writeDecideError(c *gin.Context, err error) {
	var conflict *models.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":           conflict.Error(),
			"current_version": conflict.CurrentVersion,
		})
	case errors.Is(err, models.ErrExclusivity):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDataNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
	case errors.Is(err, models.ErrInvalidReviewAction),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
