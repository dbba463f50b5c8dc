package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/middleware"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PendingBroker is the part of the broker approval surfaces drive.
type PendingBroker interface {
	List(filter models.PendingRequestFilter) []models.PendingRequestSummary
	Resolve(ctx context.Context, id string, decision models.Decision, finalPayload json.RawMessage) error
	AbandonOrigin(origin string) int
}

// PendingHandler exposes pending requests to approvers.
type PendingHandler struct {
	Broker PendingBroker
	Log    *zap.Logger
}

// List handles GET /api/pending. Optional query parameters: status, type,
// origin and settled=true.
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.PendingRequestFilter{
		Status: models.RequestStatus(q.Get("status")),
		Type:   models.RequestType(q.Get("type")),
		Origin: q.Get("origin"),
	}
	if s := q.Get("settled"); s != "" {
		settled, err := strconv.ParseBool(s)
		if err != nil {
			http.Error(w, "invalid settled flag", http.StatusBadRequest)
			return
		}
		filter.IncludeSettled = settled
	}
	if filter.Type != "" && !filter.Type.Valid() {
		http.Error(w, "unknown request type", http.StatusBadRequest)
		return
	}

	requests := h.Broker.List(filter)
	if requests == nil {
		requests = []models.PendingRequestSummary{}
	}
	writeJSON(w, http.StatusOK, requests)
}

// Decide handles POST /api/pending/{id}/decision.
func (h *PendingHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Decision.Valid() {
		writeJSON(w, http.StatusBadRequest, models.Response{
			Error: "invalid decision",
			Code:  string(errs.CodeInvalidPayload),
		})
		return
	}

	if err := h.Broker.Resolve(r.Context(), id, req.Decision, req.Payload); err != nil {
		writeJSON(w, errs.GetCode(err).HTTPStatus(), errorResponse(err))
		return
	}
	if h.Log != nil {
		h.Log.Info("request decided",
			zap.String("id", id),
			zap.String("decision", string(req.Decision)),
			zap.Bool("edited", len(req.Payload) > 0),
			zap.String("approver", middleware.GetApproverFromContext(r.Context())),
		)
	}
	writeJSON(w, http.StatusOK, models.Response{Success: true})
}

// Abandon handles POST /api/pending/abandon?origin=... An approver
// withdraws every request the origin still has pending, for example after
// the dApp behind it went away without closing its connections.
func (h *PendingHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	if origin == "" {
		writeJSON(w, http.StatusBadRequest, models.Response{
			Error: "origin is required",
			Code:  string(errs.CodeInvalidPayload),
		})
		return
	}
	n := h.Broker.AbandonOrigin(origin)
	if h.Log != nil {
		h.Log.Info("origin abandoned",
			zap.String("origin", origin),
			zap.Int("requests", n),
			zap.String("approver", middleware.GetApproverFromContext(r.Context())),
		)
	}
	writeJSON(w, http.StatusOK, models.Response{Success: true, Result: map[string]int{"abandoned": n}})
}
