package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/middleware"
	"github.com/atinyakov/zkkeeper/internal/models"
	"go.uber.org/zap"
)

// RequestService admits approval-gated calls from untrusted origins.
type RequestService interface {
	Handle(ctx context.Context, origin string, req models.Request) (any, error)
}

// TrustedService runs calls from authenticated approvers directly.
type TrustedService interface {
	Handle(ctx context.Context, req models.Request) (any, error)
}

// RPCHandler serves the request/response envelope on both surfaces.
type RPCHandler struct {
	Requests RequestService
	Trusted  TrustedService
	Log      *zap.Logger
}

// Public handles POST /api/rpc. The call blocks until the pending request
// it creates settles; closing the connection abandons it.
func (h *RPCHandler) Public(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	origin := middleware.GetOriginFromContext(r.Context())
	result, err := h.Requests.Handle(r.Context(), origin, req)
	h.respond(w, req.Method, result, err)
}

// Admin handles POST /api/admin/rpc for approvers.
func (h *RPCHandler) Admin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	result, err := h.Trusted.Handle(r.Context(), req)
	h.respond(w, req.Method, result, err)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (models.Request, bool) {
	var req models.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method == "" {
		writeJSON(w, http.StatusBadRequest, models.Response{
			Error: "invalid request",
			Code:  string(errs.CodeInvalidPayload),
		})
		return req, false
	}
	return req, true
}

func (h *RPCHandler) respond(w http.ResponseWriter, method models.OperationType, result any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, models.Response{Success: true, Result: result})
		return
	}
	code := errs.GetCode(err)
	if code == errs.CodeUnknown && h.Log != nil {
		h.Log.Error("rpc failed", zap.String("method", string(method)), zap.Error(err))
	}
	writeJSON(w, code.HTTPStatus(), errorResponse(err))
}

// errorResponse exposes the domain message only. Causes may carry registry
// or prover responses and stay in the logs.
func errorResponse(err error) models.Response {
	var e *errs.Error
	if !errors.As(err, &e) {
		return models.Response{Error: "internal error", Code: string(errs.CodeUnknown)}
	}
	return models.Response{Error: e.Message, Code: string(e.Code)}
}
