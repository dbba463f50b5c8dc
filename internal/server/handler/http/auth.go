// Package http provides the HTTP transport: the public RPC endpoint callers
// submit requests through, and the mTLS endpoints approvers decide them on.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/zkkeeper/internal/certgen"
	"github.com/atinyakov/zkkeeper/internal/middleware"
	"go.uber.org/zap"
)

// ApproverService defines the approver registry operations required by the
// auth handlers.
type ApproverService interface {
	// ApproverExists checks whether an approver with the given login exists.
	ApproverExists(context.Context, string) (bool, error)
	// RegisterApprover registers a new approver with the given login.
	RegisterApprover(context.Context, string) error
}

// AuthHandler handles approver registration and login.
type AuthHandler struct {
	// Approvers performs the underlying registry operations.
	Approvers ApproverService
	// CertDir holds the CA used to sign approver certificates.
	CertDir string
	Log     *zap.Logger
}

// RegisterRequest represents the JSON payload for approver registration.
type RegisterRequest struct {
	// Login becomes the Common Name of the issued certificate.
	Login string `json:"login"`
}

// RegisterResponse carries the issued PEM pair.
type RegisterResponse struct {
	Cert string `json:"cert"`
	Key  string `json:"key"`
}

// Register enrolls a new approver. The caller must already hold an approver
// certificate; the first one is issued offline by tools/certgen.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	exists, err := h.Approvers.ApproverExists(r.Context(), req.Login)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if exists {
		http.Error(w, "approver already exists", http.StatusConflict)
		return
	}

	ca, err := certgen.LoadCA(h.CertDir)
	if err != nil {
		http.Error(w, "failed to load CA", http.StatusInternalServerError)
		return
	}
	issued, err := ca.IssueApprover(req.Login)
	if err != nil {
		http.Error(w, "failed to generate certificate", http.StatusInternalServerError)
		return
	}

	if err := h.Approvers.RegisterApprover(r.Context(), req.Login); err != nil {
		http.Error(w, "failed to save approver", http.StatusInternalServerError)
		return
	}
	if h.Log != nil {
		h.Log.Info("approver registered",
			zap.String("login", req.Login),
			zap.String("by", middleware.GetApproverFromContext(r.Context())),
		)
	}

	writeJSON(w, http.StatusOK, RegisterResponse{Cert: string(issued.CertPEM), Key: string(issued.KeyPEM)})
}

// Login confirms that the presented certificate belongs to a registered
// approver.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		http.Error(w, "client certificate required", http.StatusUnauthorized)
		return
	}
	login := r.TLS.PeerCertificates[0].Subject.CommonName

	exists, err := h.Approvers.ApproverExists(r.Context(), login)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "approver not found", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"approver": login,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
