// Package middleware provides HTTP middlewares for approver authentication,
// caller origin extraction and request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const (
	approverKey ctxKey = "approver"
	originKey   ctxKey = "origin"
)

// CertAuth enforces mutual TLS for approval surfaces.
//
// It is mounted only on the routes that decide requests or touch identities
// directly. The Common Name of the verified client certificate is stored in
// the request context as the approver login.
func CertAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		cert := r.TLS.PeerCertificates[0]
		ctx := context.WithValue(r.Context(), approverKey, cert.Subject.CommonName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetApproverFromContext returns the approver login stored by CertAuth, or
// an empty string.
func GetApproverFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(approverKey).(string); ok {
		return s
	}
	return ""
}

// CallerOrigin identifies the untrusted caller context. Browsers set Origin;
// non-browser callers may send X-Caller-Origin instead. Requests without
// either are rejected, since every pending request is keyed by origin.
func CallerOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			origin = strings.TrimSpace(r.Header.Get("X-Caller-Origin"))
		}
		if origin == "" || origin == "null" {
			http.Error(w, "caller origin required", http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(r.Context(), originKey, origin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOriginFromContext returns the caller origin stored by CallerOrigin.
func GetOriginFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(originKey).(string); ok {
		return s
	}
	return ""
}

// WithOrigin returns a copy of ctx carrying origin. Used by tests and by
// handlers that act on behalf of a known origin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

// WithApprover returns a copy of ctx carrying the approver login.
func WithApprover(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, approverKey, login)
}
