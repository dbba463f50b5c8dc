package middleware

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// recordingHandler records whether it was called and the context it received.
type recordingHandler struct {
	called bool
	ctx    context.Context
}

func (d *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func TestCertAuth_NoCertificate(t *testing.T) {
	next := &recordingHandler{}
	h := CertAuth(next)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/pending", nil)
	h.ServeHTTP(rec, req)

	if next.called {
		t.Error("did not expect next handler to be called without a certificate")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
	}
}

func TestCertAuth_ValidCertificate(t *testing.T) {
	cert := &x509.Certificate{Subject: pkix.Name{CommonName: "alice"}}
	ts := &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}

	next := &recordingHandler{}
	h := CertAuth(next)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/pending", nil)
	req.TLS = ts
	h.ServeHTTP(rec, req)

	if !next.called {
		t.Fatal("expected next handler to be called with a valid certificate")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", rec.Code)
	}
	if got := GetApproverFromContext(next.ctx); got != "alice" {
		t.Errorf("expected approver 'alice', got '%s'", got)
	}
}

func TestGetApproverFromContext(t *testing.T) {
	if got := GetApproverFromContext(context.Background()); got != "" {
		t.Errorf("expected empty approver, got '%s'", got)
	}
	if got := GetApproverFromContext(WithApprover(context.Background(), "bob")); got != "bob" {
		t.Errorf("expected 'bob', got '%s'", got)
	}
}

func TestCallerOrigin(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantCalled bool
		wantOrigin string
	}{
		{"origin header", map[string]string{"Origin": "http://localhost:3000"}, true, "http://localhost:3000"},
		{"fallback header", map[string]string{"X-Caller-Origin": "https://dapp.example"}, true, "https://dapp.example"},
		{"origin wins over fallback", map[string]string{"Origin": "https://a.example", "X-Caller-Origin": "https://b.example"}, true, "https://a.example"},
		{"opaque origin", map[string]string{"Origin": "null"}, false, ""},
		{"missing", nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingHandler{}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/rpc", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			CallerOrigin(next).ServeHTTP(rec, req)

			if next.called != tt.wantCalled {
				t.Fatalf("called = %v; want %v", next.called, tt.wantCalled)
			}
			if !tt.wantCalled {
				if rec.Code != http.StatusBadRequest {
					t.Errorf("status = %d; want 400", rec.Code)
				}
				return
			}
			if got := GetOriginFromContext(next.ctx); got != tt.wantOrigin {
				t.Errorf("origin = %q; want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestWithRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	)
	h := WithRequestLogging(zap.New(core))(&recordingHandler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/pending", nil))

	out := buf.String()
	if !strings.Contains(out, `"path":"/api/pending"`) || !strings.Contains(out, `"status":200`) {
		t.Errorf("unexpected log output: %s", out)
	}
}
