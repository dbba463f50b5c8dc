package approval

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/atinyakov/zkkeeper/internal/certgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePair issues an approver pair for login under dir.
func writePair(t *testing.T, ca *certgen.CA, dir, login string) (string, string) {
	t.Helper()
	issued, err := ca.IssueApprover(login)
	require.NoError(t, err)
	certPath := filepath.Join(dir, login+".crt")
	keyPath := filepath.Join(dir, login+".key")
	require.NoError(t, issued.WriteFiles(certPath, keyPath))
	return certPath, keyPath
}

func TestLoadClientCertificate(t *testing.T) {
	dir := t.TempDir()
	ca, caPair, err := certgen.NewCA("Test CA")
	require.NoError(t, err)
	caPath := filepath.Join(dir, "ca.crt")
	require.NoError(t, caPair.WriteFiles(caPath, filepath.Join(dir, "ca.key")))
	certPath, keyPath := writePair(t, ca, dir, "alice")

	client, err := LoadClientCertificate(certPath, keyPath, caPath)
	require.NoError(t, err)
	cfg := client.Transport.(*http.Transport).TLSClientConfig
	assert.Len(t, cfg.Certificates, 1)
	assert.NotNil(t, cfg.RootCAs)

	_, err = LoadClientCertificate(certPath, keyPath, filepath.Join(dir, "missing.crt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.crt")
	require.NoError(t, os.WriteFile(garbage, []byte("nope"), 0o600))
	_, err = LoadClientCertificate(certPath, keyPath, garbage)
	assert.EqualError(t, err, "failed to parse CA cert")

	_, err = LoadClientCertificate(garbage, keyPath, caPath)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	dir := t.TempDir()
	ca, _, err := certgen.NewCA("Test CA")
	require.NoError(t, err)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Login string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Login == "taken" {
			http.Error(w, "approver already exists", http.StatusConflict)
			return
		}
		issued, err := ca.IssueApprover(req.Login)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"cert": string(issued.CertPEM), "key": string(issued.KeyPEM)})
	}))
	defer srv.Close()

	outCert := filepath.Join(dir, "bob.crt")
	outKey := filepath.Join(dir, "bob.key")
	require.NoError(t, Register(context.Background(), srv.Client(), srv.URL, "bob", outCert, outKey))

	pair, err := tls.LoadX509KeyPair(outCert, outKey)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Certificate)

	err = Register(context.Background(), srv.Client(), srv.URL, "taken", outCert, outKey)
	assert.EqualError(t, err, "server error: approver already exists")
}
