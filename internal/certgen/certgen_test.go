package certgen

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parseCert(t *testing.T, data []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("cert PEM invalid")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}
	return cert
}

// writeCA stores a fresh CA under dir and returns it.
func writeCA(t *testing.T, dir string) *CA {
	t.Helper()
	ca, issued, err := NewCA("Test CA")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if err := issued.WriteFiles(filepath.Join(dir, CACertFile), filepath.Join(dir, CAKeyFile)); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	return ca
}

func TestNewCA(t *testing.T) {
	ca, issued, err := NewCA("Test CA")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if !ca.Cert.IsCA || !ca.Cert.BasicConstraintsValid {
		t.Error("CA certificate should be a valid CA")
	}
	if ca.Cert.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Errorf("CA KeyUsage = %v; want CertSign", ca.Cert.KeyUsage)
	}
	if got := parseCert(t, issued.CertPEM); got.Subject.CommonName != "Test CA" {
		t.Errorf("CommonName = %q", got.Subject.CommonName)
	}
	if _, err := tls.X509KeyPair(issued.CertPEM, issued.KeyPEM); err != nil {
		t.Errorf("CA pair does not load: %v", err)
	}
}

func TestLoadCA_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := writeCA(t, dir)

	got, err := LoadCA(dir)
	if err != nil {
		t.Fatalf("LoadCA: %v", err)
	}
	if !got.Cert.Equal(want.Cert) {
		t.Error("loaded certificate differs")
	}
	key, ok := got.Key.(*ecdsa.PrivateKey)
	if !ok {
		t.Fatalf("key type = %T; want *ecdsa.PrivateKey", got.Key)
	}
	if !key.PublicKey.Equal(want.Key.Public()) {
		t.Error("public key mismatch")
	}

	info, err := os.Stat(filepath.Join(dir, CAKeyFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key mode = %v; want 0600", info.Mode().Perm())
	}
}

func TestLoadCACredentials_Errors(t *testing.T) {
	dir := t.TempDir()
	writeCA(t, dir)
	certPath := filepath.Join(dir, CACertFile)
	keyPath := filepath.Join(dir, CAKeyFile)

	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	unknown := filepath.Join(dir, "unknown.pem")
	if err := os.WriteFile(unknown, pem.EncodeToMemory(&pem.Block{Type: "DSA PRIVATE KEY", Bytes: []byte{1}}), 0o600); err != nil {
		t.Fatal(err)
	}

	leafDir := t.TempDir()
	ca, _ := LoadCA(dir)
	leaf, err := ca.IssueApprover("alice")
	if err != nil {
		t.Fatal(err)
	}
	leafCert := filepath.Join(leafDir, "leaf.crt")
	leafKey := filepath.Join(leafDir, "leaf.key")
	if err := leaf.WriteFiles(leafCert, leafKey); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		cert     string
		key      string
		wantText string
	}{
		{"missing cert", "/no/such/file.pem", keyPath, "read ca cert"},
		{"missing key", certPath, "/no/such/key.pem", "read ca key"},
		{"bad cert PEM", garbage, keyPath, "invalid CA cert PEM"},
		{"bad key PEM", certPath, garbage, "invalid CA key PEM"},
		{"unknown key type", certPath, unknown, "unsupported key type"},
		{"leaf is not a CA", leafCert, leafKey, "not a CA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadCACredentials(tt.cert, tt.key)
			if err == nil || !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("got %v; want error containing %q", err, tt.wantText)
			}
		})
	}
}

func TestIssueApprover(t *testing.T) {
	ca, _, err := NewCA("Test CA")
	if err != nil {
		t.Fatal(err)
	}

	issued, err := ca.IssueApprover("alice")
	if err != nil {
		t.Fatalf("IssueApprover: %v", err)
	}
	cert := parseCert(t, issued.CertPEM)
	if cert.Subject.CommonName != "alice" {
		t.Errorf("CommonName = %q; want alice", cert.Subject.CommonName)
	}
	if err := cert.CheckSignatureFrom(ca.Cert); err != nil {
		t.Errorf("signature check failed: %v", err)
	}
	if len(cert.ExtKeyUsage) != 1 || cert.ExtKeyUsage[0] != x509.ExtKeyUsageClientAuth {
		t.Errorf("ExtKeyUsage = %v; want ClientAuth only", cert.ExtKeyUsage)
	}
	if cert.NotAfter.After(ca.Cert.NotAfter) {
		t.Error("approver certificate outlives the CA")
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}}); err != nil {
		t.Errorf("verify: %v", err)
	}

	if _, err := ca.IssueApprover(""); err == nil {
		t.Error("empty login should fail")
	}
}

func TestIssueServer(t *testing.T) {
	ca, _, err := NewCA("Test CA")
	if err != nil {
		t.Fatal(err)
	}

	issued, err := ca.IssueServer("localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("IssueServer: %v", err)
	}
	cert := parseCert(t, issued.CertPEM)
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v", cert.DNSNames)
	}
	if len(cert.IPAddresses) != 1 || !cert.IPAddresses[0].Equal([]byte{127, 0, 0, 1}) {
		t.Errorf("IPAddresses = %v", cert.IPAddresses)
	}
	if err := cert.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname: %v", err)
	}

	if _, err := ca.IssueServer(); err == nil {
		t.Error("no hosts should fail")
	}
}
