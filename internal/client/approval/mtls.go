// Package approval is the approver side of the broker: an mTLS client for
// the pending-request and admin endpoints, a watcher that surfaces new
// requests, and terminal prompts for deciding them.
package approval

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// LoadClientCertificate builds an HTTP client that presents certFile/keyFile
// and trusts only caFile.
func LoadClientCertificate(certFile, keyFile, caFile string) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert/key: %w", err)
	}
	caPool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      caPool,
			MinVersion:   tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: 10 * time.Second}, nil
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}
	return caPool, nil
}

// Register enrolls login as a new approver using the caller's own
// certificate and writes the issued pair to outCert and outKey.
func Register(ctx context.Context, client *http.Client, baseURL, login, outCert, outKey string) error {
	b, err := json.Marshal(map[string]string{"login": login})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+apiRegister, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", bytes.TrimSpace(data))
	}

	var certData struct {
		Cert string `json:"cert"`
		Key  string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&certData); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := os.WriteFile(outCert, []byte(certData.Cert), 0o600); err != nil {
		return fmt.Errorf("failed to save %s: %w", outCert, err)
	}
	if err := os.WriteFile(outKey, []byte(certData.Key), 0o600); err != nil {
		return fmt.Errorf("failed to save %s: %w", outKey, err)
	}
	return nil
}
