package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/zkidentity"
	"go.uber.org/zap"
)

type proveRequest struct {
	Scheme          models.ProofScheme `json:"scheme"`
	CircuitFilePath string             `json:"circuitFilePath"`
	ZkeyFilePath    string             `json:"zkeyFilePath"`
	VerificationKey string             `json:"verificationKey,omitempty"`
	Inputs          map[string]any     `json:"inputs"`
}

type proveResponse struct {
	Proof         models.Groth16Proof `json:"proof"`
	PublicSignals []string            `json:"publicSignals"`
}

// RemoteEngine calls a prover sidecar over HTTP. The sidecar is expected to
// run on a trusted local address since the request body carries the witness.
type RemoteEngine struct {
	BaseURL    string
	HTTPClient *http.Client
	log        *zap.Logger
}

// NewRemoteEngine creates an engine for the prover at baseURL.
func NewRemoteEngine(baseURL string, log *zap.Logger) *RemoteEngine {
	return &RemoteEngine{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		log:        log,
	}
}

// Prove builds the witness inside the lease, posts it to /prove and checks
// the artifact. The caller owns the lease and releases it afterwards.
func (e *RemoteEngine) Prove(ctx context.Context, circuit Circuit, in PublicInputs, lease Lease) (*models.ZkProof, error) {
	if circuit.CircuitFilePath == "" || circuit.ZkeyFilePath == "" {
		return nil, fmt.Errorf("prove: circuit and zkey paths are required")
	}

	var (
		w    *witness
		body []byte
	)
	err := lease.Use(func(s *zkidentity.Secret) error {
		var err error
		w, err = buildWitness(circuit, in, s)
		if err != nil {
			return err
		}
		body, err = json.Marshal(proveRequest{
			Scheme:          schemeOrDefault(circuit.Scheme),
			CircuitFilePath: circuit.CircuitFilePath,
			ZkeyFilePath:    circuit.ZkeyFilePath,
			VerificationKey: circuit.VerificationKey,
			Inputs:          w.inputs,
		})
		w.wipe()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	defer clear(body)

	start := time.Now()
	out, err := e.post(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	if err := w.validate(out.Proof, out.PublicSignals); err != nil {
		return nil, fmt.Errorf("invalid proof artifact: %w", err)
	}

	e.log.Info("proof generated",
		zap.String("scheme", string(schemeOrDefault(circuit.Scheme))),
		zap.String("commitment", lease.Commitment()),
		zap.Duration("duration", time.Since(start)))

	return &models.ZkProof{
		Scheme:            schemeOrDefault(circuit.Scheme),
		Proof:             out.Proof,
		PublicSignals:     out.PublicSignals,
		MerkleRoot:        w.merkleRoot,
		NullifierHash:     w.nullifierHash,
		ExternalNullifier: w.externalNullifier,
		SignalHash:        w.signalHash,
	}, nil
}

func (e *RemoteEngine) post(ctx context.Context, body []byte) (*proveResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/prove", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out proveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func schemeOrDefault(s models.ProofScheme) models.ProofScheme {
	if s == "" {
		return models.SchemeSemaphore
	}
	return s
}
