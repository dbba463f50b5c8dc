package service

import (
	"context"
	"sync"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/proof"
	"github.com/atinyakov/zkkeeper/internal/zkidentity"
)

type mockVault struct {
	CreateFunc              func(ctx context.Context, secret *zkidentity.Secret, meta models.IdentityMetadata) (models.Identity, error)
	IdentitiesFunc          func(ctx context.Context) ([]models.Identity, error)
	ConnectedFunc           func(ctx context.Context) (*models.Identity, error)
	ConnectedCommitmentFunc func(ctx context.Context) (string, error)
	SetConnectedFunc        func(ctx context.Context, commitment string) error
	RenameFunc              func(ctx context.Context, commitment, name string) error
	DeleteFunc              func(ctx context.Context, commitment string) error
	DeleteAllFunc           func(ctx context.Context) (int, error)
}

func (m *mockVault) Create(ctx context.Context, secret *zkidentity.Secret, meta models.IdentityMetadata) (models.Identity, error) {
	return m.CreateFunc(ctx, secret, meta)
}
func (m *mockVault) Identities(ctx context.Context) ([]models.Identity, error) {
	return m.IdentitiesFunc(ctx)
}
func (m *mockVault) Connected(ctx context.Context) (*models.Identity, error) {
	return m.ConnectedFunc(ctx)
}
func (m *mockVault) ConnectedCommitment(ctx context.Context) (string, error) {
	return m.ConnectedCommitmentFunc(ctx)
}
func (m *mockVault) SetConnected(ctx context.Context, commitment string) error {
	return m.SetConnectedFunc(ctx, commitment)
}
func (m *mockVault) Rename(ctx context.Context, commitment, name string) error {
	return m.RenameFunc(ctx, commitment, name)
}
func (m *mockVault) Delete(ctx context.Context, commitment string) error {
	return m.DeleteFunc(ctx, commitment)
}
func (m *mockVault) DeleteAll(ctx context.Context) (int, error) {
	return m.DeleteAllFunc(ctx)
}

type mockRegistry struct {
	AddMemberFunc   func(ctx context.Context, groupID, commitment, apiKey string) error
	IsMemberFunc    func(ctx context.Context, groupID, commitment string) (bool, error)
	MerkleProofFunc func(ctx context.Context, groupID, commitment string) (*models.MerkleProof, error)
}

func (m *mockRegistry) AddMember(ctx context.Context, groupID, commitment, apiKey string) error {
	return m.AddMemberFunc(ctx, groupID, commitment, apiKey)
}
func (m *mockRegistry) IsMember(ctx context.Context, groupID, commitment string) (bool, error) {
	return m.IsMemberFunc(ctx, groupID, commitment)
}
func (m *mockRegistry) MerkleProof(ctx context.Context, groupID, commitment string) (*models.MerkleProof, error) {
	return m.MerkleProofFunc(ctx, groupID, commitment)
}

type mockEngine struct {
	ProveFunc func(ctx context.Context, circuit proof.Circuit, in proof.PublicInputs, lease proof.Lease) (*models.ZkProof, error)
}

func (m *mockEngine) Prove(ctx context.Context, circuit proof.Circuit, in proof.PublicInputs, lease proof.Lease) (*models.ZkProof, error) {
	return m.ProveFunc(ctx, circuit, in, lease)
}

// recordingTracker collects operation log entries.
type recordingTracker struct {
	mu      sync.Mutex
	entries []models.OperationLogEntry
}

func (r *recordingTracker) TrackOperation(_ context.Context, e models.OperationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingTracker) operations() []models.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Operation, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Operation)
	}
	return out
}

// connectedAs returns a ConnectedIdentity that always reports commitment.
type connectedAs string

func (c connectedAs) ConnectedCommitment(context.Context) (string, error) {
	if c == "" {
		return "", errs.ErrNoConnectedIdentity
	}
	return string(c), nil
}

// unreachableRegistry fails the test on any call.
func unreachableRegistry(t interface{ Fatalf(string, ...any) }) *mockRegistry {
	return &mockRegistry{
		AddMemberFunc: func(context.Context, string, string, string) error {
			t.Fatalf("registry AddMember must not be called")
			return nil
		},
		IsMemberFunc: func(context.Context, string, string) (bool, error) {
			t.Fatalf("registry IsMember must not be called")
			return false, nil
		},
		MerkleProofFunc: func(context.Context, string, string) (*models.MerkleProof, error) {
			t.Fatalf("registry MerkleProof must not be called")
			return nil, nil
		},
	}
}
