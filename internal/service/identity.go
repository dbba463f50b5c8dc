// Package service implements the identity, group, proof and history
// operations, the dispatcher that runs approved requests and the admission
// front that routes untrusted calls through the broker.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/middleware"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/zkidentity"
	"go.uber.org/zap"
)

// IdentityVault defines the vault operations required by the IdentityService.
type IdentityVault interface {
	// Create stores a new identity derived from secret.
	Create(ctx context.Context, secret *zkidentity.Secret, meta models.IdentityMetadata) (models.Identity, error)
	// Identities lists every identity in creation order.
	Identities(ctx context.Context) ([]models.Identity, error)
	// Connected returns the connected identity or nil.
	Connected(ctx context.Context) (*models.Identity, error)
	// ConnectedCommitment returns the connected commitment or "".
	ConnectedCommitment(ctx context.Context) (string, error)
	// SetConnected moves the connected-identity pointer.
	SetConnected(ctx context.Context, commitment string) error
	// Rename changes an identity's display name.
	Rename(ctx context.Context, commitment, name string) error
	// Delete removes one identity, clearing the pointer if needed.
	Delete(ctx context.Context, commitment string) error
	// DeleteAll removes every identity and clears the pointer.
	DeleteAll(ctx context.Context) (int, error)
}

// IdentityService manages identities and the connected-identity pointer.
type IdentityService struct {
	vault   IdentityVault
	history OperationTracker
	log     *zap.Logger
}

// NewIdentityService constructs an IdentityService. history may be nil.
func NewIdentityService(vault IdentityVault, history OperationTracker, log *zap.Logger) *IdentityService {
	return &IdentityService{vault: vault, history: history, log: log}
}

// CreateIdentity derives a new identity from args, stores it and returns its
// commitment. The connected-identity pointer is not touched.
func (s *IdentityService) CreateIdentity(ctx context.Context, args models.CreateIdentityArgs) (string, error) {
	secret, err := zkidentity.Derive(args)
	if err != nil {
		return "", err
	}
	defer secret.Zero()

	meta := models.IdentityMetadata{
		Name:             strings.TrimSpace(args.Options.Name),
		IdentityStrategy: args.Strategy,
	}
	if args.Strategy == models.StrategyInterrep {
		meta.Web2Provider = args.Options.Web2Provider
		meta.Account = args.Options.Account
	}

	identity, err := s.vault.Create(ctx, secret, meta)
	if err != nil {
		return "", err
	}

	track(ctx, s.history, s.log, entryFor(ctx, models.OperationCreateIdentity, identity.Commitment, models.OutcomeSuccess))
	return identity.Commitment, nil
}

// SetActiveIdentity connects the identity with the given commitment.
func (s *IdentityService) SetActiveIdentity(ctx context.Context, args models.IdentityCommitmentArgs) error {
	if args.IdentityCommitment == "" {
		return errs.Wrap(errs.CodeInvalidPayload, "identityCommitment is required", nil)
	}
	return s.vault.SetConnected(ctx, args.IdentityCommitment)
}

// SetIdentityName renames an identity.
func (s *IdentityService) SetIdentityName(ctx context.Context, args models.SetIdentityNameArgs) error {
	name := strings.TrimSpace(args.Name)
	if args.IdentityCommitment == "" || name == "" {
		return errs.Wrap(errs.CodeInvalidPayload, "identityCommitment and name are required", nil)
	}
	return s.vault.Rename(ctx, args.IdentityCommitment, name)
}

// DeleteIdentity removes one identity.
func (s *IdentityService) DeleteIdentity(ctx context.Context, args models.IdentityCommitmentArgs) error {
	if args.IdentityCommitment == "" {
		return errs.Wrap(errs.CodeInvalidPayload, "identityCommitment is required", nil)
	}
	if err := s.vault.Delete(ctx, args.IdentityCommitment); err != nil {
		return err
	}
	track(ctx, s.history, s.log, entryFor(ctx, models.OperationDeleteIdentity, args.IdentityCommitment, models.OutcomeSuccess))
	return nil
}

// DeleteAllIdentities removes every identity.
func (s *IdentityService) DeleteAllIdentities(ctx context.Context) error {
	n, err := s.vault.DeleteAll(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		track(ctx, s.history, s.log, entryFor(ctx, models.OperationDeleteAllIdentities, "", models.OutcomeSuccess))
	}
	return nil
}

// Identities lists every identity.
func (s *IdentityService) Identities(ctx context.Context) ([]models.Identity, error) {
	ids, err := s.vault.Identities(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []models.Identity{}
	}
	return ids, nil
}

// ConnectedIdentity returns the connected identity, or nil when none is.
func (s *IdentityService) ConnectedIdentity(ctx context.Context) (*models.Identity, error) {
	return s.vault.Connected(ctx)
}

// ConnectedCommitment returns the connected commitment or fails with
// errs.ErrNoConnectedIdentity.
func (s *IdentityService) ConnectedCommitment(ctx context.Context) (string, error) {
	c, err := s.vault.ConnectedCommitment(ctx)
	if err != nil {
		return "", err
	}
	if c == "" {
		return "", errs.ErrNoConnectedIdentity
	}
	return c, nil
}

func entryFor(ctx context.Context, op models.Operation, identity, outcome string) models.OperationLogEntry {
	origin := middleware.GetOriginFromContext(ctx)
	if origin == "" {
		origin = middleware.GetApproverFromContext(ctx)
	}
	return models.OperationLogEntry{Operation: op, Identity: identity, Origin: origin, Outcome: outcome}
}

func outcomeOf(err error) string {
	if err == nil {
		return models.OutcomeSuccess
	}
	return models.OutcomeFailure
}

// keepCode wraps err with code unless it already carries a domain code.
func keepCode(code errs.Code, message string, err error) error {
	var de *errs.Error
	if errors.As(err, &de) {
		return err
	}
	return errs.Wrap(code, message, err)
}
