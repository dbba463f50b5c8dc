package service

import (
	"context"
	"strings"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/registry"
	"go.uber.org/zap"
)

// GroupRegistry defines the external group registry calls.
type GroupRegistry interface {
	AddMember(ctx context.Context, groupID, commitment, apiKey string) error
	IsMember(ctx context.Context, groupID, commitment string) (bool, error)
	MerkleProof(ctx context.Context, groupID, commitment string) (*models.MerkleProof, error)
}

// ConnectedIdentity resolves the connected identity commitment.
type ConnectedIdentity interface {
	// ConnectedCommitment fails with errs.ErrNoConnectedIdentity when no
	// identity is connected.
	ConnectedCommitment(ctx context.Context) (string, error)
}

// GroupService runs group operations for the connected identity. Every
// operation resolves the connected identity before contacting the registry.
type GroupService struct {
	identities ConnectedIdentity
	registry   GroupRegistry
	history    OperationTracker
	log        *zap.Logger
}

// NewGroupService constructs a GroupService. history may be nil.
func NewGroupService(identities ConnectedIdentity, reg GroupRegistry, history OperationTracker, log *zap.Logger) *GroupService {
	return &GroupService{identities: identities, registry: reg, history: history, log: log}
}

// JoinGroup adds the connected identity to a group.
func (s *GroupService) JoinGroup(ctx context.Context, args models.JoinGroupArgs) (bool, error) {
	if err := requireGroupID(args.GroupID); err != nil {
		return false, err
	}
	commitment, err := s.identities.ConnectedCommitment(ctx)
	if err != nil {
		return false, err
	}

	err = s.registry.AddMember(ctx, args.GroupID, commitment, args.APIKey)
	track(ctx, s.history, s.log, entryFor(ctx, models.OperationJoinGroup, commitment, outcomeOf(err)))
	if err != nil {
		return false, errs.Wrap(errs.CodeGroupJoinFailed, errs.ErrGroupJoinFailed.Message, err)
	}

	s.log.Info("joined group", zap.String("group", args.GroupID), zap.String("commitment", commitment))
	return true, nil
}

// CheckGroupMembership reports whether the connected identity is a member.
func (s *GroupService) CheckGroupMembership(ctx context.Context, args models.GroupArgs) (bool, error) {
	if err := requireGroupID(args.GroupID); err != nil {
		return false, err
	}
	commitment, err := s.identities.ConnectedCommitment(ctx)
	if err != nil {
		return false, err
	}

	member, err := s.registry.IsMember(ctx, args.GroupID, commitment)
	track(ctx, s.history, s.log, entryFor(ctx, models.OperationCheckGroupMembership, commitment, outcomeOf(err)))
	if err != nil {
		return false, errs.Wrap(errs.CodeRegistryUnavailable, errs.ErrRegistryUnavailable.Message, err)
	}
	return member, nil
}

// GenerateGroupMerkleProof fetches and checks the inclusion proof of the
// connected identity.
func (s *GroupService) GenerateGroupMerkleProof(ctx context.Context, args models.GroupArgs) (*models.MerkleProof, error) {
	if err := requireGroupID(args.GroupID); err != nil {
		return nil, err
	}
	commitment, err := s.identities.ConnectedCommitment(ctx)
	if err != nil {
		return nil, err
	}

	proof, err := fetchMerkleProof(ctx, s.registry, args.GroupID, commitment)
	track(ctx, s.history, s.log, entryFor(ctx, models.OperationGroupMerkleProof, commitment, outcomeOf(err)))
	if err != nil {
		return nil, err
	}
	return proof, nil
}

func fetchMerkleProof(ctx context.Context, reg GroupRegistry, groupID, commitment string) (*models.MerkleProof, error) {
	proof, err := reg.MerkleProof(ctx, groupID, commitment)
	if err != nil {
		return nil, errs.Wrap(errs.CodeProofGenerationFailed, errs.ErrProofGenerationFailed.Message, err)
	}
	if err := registry.ValidateMerkleProof(proof, commitment); err != nil {
		return nil, errs.Wrap(errs.CodeProofGenerationFailed, errs.ErrProofGenerationFailed.Message, err)
	}
	return proof, nil
}

func requireGroupID(groupID string) error {
	if strings.TrimSpace(groupID) == "" {
		return errs.WithMetadata(errs.CodeInvalidPayload, "groupId is required", nil)
	}
	return nil
}
