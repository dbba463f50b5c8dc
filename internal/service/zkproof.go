package service

import (
	"context"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/proof"
	"github.com/atinyakov/zkkeeper/internal/registry"
	"github.com/atinyakov/zkkeeper/internal/vault"
	"go.uber.org/zap"
)

// SecretLeaser hands out single-call secret leases. Only this service asks
// for them.
type SecretLeaser interface {
	Lease(ctx context.Context, commitment string) (*vault.Lease, error)
}

// ZkProofService generates zero-knowledge proofs for the connected identity.
type ZkProofService struct {
	identities ConnectedIdentity
	leaser     SecretLeaser
	registry   GroupRegistry
	engine     proof.Engine
	history    OperationTracker
	log        *zap.Logger
}

// NewZkProofService constructs a ZkProofService. history may be nil.
func NewZkProofService(
	identities ConnectedIdentity,
	leaser SecretLeaser,
	reg GroupRegistry,
	engine proof.Engine,
	history OperationTracker,
	log *zap.Logger,
) *ZkProofService {
	return &ZkProofService{
		identities: identities,
		leaser:     leaser,
		registry:   reg,
		engine:     engine,
		history:    history,
		log:        log,
	}
}

// GenerateZkProof proves membership of the connected identity. The Merkle
// proof comes inline or from the registry by group id. The secret is leased
// for this call only and wiped afterwards.
func (s *ZkProofService) GenerateZkProof(ctx context.Context, args models.ZkProofArgs) (*models.ZkProof, error) {
	commitment, err := s.identities.ConnectedCommitment(ctx)
	if err != nil {
		return nil, err
	}
	if args.CircuitFilePath == "" || args.ZkeyFilePath == "" {
		return nil, errs.WithMetadata(errs.CodeInvalidPayload, "circuitFilePath and zkeyFilePath are required", nil)
	}

	out, err := s.generate(ctx, commitment, args)
	track(ctx, s.history, s.log, entryFor(ctx, models.OperationZkProof, commitment, outcomeOf(err)))
	return out, err
}

func (s *ZkProofService) generate(ctx context.Context, commitment string, args models.ZkProofArgs) (*models.ZkProof, error) {
	var merkle *models.MerkleProof
	switch {
	case args.MerkleProof != nil:
		if err := registry.ValidateMerkleProof(args.MerkleProof, commitment); err != nil {
			return nil, errs.Wrap(errs.CodeProofGenerationFailed, errs.ErrProofGenerationFailed.Message, err)
		}
		merkle = args.MerkleProof
	case args.GroupID != "":
		var err error
		if merkle, err = fetchMerkleProof(ctx, s.registry, args.GroupID, commitment); err != nil {
			return nil, err
		}
	default:
		return nil, errs.WithMetadata(errs.CodeInvalidPayload, "groupId or merkleProof is required", nil)
	}

	lease, err := s.leaser.Lease(ctx, commitment)
	if err != nil {
		return nil, keepCode(errs.CodeProofGenerationFailed, errs.ErrProofGenerationFailed.Message, err)
	}
	defer lease.Release()

	circuit := proof.Circuit{
		Scheme:          args.Scheme,
		CircuitFilePath: args.CircuitFilePath,
		ZkeyFilePath:    args.ZkeyFilePath,
		VerificationKey: args.VerificationKey,
	}
	in := proof.PublicInputs{
		ExternalNullifier: args.ExternalNullifier,
		Signal:            args.Signal,
		MerkleProof:       *merkle,
		RlnIdentifier:     args.RlnIdentifier,
		MessageID:         args.MessageID,
		MessageLimit:      args.MessageLimit,
		Epoch:             args.Epoch,
	}
	out, err := s.engine.Prove(ctx, circuit, in, lease)
	if err != nil {
		return nil, errs.Wrap(errs.CodeProofGenerationFailed, errs.ErrProofGenerationFailed.Message, err)
	}
	return out, nil
}
