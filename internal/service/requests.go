package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
)

// Submitter admits a request and waits for its outcome.
type Submitter interface {
	Submit(ctx context.Context, typ models.RequestType, payload json.RawMessage, origin string) (any, error)
}

// Requests is the admission front for untrusted callers. Every method
// enqueues an approval-gated request and blocks until it settles; nothing
// here touches identities directly.
type Requests struct {
	broker Submitter
}

// NewRequests constructs the admission front over broker.
func NewRequests(broker Submitter) *Requests {
	return &Requests{broker: broker}
}

// Handle routes a public RPC call. Only approval-gated methods are accepted.
func (r *Requests) Handle(ctx context.Context, origin string, req models.Request) (any, error) {
	typ, ok := models.PublicRequestType(req.Method)
	if !ok {
		return nil, errs.WithMetadata(errs.CodeUnknownOperation, errs.ErrUnknownOperation.Message,
			map[string]string{"method": string(req.Method)})
	}

	switch typ {
	case models.RequestCreateIdentity:
		args, err := decodePayload[models.CreateIdentityArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return r.CreateIdentityRequest(ctx, origin, args)
	case models.RequestJoinGroup:
		args, err := decodePayload[models.JoinGroupArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return r.JoinGroupRequest(ctx, origin, args)
	case models.RequestGenerateGroupMerkleProof:
		args, err := decodePayload[models.GroupArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return r.GenerateGroupMerkleProofRequest(ctx, origin, args)
	case models.RequestCheckGroupMembership:
		args, err := decodePayload[models.GroupArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return r.CheckGroupMembershipRequest(ctx, origin, args)
	case models.RequestGenerateZkProof:
		args, err := decodePayload[models.ZkProofArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return r.GenerateZkProofRequest(ctx, origin, args)
	default:
		return nil, errs.ErrUnknownOperation
	}
}

// CreateIdentityRequest asks the user to create an identity and returns the
// new commitment.
func (r *Requests) CreateIdentityRequest(ctx context.Context, origin string, args models.CreateIdentityArgs) (string, error) {
	return submit[string](ctx, r.broker, models.RequestCreateIdentity, args, origin)
}

// JoinGroupRequest asks the user to join a group with the connected identity.
func (r *Requests) JoinGroupRequest(ctx context.Context, origin string, args models.JoinGroupArgs) (bool, error) {
	return submit[bool](ctx, r.broker, models.RequestJoinGroup, args, origin)
}

// GenerateGroupMerkleProofRequest asks the user to release a Merkle proof.
func (r *Requests) GenerateGroupMerkleProofRequest(ctx context.Context, origin string, args models.GroupArgs) (*models.MerkleProof, error) {
	return submit[*models.MerkleProof](ctx, r.broker, models.RequestGenerateGroupMerkleProof, args, origin)
}

// CheckGroupMembershipRequest asks the user to disclose group membership.
func (r *Requests) CheckGroupMembershipRequest(ctx context.Context, origin string, args models.GroupArgs) (bool, error) {
	return submit[bool](ctx, r.broker, models.RequestCheckGroupMembership, args, origin)
}

// GenerateZkProofRequest asks the user to generate a zero-knowledge proof.
func (r *Requests) GenerateZkProofRequest(ctx context.Context, origin string, args models.ZkProofArgs) (*models.ZkProof, error) {
	return submit[*models.ZkProof](ctx, r.broker, models.RequestGenerateZkProof, args, origin)
}

// submit marshals args as the request payload. The payload shown to the
// approver holds only these public arguments.
func submit[T any](ctx context.Context, b Submitter, typ models.RequestType, args any, origin string) (T, error) {
	var zero T
	payload, err := json.Marshal(args)
	if err != nil {
		return zero, errs.Wrap(errs.CodeInvalidPayload, errs.ErrInvalidPayload.Message, err)
	}
	result, err := b.Submit(ctx, typ, payload, origin)
	if err != nil {
		return zero, err
	}
	out, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", typ, result)
	}
	return out, nil
}
