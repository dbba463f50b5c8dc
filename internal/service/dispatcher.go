package service

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/atinyakov/zkkeeper/internal/broker"
	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/middleware"
	"github.com/atinyakov/zkkeeper/internal/models"
)

// Dispatcher runs approved requests. It is the broker's Executor and must
// handle every models.RequestType.
type Dispatcher struct {
	Identities *IdentityService
	Groups     *GroupService
	Proofs     *ZkProofService
}

// Execute decodes the final payload of req and calls the matching operation.
func (d *Dispatcher) Execute(ctx context.Context, req broker.Request) (any, error) {
	ctx = middleware.WithOrigin(ctx, req.Origin)

	switch req.Type {
	case models.RequestCreateIdentity:
		args, err := decodePayload[models.CreateIdentityArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return d.Identities.CreateIdentity(ctx, args)

	case models.RequestJoinGroup:
		args, err := decodePayload[models.JoinGroupArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return d.Groups.JoinGroup(ctx, args)

	case models.RequestGenerateGroupMerkleProof:
		args, err := decodePayload[models.GroupArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return d.Groups.GenerateGroupMerkleProof(ctx, args)

	case models.RequestCheckGroupMembership:
		args, err := decodePayload[models.GroupArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return d.Groups.CheckGroupMembership(ctx, args)

	case models.RequestGenerateZkProof:
		args, err := decodePayload[models.ZkProofArgs](req.Payload)
		if err != nil {
			return nil, err
		}
		return d.Proofs.GenerateZkProof(ctx, args)

	default:
		return nil, errs.WithMetadata(errs.CodeUnknownOperation, errs.ErrUnknownOperation.Message,
			map[string]string{"type": string(req.Type)})
	}
}

// decodePayload decodes raw into T. An empty payload decodes to the zero
// value so operations can report their own missing fields.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var out T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errs.Wrap(errs.CodeInvalidPayload, errs.ErrInvalidPayload.Message, err)
	}
	return out, nil
}
