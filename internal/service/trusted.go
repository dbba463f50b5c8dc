package service

import (
	"context"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
)

// Trusted handles RPC calls from authenticated approval surfaces. These run
// directly without a pending request: the approver is the user.
type Trusted struct {
	Identities *IdentityService
	Groups     *GroupService
	Proofs     *ZkProofService
	History    *HistoryService
}

// Handle routes one trusted call.
func (t *Trusted) Handle(ctx context.Context, req models.Request) (any, error) {
	switch req.Method {
	case models.CreateIdentity:
		return call(ctx, req.Payload, t.Identities.CreateIdentity)
	case models.SetActiveIdentity:
		return call(ctx, req.Payload, noResult(t.Identities.SetActiveIdentity))
	case models.SetIdentityName:
		return call(ctx, req.Payload, noResult(t.Identities.SetIdentityName))
	case models.DeleteIdentity:
		return call(ctx, req.Payload, noResult(t.Identities.DeleteIdentity))
	case models.DeleteAllIdentities:
		return true, t.Identities.DeleteAllIdentities(ctx)
	case models.GetIdentities:
		return t.Identities.Identities(ctx)
	case models.GetConnectedIdentity:
		return t.Identities.ConnectedIdentity(ctx)
	case models.JoinGroup:
		return call(ctx, req.Payload, t.Groups.JoinGroup)
	case models.GenerateGroupMerkleProof:
		return call(ctx, req.Payload, t.Groups.GenerateGroupMerkleProof)
	case models.CheckGroupMembership:
		return call(ctx, req.Payload, t.Groups.CheckGroupMembership)
	case models.GenerateZkProof:
		return call(ctx, req.Payload, t.Proofs.GenerateZkProof)
	case models.GetHistory:
		return t.History.History(ctx)
	case models.EnableHistory:
		return call(ctx, req.Payload, func(ctx context.Context, s models.HistorySettings) (bool, error) {
			return s.IsEnabled, t.History.EnableHistory(ctx, s.IsEnabled)
		})
	case models.ClearHistory:
		return true, t.History.ClearHistory(ctx)
	default:
		return nil, errs.WithMetadata(errs.CodeUnknownOperation, errs.ErrUnknownOperation.Message,
			map[string]string{"method": string(req.Method)})
	}
}

func call[A, R any](ctx context.Context, raw []byte, fn func(context.Context, A) (R, error)) (any, error) {
	args, err := decodePayload[A](raw)
	if err != nil {
		return nil, err
	}
	out, err := fn(ctx, args)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func noResult[A any](fn func(context.Context, A) error) func(context.Context, A) (bool, error) {
	return func(ctx context.Context, a A) (bool, error) {
		if err := fn(ctx, a); err != nil {
			return false, err
		}
		return true, nil
	}
}
