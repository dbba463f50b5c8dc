package service

import (
	"context"
	"strings"
)

// ApproverRepository defines the persistence operations
// required by the approver service.
type ApproverRepository interface {
	// ApproverExists returns true if an approver with the given login exists.
	ApproverExists(ctx context.Context, login string) (bool, error)
	// RegisterApprover creates a new approver record with the given login.
	RegisterApprover(ctx context.Context, login string) error
}

// ApproverService registers and looks up approval-surface operators.
type ApproverService struct {
	// repo performs the data-layer operations.
	repo ApproverRepository
}

// NewApproverService constructs a new ApproverService using the provided repository.
func NewApproverService(repo ApproverRepository) *ApproverService {
	return &ApproverService{repo: repo}
}

// ApproverExists checks whether an approver with the specified login exists.
func (s *ApproverService) ApproverExists(ctx context.Context, login string) (bool, error) {
	return s.repo.ApproverExists(ctx, strings.TrimSpace(login))
}

// RegisterApprover registers a new approver with the given login.
// Returns an error if the repository operation fails.
func (s *ApproverService) RegisterApprover(ctx context.Context, login string) error {
	return s.repo.RegisterApprover(ctx, strings.TrimSpace(login))
}
