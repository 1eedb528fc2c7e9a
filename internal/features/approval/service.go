package approval

import (
	"context"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseViewGuard decides whether an actor may look at a case.
type CaseViewGuard interface {
	EnsureCanView(ctx context.Context, actor common_models.Actor, caseID primitive.ObjectID) error
}

type ApprovalService interface {
	ListForCase(ctx context.Context, actor common_models.Actor, caseID string) (Ledger, error)
}

type ApprovalServiceImpl struct {
	Repo  ApprovalRepository
	Guard CaseViewGuard
}

func NewApprovalService(repo ApprovalRepository, guard CaseViewGuard) ApprovalService {
	return &ApprovalServiceImpl{
		Repo:  repo,
		Guard: guard,
	}
}

func (s *ApprovalServiceImpl) ListForCase(ctx context.Context, actor common_models.Actor, caseID string) (Ledger, error) {
	oid, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		return nil, errs.NotFound("case", caseID)
	}
	if err := s.Guard.EnsureCanView(ctx, actor, oid); err != nil {
		return nil, err
	}
	ledger, err := s.Repo.ListByCase(ctx, oid)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = Ledger{}
	}
	return ledger, nil
}
