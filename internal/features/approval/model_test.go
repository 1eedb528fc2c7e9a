package approval

import (
	"context"
	"errors"
	"testing"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func rec(state string, step int) ApprovalRecord {
	return ApprovalRecord{StateCode: state, StepNumber: step, Performer: "u1"}
}

func TestNextRequiredStep(t *testing.T) {
	tests := []struct {
		name  string
		steps []int
		want  int
	}{
		{"empty", nil, 0},
		{"first done", []int{0}, 1},
		{"contiguous", []int{0, 1, 2}, 3},
		{"gap uses max", []int{0, 2}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRequiredStep(tt.steps))
		})
	}
}

func TestLedgerCountsDistinctSteps(t *testing.T) {
	l := Ledger{rec("B", 1), rec("A", 0), rec("B", 0), rec("B", 1)}

	assert.Equal(t, []int{0, 1}, l.Steps("B"))
	assert.Equal(t, 2, l.SatisfiedCount("B"))
	assert.Equal(t, 2, l.NextRequiredStep("B"))
	assert.Equal(t, 0, l.NextRequiredStep("C"))
	assert.Equal(t, map[string]int{"A": 1, "B": 2}, l.Counts())

	_, ok := l.Find("A", 0)
	assert.True(t, ok)
	_, ok = l.Find("A", 1)
	assert.False(t, ok)
}

type MockApprovalRepo struct {
	records Ledger
}

func (m *MockApprovalRepo) Insert(ctx context.Context, r *ApprovalRecord) error {
	if _, ok := m.records.Find(r.StateCode, r.StepNumber); ok {
		return errs.ErrConflictIgnored
	}
	m.records = append(m.records, *r)
	return nil
}
func (m *MockApprovalRepo) ListByCase(ctx context.Context, caseID primitive.ObjectID) (Ledger, error) {
	return m.records, nil
}
func (m *MockApprovalRepo) ListByCaseState(ctx context.Context, caseID primitive.ObjectID, state string) (Ledger, error) {
	var out Ledger
	for _, r := range m.records {
		if r.StateCode == state {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *MockApprovalRepo) EnsureIndexes(ctx context.Context) error { return nil }

type guardFunc func(common_models.Actor) error

func (g guardFunc) EnsureCanView(ctx context.Context, actor common_models.Actor, caseID primitive.ObjectID) error {
	return g(actor)
}

func TestListForCaseHonoursGuard(t *testing.T) {
	repo := &MockApprovalRepo{}
	require.NoError(t, repo.Insert(context.Background(), &ApprovalRecord{StateCode: "A", StepNumber: 0}))
	assert.True(t, errors.Is(repo.Insert(context.Background(), &ApprovalRecord{StateCode: "A", StepNumber: 0}), errs.ErrConflictIgnored))

	svc := NewApprovalService(repo, guardFunc(func(a common_models.Actor) error {
		if a.UserID != "viewer" {
			return errs.Forbidden("cannot view case")
		}
		return nil
	}))
	id := primitive.NewObjectID().Hex()

	ledger, err := svc.ListForCase(context.Background(), common_models.Actor{UserID: "viewer"}, id)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	_, err = svc.ListForCase(context.Background(), common_models.Actor{UserID: "other"}, id)
	assert.True(t, errs.IsForbidden(err))

	_, err = svc.ListForCase(context.Background(), common_models.Actor{UserID: "viewer"}, "not-an-id")
	assert.True(t, errs.IsNotFound(err))
}
