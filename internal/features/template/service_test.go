package template

import (
	"context"
	"testing"

	"go-workflow/internal/common/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockTemplateRepo struct {
	byID map[primitive.ObjectID]*Template
}

func newMockTemplateRepo() *MockTemplateRepo {
	return &MockTemplateRepo{byID: map[primitive.ObjectID]*Template{}}
}

func (m *MockTemplateRepo) Create(ctx context.Context, tpl *Template) error {
	for _, t := range m.byID {
		if t.Code == tpl.Code {
			return errs.Validation("duplicate_template", "exists")
		}
	}
	if tpl.ID.IsZero() {
		tpl.ID = primitive.NewObjectID()
	}
	cp := *tpl
	m.byID[tpl.ID] = &cp
	return nil
}
func (m *MockTemplateRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*Template, error) {
	if t, ok := m.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, errs.NotFound("template", id.Hex())
}
func (m *MockTemplateRepo) GetByCode(ctx context.Context, code string) (*Template, error) {
	for _, t := range m.byID {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errs.NotFound("template", code)
}
func (m *MockTemplateRepo) List(ctx context.Context) ([]Template, error) {
	var out []Template
	for _, t := range m.byID {
		out = append(out, *t)
	}
	return out, nil
}
func (m *MockTemplateRepo) Update(ctx context.Context, tpl *Template) error {
	cp := *tpl
	m.byID[tpl.ID] = &cp
	return nil
}
func (m *MockTemplateRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	delete(m.byID, id)
	return nil
}
func (m *MockTemplateRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fixedUsage int64

func (f fixedUsage) CountByTemplate(ctx context.Context, id primitive.ObjectID) (int64, error) {
	return int64(f), nil
}

func newService(repo TemplateRepository, usage int64) *TemplateServiceImpl {
	return &TemplateServiceImpl{Repo: repo, Usage: fixedUsage(usage), DefaultCode: "ABC", Log: zap.NewNop()}
}

func TestCreateAssignsTransitionIDs(t *testing.T) {
	repo := newMockTemplateRepo()
	svc := newService(repo, 0)

	tpl := abcTemplate()
	tpl.Transitions[0].ID = ""
	require.NoError(t, svc.Create(context.Background(), tpl, "admin"))
	assert.NotEmpty(t, tpl.Transitions[0].ID)
	assert.Equal(t, "admin", tpl.CreatedBy)

	def, err := svc.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC", def.Code)
}

func TestDefaultMissingIsConfigError(t *testing.T) {
	svc := newService(newMockTemplateRepo(), 0)
	_, err := svc.Default(context.Background())
	var cfgErr *errs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestDeleteProtectedWhileInUse(t *testing.T) {
	repo := newMockTemplateRepo()
	tpl := abcTemplate()
	require.NoError(t, repo.Create(context.Background(), tpl))

	err := newService(repo, 3).Delete(context.Background(), tpl.ID.Hex())
	assert.True(t, errs.IsValidation(err))

	require.NoError(t, newService(repo, 0).Delete(context.Background(), tpl.ID.Hex()))
	_, err = repo.GetByID(context.Background(), tpl.ID)
	assert.True(t, errs.IsNotFound(err))
}

func TestUpdateCannotDropStatesInUse(t *testing.T) {
	repo := newMockTemplateRepo()
	tpl := abcTemplate()
	require.NoError(t, repo.Create(context.Background(), tpl))

	shrunk := abcTemplate()
	shrunk.States = shrunk.States[:2]
	shrunk.States[1].IsTerminal = true
	shrunk.Transitions = shrunk.Transitions[1:]

	err := newService(repo, 1).Update(context.Background(), tpl.ID.Hex(), shrunk)
	assert.True(t, errs.IsValidation(err))

	require.NoError(t, newService(repo, 0).Update(context.Background(), tpl.ID.Hex(), shrunk))
}

func TestEnsureIsIdempotent(t *testing.T) {
	repo := newMockTemplateRepo()
	svc := newService(repo, 0)

	_, created, err := svc.Ensure(context.Background(), abcTemplate())
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = svc.Ensure(context.Background(), abcTemplate())
	require.NoError(t, err)
	assert.False(t, created)
}
