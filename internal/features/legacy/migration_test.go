package legacy

import (
	"context"
	"net/http/httptest"
	"testing"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/config"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/template"
	"go-workflow/internal/features/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockTemplateStore struct {
	stored  *template.Template
	ensured int
}

func (m *MockTemplateStore) GetByCode(ctx context.Context, code string) (*template.Template, error) {
	if m.stored == nil || m.stored.Code != code {
		return nil, errs.NotFound("template", code)
	}
	return m.stored, nil
}

func (m *MockTemplateStore) Ensure(ctx context.Context, tpl *template.Template) (*template.Template, bool, error) {
	m.ensured++
	if m.stored != nil {
		return m.stored, false, nil
	}
	tpl.ID = primitive.NewObjectID()
	m.stored = tpl
	return tpl, true, nil
}

type bindCall struct {
	state       string
	completed   workflow.CompletedSteps
	currentStep int
}

type MockCaseStore struct {
	unbound []workflow.Case
	binds   map[primitive.ObjectID]bindCall
}

func (m *MockCaseStore) ListUnbound(ctx context.Context) ([]workflow.Case, error) {
	var out []workflow.Case
	for _, c := range m.unbound {
		if _, done := m.binds[c.ID]; !done {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockCaseStore) Bind(ctx context.Context, id primitive.ObjectID, templateID primitive.ObjectID, templateCode, state string, completed workflow.CompletedSteps, currentStep int) error {
	if _, done := m.binds[id]; done {
		return errs.Validation("already_bound", "case %s already has a template", id.Hex())
	}
	m.binds[id] = bindCall{state: state, completed: completed, currentStep: currentStep}
	return nil
}

type MockLedger map[primitive.ObjectID]approval.Ledger

func (m MockLedger) ListByCase(ctx context.Context, caseID primitive.ObjectID) (approval.Ledger, error) {
	return m[caseID], nil
}

func newMigration() (*MigrationServiceImpl, *MockTemplateStore, *MockCaseStore, MockLedger) {
	templates := &MockTemplateStore{}
	cases := &MockCaseStore{binds: map[primitive.ObjectID]bindCall{}}
	ledger := MockLedger{}
	return &MigrationServiceImpl{Templates: templates, Cases: cases, Ledger: ledger, Log: zap.NewNop()}, templates, cases, ledger
}

func TestMigrateBindsLegacyCases(t *testing.T) {
	svc, templates, cases, ledger := newMigration()
	ctx := context.Background()

	inForm3 := workflow.Case{ID: primitive.NewObjectID(), LegacyState: "Form3"}
	atStart := workflow.Case{ID: primitive.NewObjectID(), LegacyState: "ApplicantRequest"}
	lost := workflow.Case{ID: primitive.NewObjectID(), LegacyState: "Archived"}
	cases.unbound = []workflow.Case{inForm3, atStart, lost}

	ledger[inForm3.ID] = approval.Ledger{
		{CaseID: inForm3.ID, StateCode: "ApplicantRequest", StepNumber: 0, Performer: "v"},
		{CaseID: inForm3.ID, StateCode: "Form3", StepNumber: 0, Performer: "l", RoleCode: "LC_CONTRACTS_ASSEMBLIES_LEAD"},
		{CaseID: inForm3.ID, StateCode: "Form3", StepNumber: 1, Performer: "t"},
	}

	report, err := svc.Migrate(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.TemplateCreated)
	assert.Equal(t, 2, report.Bound)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, map[string]int{"Archived": 1}, report.UnknownStates)

	bound := cases.binds[inForm3.ID]
	assert.Equal(t, "Form3", bound.state)
	assert.Equal(t, 2, bound.currentStep)
	assert.Len(t, bound.completed["Form3"], 2)
	assert.Equal(t, "LC_CONTRACTS_ASSEMBLIES_LEAD", bound.completed["Form3"]["0"].RoleCode)
	assert.Equal(t, "v", bound.completed["ApplicantRequest"]["0"].By)

	fresh := cases.binds[atStart.ID]
	assert.Equal(t, 0, fresh.currentStep)
	assert.Contains(t, fresh.completed, "ApplicantRequest")

	// A second run finds nothing new and reuses the template.
	report, err = svc.Migrate(ctx, false)
	require.NoError(t, err)
	assert.False(t, report.TemplateCreated)
	assert.Equal(t, 0, report.Bound)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, templates.ensured)
}

func TestMigrateDryRunWritesNothing(t *testing.T) {
	svc, templates, cases, _ := newMigration()
	cases.unbound = []workflow.Case{{ID: primitive.NewObjectID(), LegacyState: "Form1"}}

	report, err := svc.Migrate(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.True(t, report.TemplateCreated)
	assert.Equal(t, 1, report.Bound)
	assert.Empty(t, cases.binds)
	assert.Nil(t, templates.stored)
	assert.Zero(t, templates.ensured)
}

type staticResolver common_models.Actor

func (s staticResolver) ResolveActor(ctx context.Context, userID, username string) (common_models.Actor, error) {
	return common_models.Actor(s), nil
}

func TestLegacyRoutesNeedSuperuser(t *testing.T) {
	svc, _, _, _ := newMigration()
	build := func(actor common_models.Actor) *fiber.App {
		app := fiber.New()
		NewLegacyApi(NewMigrationController(svc, zap.NewNop()), staticResolver(actor), &config.Config{SkipAuth: true}).Setup(app)
		return app
	}

	resp, err := build(common_models.Actor{UserID: "u"}).Test(httptest.NewRequest("POST", "/api/templates/default/ensure", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	admin := build(common_models.Actor{UserID: "root", IsSuperuser: true})
	resp, err = admin.Test(httptest.NewRequest("POST", "/api/templates/default/ensure", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = admin.Test(httptest.NewRequest("POST", "/api/templates/default/ensure", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = admin.Test(httptest.NewRequest("POST", "/api/admin/migrations/legacy?dry_run=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
