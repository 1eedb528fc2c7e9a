package legacy

import (
	"context"

	"go-workflow/internal/common/errs"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/template"
	"go-workflow/internal/features/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type TemplateStore interface {
	GetByCode(ctx context.Context, code string) (*template.Template, error)
	Ensure(ctx context.Context, tpl *template.Template) (*template.Template, bool, error)
}

type CaseStore interface {
	ListUnbound(ctx context.Context) ([]workflow.Case, error)
	Bind(ctx context.Context, id primitive.ObjectID, templateID primitive.ObjectID, templateCode, state string, completed workflow.CompletedSteps, currentStep int) error
}

type LedgerReader interface {
	ListByCase(ctx context.Context, caseID primitive.ObjectID) (approval.Ledger, error)
}

// MigrationReport summarizes one migration run.
type MigrationReport struct {
	DryRun          bool           `json:"dry_run"`
	TemplateCode    string         `json:"template_code"`
	TemplateCreated bool           `json:"template_created"`
	Bound           int            `json:"bound"`
	Skipped         int            `json:"skipped"`
	UnknownStates   map[string]int `json:"unknown_states"`
}

type MigrationService interface {
	EnsureTemplate(ctx context.Context) (*template.Template, bool, error)
	Migrate(ctx context.Context, dryRun bool) (*MigrationReport, error)
}

type MigrationServiceImpl struct {
	Templates TemplateStore
	Cases     CaseStore
	Ledger    LedgerReader
	Log       *zap.Logger
}

func NewMigrationService(
	templates template.TemplateService,
	cases workflow.CaseRepository,
	ledger approval.ApprovalRepository,
	log *zap.Logger,
) MigrationService {
	return &MigrationServiceImpl{
		Templates: templates,
		Cases:     cases,
		Ledger:    ledger,
		Log:       log,
	}
}

// EnsureTemplate stores the legacy template unless one with its code
// already exists.
func (s *MigrationServiceImpl) EnsureTemplate(ctx context.Context) (*template.Template, bool, error) {
	tpl, created, err := s.Templates.Ensure(ctx, LegacyTemplate())
	if err != nil {
		return nil, false, err
	}
	if created {
		s.Log.Info("legacy template created", zap.String("template", tpl.Code), zap.String("template_id", tpl.ID.Hex()))
	}
	return tpl, created, nil
}

// Migrate binds every case without a template to the legacy template. The
// case's linear state becomes its current state and completed_steps is
// rebuilt from the approval ledger. In a dry run nothing is written.
func (s *MigrationServiceImpl) Migrate(ctx context.Context, dryRun bool) (*MigrationReport, error) {
	report := &MigrationReport{DryRun: dryRun, TemplateCode: TemplateCode, UnknownStates: map[string]int{}}

	var (
		tpl *template.Template
		err error
	)
	if dryRun {
		tpl, err = s.Templates.GetByCode(ctx, TemplateCode)
		if errs.IsNotFound(err) {
			tpl, err = LegacyTemplate(), nil
			report.TemplateCreated = true
		}
	} else {
		tpl, report.TemplateCreated, err = s.EnsureTemplate(ctx)
	}
	if err != nil {
		return nil, err
	}

	cases, err := s.Cases.ListUnbound(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cases {
		st, ok := tpl.FindState(c.LegacyState)
		if !ok {
			report.Skipped++
			report.UnknownStates[c.LegacyState]++
			s.Log.Warn("case left unbound: unknown legacy state",
				zap.String("case_id", c.ID.Hex()), zap.String("state", c.LegacyState))
			continue
		}

		ledger, err := s.Ledger.ListByCase(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		completed := workflow.Projection(ledger)
		if _, ok := completed[st.Code]; !ok {
			completed[st.Code] = map[string]workflow.StepCompletion{}
		}
		currentStep := CurrentStep(ledger, st.Code)

		if dryRun {
			report.Bound++
			continue
		}
		if err := s.Cases.Bind(ctx, c.ID, tpl.ID, tpl.Code, st.Code, completed, currentStep); err != nil {
			if errs.IsValidation(err) {
				report.Skipped++
				continue
			}
			return nil, err
		}
		report.Bound++
		s.Log.Info("case bound to template",
			zap.String("case_id", c.ID.Hex()), zap.String("state", st.Code), zap.Int("step", currentStep))
	}

	s.Log.Info("legacy migration finished",
		zap.Bool("dry_run", dryRun), zap.Int("bound", report.Bound), zap.Int("skipped", report.Skipped))
	return report, nil
}
