package template

import (
	"context"
	"time"

	"go-workflow/internal/common/errs"
	"go-workflow/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UsageCounter reports how many cases reference a template.
type UsageCounter interface {
	CountByTemplate(ctx context.Context, templateID primitive.ObjectID) (int64, error)
}

type TemplateService interface {
	Create(ctx context.Context, tpl *Template, createdBy string) error
	Get(ctx context.Context, id string) (*Template, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*Template, error)
	GetByCode(ctx context.Context, code string) (*Template, error)
	Default(ctx context.Context) (*Template, error)
	List(ctx context.Context) ([]Template, error)
	Update(ctx context.Context, id string, tpl *Template) error
	Delete(ctx context.Context, id string) error
	// Ensure creates tpl when no template with its code exists.
	Ensure(ctx context.Context, tpl *Template) (*Template, bool, error)
}

type TemplateServiceImpl struct {
	Repo        TemplateRepository
	Usage       UsageCounter
	DefaultCode string
	Log         *zap.Logger
}

func NewTemplateService(repo TemplateRepository, usage UsageCounter, cfg *config.Config, log *zap.Logger) TemplateService {
	return &TemplateServiceImpl{
		Repo:        repo,
		Usage:       usage,
		DefaultCode: cfg.DefaultTemplateCode,
		Log:         log,
	}
}

func (s *TemplateServiceImpl) Create(ctx context.Context, tpl *Template, createdBy string) error {
	for i := range tpl.Transitions {
		if tpl.Transitions[i].ID == "" {
			tpl.Transitions[i].ID = primitive.NewObjectID().Hex()
		}
	}
	if err := Validate(tpl); err != nil {
		return err
	}

	now := time.Now()
	tpl.ID = primitive.NilObjectID
	tpl.CreatedBy = createdBy
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	if err := s.Repo.Create(ctx, tpl); err != nil {
		return err
	}
	s.Log.Info("template created", zap.String("template", tpl.Code), zap.Int("states", len(tpl.States)))
	return nil
}

func (s *TemplateServiceImpl) Get(ctx context.Context, id string) (*Template, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.NotFound("template", id)
	}
	return s.Repo.GetByID(ctx, oid)
}

func (s *TemplateServiceImpl) GetByID(ctx context.Context, id primitive.ObjectID) (*Template, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *TemplateServiceImpl) GetByCode(ctx context.Context, code string) (*Template, error) {
	return s.Repo.GetByCode(ctx, code)
}

func (s *TemplateServiceImpl) Default(ctx context.Context) (*Template, error) {
	tpl, err := s.Repo.GetByCode(ctx, s.DefaultCode)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, &errs.ConfigError{Template: s.DefaultCode, Message: "default template is not installed"}
		}
		return nil, err
	}
	if !tpl.Active {
		return nil, &errs.ConfigError{Template: s.DefaultCode, Message: "default template is inactive"}
	}
	return tpl, nil
}

func (s *TemplateServiceImpl) List(ctx context.Context) ([]Template, error) {
	return s.Repo.List(ctx)
}

// Update replaces the graph of a template. Once cases reference it, states
// may be added but never removed.
func (s *TemplateServiceImpl) Update(ctx context.Context, id string, tpl *Template) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	tpl.ID = existing.ID
	tpl.Code = existing.Code
	for i := range tpl.Transitions {
		if tpl.Transitions[i].ID == "" {
			tpl.Transitions[i].ID = primitive.NewObjectID().Hex()
		}
	}
	if err := Validate(tpl); err != nil {
		return err
	}

	inUse, err := s.Usage.CountByTemplate(ctx, existing.ID)
	if err != nil {
		return err
	}
	if inUse > 0 {
		for _, st := range existing.States {
			if _, ok := tpl.FindState(st.Code); !ok {
				return errs.Validation("state_in_use", "state %s cannot be removed while %d cases use template %s", st.Code, inUse, existing.Code)
			}
		}
	}

	return s.Repo.Update(ctx, tpl)
}

func (s *TemplateServiceImpl) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	inUse, err := s.Usage.CountByTemplate(ctx, existing.ID)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return errs.Validation("template_in_use", "template %s is referenced by %d cases", existing.Code, inUse)
	}
	return s.Repo.Delete(ctx, existing.ID)
}

func (s *TemplateServiceImpl) Ensure(ctx context.Context, tpl *Template) (*Template, bool, error) {
	existing, err := s.Repo.GetByCode(ctx, tpl.Code)
	if err == nil {
		return existing, false, nil
	}
	if !errs.IsNotFound(err) {
		return nil, false, err
	}
	if err := s.Create(ctx, tpl, "system"); err != nil {
		return nil, false, err
	}
	return tpl, true, nil
}
