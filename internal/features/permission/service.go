package permission

import (
	"context"
	"time"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CaseLookup resolves the permission-relevant facts of a case.
type CaseLookup interface {
	CaseRef(ctx context.Context, id primitive.ObjectID) (CaseRef, error)
}

type PermissionService interface {
	CheckState(ctx context.Context, actor common_models.Actor, c CaseRef, kind Kind) (bool, error)
	CheckStep(ctx context.Context, actor common_models.Actor, state string, step int) (bool, error)
	Check(ctx context.Context, actor common_models.Actor, t Target, kind Kind) (bool, error)
	FilterData(ctx context.Context, actor common_models.Actor, c *CaseRef, form int, data map[string]any, kind Kind, state string) (map[string]any, error)
	EditableFields(ctx context.Context, actor common_models.Actor, c *CaseRef, form int, state string) ([]string, error)
	RolesGranting(ctx context.Context, state string, kind Kind) ([]string, error)
	ResolveCase(ctx context.Context, caseID string) (*CaseRef, error)

	CreateGrant(ctx context.Context, g *Grant, createdBy string) error
	ListGrants(ctx context.Context, f GrantFilter) ([]Grant, error)
	SetGrantActive(ctx context.Context, id string, active bool) error
	CreateOverride(ctx context.Context, o *Override, grantedBy string) error
	ListOverrides(ctx context.Context, caseID string) ([]Override, error)
	SetOverrideActive(ctx context.Context, id string, active bool) error
	ExpireOverrides(ctx context.Context) (int64, error)
}

type PermissionServiceImpl struct {
	Grants    GrantRepository
	Overrides OverrideRepository
	Cache     SnapshotCache
	Cases     CaseLookup
	Resolver  *Resolver
	Metrics   *metrics.Recorder
	Log       *zap.Logger
}

func NewPermissionService(
	grants GrantRepository,
	overrides OverrideRepository,
	cache SnapshotCache,
	cases CaseLookup,
	recorder *metrics.Recorder,
	log *zap.Logger,
) PermissionService {
	return &PermissionServiceImpl{
		Grants:    grants,
		Overrides: overrides,
		Cache:     cache,
		Cases:     cases,
		Resolver:  NewResolver(),
		Metrics:   recorder,
		Log:       log,
	}
}

// load fetches the grant snapshot and, when a case is known, its overrides.
func (s *PermissionServiceImpl) load(ctx context.Context, c *CaseRef) (*Snapshot, []Override, error) {
	snap, err := s.Cache.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if c == nil || c.ID.IsZero() {
		return snap, nil, nil
	}
	overrides, err := s.Overrides.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return snap, overrides, nil
}

func (s *PermissionServiceImpl) CheckState(ctx context.Context, actor common_models.Actor, c CaseRef, kind Kind) (bool, error) {
	snap, overrides, err := s.load(ctx, &c)
	if err != nil {
		return false, err
	}
	allowed := s.Resolver.CheckState(snap, overrides, actor, c, kind)
	s.Metrics.Decision(string(kind), allowed)
	return allowed, nil
}

func (s *PermissionServiceImpl) CheckStep(ctx context.Context, actor common_models.Actor, state string, step int) (bool, error) {
	snap, err := s.Cache.Get(ctx)
	if err != nil {
		return false, err
	}
	return s.Resolver.CheckStep(snap, actor, state, step), nil
}

func (s *PermissionServiceImpl) Check(ctx context.Context, actor common_models.Actor, t Target, kind Kind) (bool, error) {
	snap, overrides, err := s.load(ctx, t.Case)
	if err != nil {
		return false, err
	}
	allowed := s.Resolver.Check(snap, overrides, actor, t, kind)
	s.Metrics.Decision(string(kind), allowed)
	s.Log.Debug("permission check",
		zap.String("user_id", actor.UserID),
		zap.String("kind", string(kind)),
		zap.String("state", t.State),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}

func (s *PermissionServiceImpl) FilterData(ctx context.Context, actor common_models.Actor, c *CaseRef, form int, data map[string]any, kind Kind, state string) (map[string]any, error) {
	snap, overrides, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.Resolver.FilterData(snap, overrides, actor, c, form, data, kind, state), nil
}

func (s *PermissionServiceImpl) EditableFields(ctx context.Context, actor common_models.Actor, c *CaseRef, form int, state string) ([]string, error) {
	snap, overrides, err := s.load(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.Resolver.EditableFields(snap, overrides, actor, c, form, state), nil
}

// RolesGranting names the roles that would pass a kind check in state.
func (s *PermissionServiceImpl) RolesGranting(ctx context.Context, state string, kind Kind) ([]string, error) {
	snap, err := s.Cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.RolesGranting(state, kind), nil
}

func (s *PermissionServiceImpl) ResolveCase(ctx context.Context, caseID string) (*CaseRef, error) {
	if caseID == "" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		return nil, errs.NotFound("case", caseID)
	}
	ref, err := s.Cases.CaseRef(ctx, oid)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *PermissionServiceImpl) CreateGrant(ctx context.Context, g *Grant, createdBy string) error {
	g.ID = primitive.NilObjectID
	g.IsActive = true
	if err := g.Validate(); err != nil {
		return err
	}
	g.CreatedBy = createdBy
	g.CreatedAt = time.Now()
	if err := s.Grants.Create(ctx, g); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.Log.Info("grant created",
		zap.String("grant_id", g.ID.Hex()),
		zap.String("scope", string(g.Scope)),
		zap.String("kind", string(g.Kind)),
		zap.String("role_code", g.RoleCode),
		zap.String("user_id", g.UserID),
	)
	return nil
}

func (s *PermissionServiceImpl) ListGrants(ctx context.Context, f GrantFilter) ([]Grant, error) {
	grants, err := s.Grants.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []Grant{}
	}
	return grants, nil
}

func (s *PermissionServiceImpl) SetGrantActive(ctx context.Context, id string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.NotFound("grant", id)
	}
	if err := s.Grants.SetActive(ctx, oid, active); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *PermissionServiceImpl) CreateOverride(ctx context.Context, o *Override, grantedBy string) error {
	o.ID = primitive.NilObjectID
	o.IsActive = true
	if err := o.Validate(); err != nil {
		return err
	}
	if o.ExpiresAt != nil && !o.ExpiresAt.After(time.Now()) {
		return errs.Validation("invalid_override", "expires_at is in the past")
	}
	if _, err := s.Cases.CaseRef(ctx, o.CaseID); err != nil {
		return err
	}
	o.GrantedBy = grantedBy
	o.CreatedAt = time.Now()
	return s.Overrides.Create(ctx, o)
}

func (s *PermissionServiceImpl) ListOverrides(ctx context.Context, caseID string) ([]Override, error) {
	oid, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		return nil, errs.NotFound("case", caseID)
	}
	out, err := s.Overrides.ListByCase(ctx, oid)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Override{}
	}
	return out, nil
}

func (s *PermissionServiceImpl) SetOverrideActive(ctx context.Context, id string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.NotFound("override", id)
	}
	return s.Overrides.SetActive(ctx, oid, active)
}

func (s *PermissionServiceImpl) ExpireOverrides(ctx context.Context) (int64, error) {
	n, err := s.Overrides.ExpireBefore(ctx, s.Resolver.now())
	if err != nil {
		return 0, err
	}
	s.Metrics.OverridesExpired(n)
	return n, nil
}

func (s *PermissionServiceImpl) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Log.Warn("could not invalidate grant snapshot", zap.Error(err))
	}
}
