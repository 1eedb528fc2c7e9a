package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// NameResolver maps user ids to display names.
type NameResolver interface {
	Usernames(ctx context.Context, userIDs []string) (map[string]string, error)
}

type AuditService interface {
	Record(ctx context.Context, a *Action) error
	List(ctx context.Context, f Filter, page, limit int64) ([]Action, error)
}

type AuditServiceImpl struct {
	Repo  AuditRepository
	Names NameResolver
	Log   *zap.Logger
}

func NewAuditService(repo AuditRepository, names NameResolver, log *zap.Logger) AuditService {
	return &AuditServiceImpl{
		Repo:  repo,
		Names: names,
		Log:   log,
	}
}

func (s *AuditServiceImpl) Record(ctx context.Context, a *Action) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return s.Repo.Create(ctx, a)
}

func (s *AuditServiceImpl) List(ctx context.Context, f Filter, page, limit int64) ([]Action, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	actions, err := s.Repo.List(ctx, f, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		return []Action{}, nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, a := range actions {
		if a.Performer != "" && a.Performer != "system" && !seen[a.Performer] {
			seen[a.Performer] = true
			ids = append(ids, a.Performer)
		}
	}

	names := map[string]string{}
	if len(ids) > 0 && s.Names != nil {
		if resolved, err := s.Names.Usernames(ctx, ids); err == nil {
			names = resolved
		} else {
			s.Log.Warn("could not resolve performer names", zap.Error(err))
		}
	}

	for i := range actions {
		switch p := actions[i].Performer; {
		case p == "" || p == "system":
			actions[i].PerformerName = "System"
		case names[p] != "":
			actions[i].PerformerName = names[p]
		default:
			actions[i].PerformerName = p
		}
	}
	return actions, nil
}
