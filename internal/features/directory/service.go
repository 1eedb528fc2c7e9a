package directory

import (
	"context"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewDirectory picks the membership source configured by DIRECTORY_DRIVER.
func NewDirectory(lc fx.Lifecycle, cfg *config.Config, repo MemberRepository, log *zap.Logger) (Directory, error) {
	if cfg.DirectoryDriver == "" || cfg.DirectoryDriver == "mongo" {
		return repo, nil
	}

	sqlDir, err := OpenSQLDirectory(context.Background(), cfg.DirectoryDriver, cfg.DirectoryDSN)
	if err != nil {
		return nil, err
	}
	log.Info("using external role directory", zap.String("driver", cfg.DirectoryDriver))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sqlDir.Close()
		},
	})
	return sqlDir, nil
}

type DirectoryService interface {
	ResolveActor(ctx context.Context, userID, username string) (common_models.Actor, error)
	MembersOf(ctx context.Context, roleCodes []string) ([]Member, error)
	Usernames(ctx context.Context, userIDs []string) (map[string]string, error)
	ListMembers(ctx context.Context) ([]Member, error)
	UpsertMember(ctx context.Context, m *Member) error
}

type DirectoryServiceImpl struct {
	Directory Directory
	Repo      MemberRepository
	Log       *zap.Logger
}

func NewDirectoryService(directory Directory, repo MemberRepository, log *zap.Logger) DirectoryService {
	return &DirectoryServiceImpl{
		Directory: directory,
		Repo:      repo,
		Log:       log,
	}
}

// ResolveActor builds the caller identity from the directory. Unknown
// users resolve to an actor without roles; inactive members are refused.
func (s *DirectoryServiceImpl) ResolveActor(ctx context.Context, userID, username string) (common_models.Actor, error) {
	actor := common_models.Actor{UserID: userID, Username: username}

	m, err := s.Directory.Lookup(ctx, userID)
	if err != nil {
		if errs.IsNotFound(err) {
			s.Log.Debug("caller not in directory", zap.String("user_id", userID))
			return actor, nil
		}
		return actor, err
	}
	if !m.IsActive {
		return actor, errs.Forbidden("account is inactive")
	}

	if m.Username != "" {
		actor.Username = m.Username
	}
	actor.Roles = m.Roles
	actor.IsSuperuser = m.IsSuperuser
	return actor, nil
}

func (s *DirectoryServiceImpl) MembersOf(ctx context.Context, roleCodes []string) ([]Member, error) {
	seen := make(map[string]bool)
	var out []Member
	for _, code := range roleCodes {
		members, err := s.Directory.MembersOf(ctx, code)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if !seen[m.UserID] {
				seen[m.UserID] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// Usernames resolves display names. Unknown ids are left out of the result.
func (s *DirectoryServiceImpl) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		m, err := s.Directory.Lookup(ctx, id)
		if err != nil {
			if errs.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if m.Username != "" {
			out[id] = m.Username
		}
	}
	return out, nil
}

func (s *DirectoryServiceImpl) ListMembers(ctx context.Context) ([]Member, error) {
	if !s.writable() {
		return nil, errs.Validation("read_only_directory", "members are managed by the external directory")
	}
	return s.Repo.List(ctx)
}

func (s *DirectoryServiceImpl) UpsertMember(ctx context.Context, m *Member) error {
	if !s.writable() {
		return errs.Validation("read_only_directory", "members are managed by the external directory")
	}
	if m.UserID == "" {
		return errs.Validation("invalid_member", "user_id is required")
	}
	return s.Repo.Upsert(ctx, m)
}

func (s *DirectoryServiceImpl) writable() bool {
	_, ok := s.Directory.(MemberRepository)
	return ok
}

