package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go-workflow/internal/config"
	"go-workflow/internal/database"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/directory"
	"go-workflow/internal/features/legacy"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/template"
	"go-workflow/internal/features/workflow"
	"go-workflow/internal/logger"
	"go-workflow/pkg/utils"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const tokenTTL = 24 * time.Hour

// grantSeed expands into one grant per (role, state). "*" stands for every
// state of the default template.
type grantSeed struct {
	Roles         []string             `json:"roles"`
	Scope         permission.ScopeType `json:"scope"`
	Kind          permission.Kind      `json:"kind"`
	States        []string             `json:"states"`
	StepNumber    *int                 `json:"step_number"`
	FormNumber    *int                 `json:"form_number"`
	FieldPath     string               `json:"field_path"`
	RestrictToOwn bool                 `json:"restrict_to_own"`
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func grantKey(g permission.Grant) string {
	step, form := -1, -1
	if g.StepNumber != nil {
		step = *g.StepNumber
	}
	if g.FormNumber != nil {
		form = *g.FormNumber
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d|%s|%t", g.RoleCode, g.UserID, g.Scope, g.Kind, g.State, step, form, g.FieldPath, g.RestrictToOwn)
}

func expandGrants(seeds []grantSeed, states []string, now time.Time) []permission.Grant {
	var out []permission.Grant
	for _, s := range seeds {
		targets := s.States
		if len(targets) == 1 && targets[0] == "*" {
			targets = states
		}
		if len(targets) == 0 {
			targets = []string{""}
		}
		for _, role := range s.Roles {
			for _, state := range targets {
				out = append(out, permission.Grant{
					RoleCode:      role,
					Scope:         s.Scope,
					Kind:          s.Kind,
					State:         state,
					StepNumber:    s.StepNumber,
					FormNumber:    s.FormNumber,
					FieldPath:     s.FieldPath,
					IsActive:      true,
					RestrictToOwn: s.RestrictToOwn,
					CreatedBy:     "seed",
					CreatedAt:     now,
				})
			}
		}
	}
	return out
}

// Seed loads directory members, the default template and its grants, then
// prints a development token per member.
func Seed(
	lc fx.Lifecycle,
	cfg *config.Config,
	members directory.MemberRepository,
	grants permission.GrantRepository,
	migrations legacy.MigrationService,
	templates template.TemplateRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				exitCode := 0
				defer func() {
					if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()

				for _, repo := range []interface {
					EnsureIndexes(context.Context) error
				}{members, grants, templates} {
					if err := repo.EnsureIndexes(ctx); err != nil {
						logger.Error("Failed to ensure indexes", zap.Error(err))
						exitCode = 1
						return
					}
				}

				logger.Info("Seeding database", zap.String("db", cfg.DBName))

				// 1. Directory members
				var memberData []directory.Member
				if err := readJSON("cmd/seed/data/members.json", &memberData); err != nil {
					logger.Error("Failed to read members.json", zap.Error(err))
					exitCode = 1
					return
				}
				for i := range memberData {
					m := &memberData[i]
					m.IsActive = true
					m.UpdatedAt = time.Now()
					if err := members.Upsert(ctx, m); err != nil {
						logger.Error("Failed to upsert member", zap.String("user_id", m.UserID), zap.Error(err))
						exitCode = 1
						return
					}
				}
				logger.Info("Members synced", zap.Int("count", len(memberData)))

				// 2. Default template
				tpl, created, err := migrations.EnsureTemplate(ctx)
				if err != nil {
					logger.Error("Failed to ensure default template", zap.Error(err))
					exitCode = 1
					return
				}
				logger.Info("Default template ready", zap.String("template", tpl.Code), zap.Bool("created", created))
				if cfg.DefaultTemplateCode != tpl.Code {
					logger.Warn("DEFAULT_TEMPLATE_CODE does not match the seeded template",
						zap.String("configured", cfg.DefaultTemplateCode),
						zap.String("seeded", tpl.Code))
				}

				// 3. Grants
				var seeds []grantSeed
				if err := readJSON("cmd/seed/data/grants.json", &seeds); err != nil {
					logger.Error("Failed to read grants.json", zap.Error(err))
					exitCode = 1
					return
				}
				states := make([]string, 0, len(tpl.States))
				for _, st := range tpl.States {
					states = append(states, st.Code)
				}

				existing, err := grants.List(ctx, permission.GrantFilter{})
				if err != nil {
					logger.Error("Failed to list grants", zap.Error(err))
					exitCode = 1
					return
				}
				seen := make(map[string]bool, len(existing))
				for _, g := range existing {
					seen[grantKey(g)] = true
				}

				createdGrants := 0
				for _, g := range expandGrants(seeds, states, time.Now()) {
					if seen[grantKey(g)] {
						continue
					}
					if err := g.Validate(); err != nil {
						logger.Warn("Skipping invalid grant", zap.String("role", g.RoleCode), zap.Error(err))
						continue
					}
					if err := grants.Create(ctx, &g); err != nil {
						logger.Error("Failed to create grant", zap.String("role", g.RoleCode), zap.String("state", g.State), zap.Error(err))
						continue
					}
					seen[grantKey(g)] = true
					createdGrants++
				}
				logger.Info("Grants synced", zap.Int("created", createdGrants))

				// 4. Development tokens
				utils.SetSecret(cfg.JWTSecret)
				for _, m := range memberData {
					token, err := utils.GenerateToken(m.UserID, m.Username, m.Roles, tokenTTL)
					if err != nil {
						logger.Error("Failed to mint token", zap.String("user_id", m.UserID), zap.Error(err))
						continue
					}
					fmt.Printf("%-20s %s\n", m.Username, token)
				}

				logger.Info("Seeding complete")
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			directory.NewMemberRepository,
			permission.NewGrantRepository,
			template.NewTemplateRepository,
			approval.NewApprovalRepository,
			workflow.NewCaseRepository,
			fx.Annotate(
				workflow.NewCaseRepository,
				fx.As(new(template.UsageCounter)),
			),
			template.NewTemplateService,
			legacy.NewMigrationService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
