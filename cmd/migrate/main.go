package main

import (
	"context"
	"flag"
	"time"

	"go-workflow/internal/config"
	"go-workflow/internal/database"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/legacy"
	"go-workflow/internal/features/template"
	"go-workflow/internal/features/workflow"
	"go-workflow/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type options struct {
	DryRun bool
}

// Migrate binds legacy cases to the property-acquisition template.
func Migrate(
	lc fx.Lifecycle,
	opts options,
	templateRepo template.TemplateRepository,
	ledger approval.ApprovalRepository,
	cases workflow.CaseRepository,
	service legacy.MigrationService,
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

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				defer cancel()

				if !opts.DryRun {
					for _, repo := range []interface {
						EnsureIndexes(context.Context) error
					}{templateRepo, ledger, cases} {
						if err := repo.EnsureIndexes(ctx); err != nil {
							logger.Error("Failed to ensure indexes", zap.Error(err))
							exitCode = 1
							return
						}
					}
				}

				report, err := service.Migrate(ctx, opts.DryRun)
				if err != nil {
					logger.Error("Migration failed", zap.Error(err))
					exitCode = 1
					return
				}

				logger.Info("Migration finished",
					zap.Bool("dry_run", report.DryRun),
					zap.String("template", report.TemplateCode),
					zap.Bool("template_created", report.TemplateCreated),
					zap.Int("bound", report.Bound),
					zap.Int("skipped", report.Skipped),
					zap.Any("unknown_states", report.UnknownStates),
				)
			}()
			return nil
		},
	})
}

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would be migrated without writing")
	flag.Parse()

	app := fx.New(
		fx.Supply(options{DryRun: *dryRun}),
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
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
		fx.Invoke(Migrate),
	)

	app.Run()
}
