package main

import (
	"context"
	"fmt"
	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/config"
	"go-workflow/internal/database"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/audit"
	"go-workflow/internal/features/directory"
	"go-workflow/internal/features/events"
	"go-workflow/internal/features/legacy"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/scheduler"
	"go-workflow/internal/features/system"
	"go-workflow/internal/features/template"
	"go-workflow/internal/features/workflow"
	"go-workflow/internal/logger"
	"go-workflow/internal/metrics"
	"go-workflow/internal/middleware"
	"go-workflow/pkg/condition"
	"go-workflow/pkg/utils"
	"log"
	"time"

	_ "go-workflow/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())
	app.Use(middleware.RequestIDMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, log *zap.Logger) {
	log.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		log.Debug("Setting up route", zap.String("api", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// ConfigureJWT makes token validation use the configured secret.
func ConfigureJWT(cfg *config.Config) {
	utils.SetSecret(cfg.JWTSecret)
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

type indexParams struct {
	fx.In

	Templates template.TemplateRepository
	Ledger    approval.ApprovalRepository
	Audit     audit.AuditRepository
	Members   directory.MemberRepository
	Grants    permission.GrantRepository
	Overrides permission.OverrideRepository
	Cases     workflow.CaseRepository
	Log       *zap.Logger
}

// InitializeIndexes creates the unique and lookup indexes every collection
// relies on. The ledger's uniqueness index must exist before any approval
// is accepted, so this runs synchronously.
func InitializeIndexes(lc fx.Lifecycle, p indexParams) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			repos := map[string]indexer{
				"templates": p.Templates,
				"approvals": p.Ledger,
				"audit":     p.Audit,
				"members":   p.Members,
				"grants":    p.Grants,
				"overrides": p.Overrides,
				"cases":     p.Cases,
			}
			for name, repo := range repos {
				if err := repo.EnsureIndexes(ctx); err != nil {
					p.Log.Error("Failed to ensure indexes", zap.String("collection", name), zap.Error(err))
					return err
				}
			}
			return nil
		},
	})
}

// @title           Workflow Engine API
// @version         1.0
// @description     Template-driven case workflows with an append-only approval ledger.

// @contact.name    API Support
// @contact.email   support@example.com

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,
			database.NewTransactor,

			metrics.NewRecorder,
			events.NewHub,
			condition.NewRegistry,
			template.NewEvaluator,

			// Initialize Repository
			template.NewTemplateRepository,
			approval.NewApprovalRepository,
			audit.NewAuditRepository,
			directory.NewMemberRepository,
			permission.NewGrantRepository,
			permission.NewOverrideRepository,
			workflow.NewCaseRepository,

			directory.NewDirectory,
			permission.NewSnapshotCache,

			template.NewTemplateService,
			approval.NewApprovalService,
			audit.NewAuditService,
			directory.NewDirectoryService,
			permission.NewPermissionService,
			workflow.NewEngine,
			legacy.NewMigrationService,
			scheduler.NewJobs,
			scheduler.NewSchedulerService,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(r workflow.CaseRepository) template.UsageCounter { return r },
			func(r workflow.CaseRepository) permission.CaseLookup { return r },
			func(s directory.DirectoryService) middleware.ActorResolver { return s },
			func(s directory.DirectoryService) audit.NameResolver { return s },
			func(e workflow.Engine) approval.CaseViewGuard { return e },
			func(e workflow.Engine) events.ViewGuard { return e },
			func(db *database.MongodbDB) system.Pinger { return db },

			// Initialize Controller
			template.NewTemplateController,
			approval.NewApprovalController,
			audit.NewAuditController,
			directory.NewDirectoryController,
			permission.NewPermissionController,
			events.NewEventsController,
			workflow.NewCaseController,
			legacy.NewMigrationController,
			scheduler.NewSchedulerController,
			system.NewHealthController,

			// Initialize API Routes
			AsRoute(template.NewTemplateApi),
			AsRoute(approval.NewApprovalApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(directory.NewDirectoryApi),
			AsRoute(permission.NewPermissionApi),
			AsRoute(events.NewEventsApi),
			AsRoute(workflow.NewCaseApi),
			AsRoute(legacy.NewLegacyApi),
			AsRoute(scheduler.NewSchedulerApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewMetricsApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			ConfigureJWT,
			InitializeIndexes,
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			scheduler.RegisterLifecycle,
		),
	)

	app.Run()
}
