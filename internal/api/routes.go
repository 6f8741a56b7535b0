// Package api assembles the HTTP surface: middleware stack, handlers and
// routes.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/mediassist/backend/internal/account"
	"github.com/mediassist/backend/internal/api/handlers"
	"github.com/mediassist/backend/internal/auth"
	"github.com/mediassist/backend/internal/catalog"
	"github.com/mediassist/backend/internal/inference"
	"github.com/mediassist/backend/internal/metrics"
	"github.com/mediassist/backend/internal/middleware/ratelimit"
	"github.com/mediassist/backend/internal/middleware/security"
	"github.com/mediassist/backend/internal/middleware/validation"
	"github.com/mediassist/backend/internal/report"
	"github.com/mediassist/backend/pkg/config"
	"github.com/mediassist/backend/pkg/logger"
)

type Dependencies struct {
	Catalog    *catalog.Catalog
	Predictor  inference.Predictor
	Reports    *report.Service
	Accounts   *account.Service
	Tokens     *auth.TokenIssuer
	Limiter    *ratelimit.RateLimiter
	ScoreScale inference.Scale // reads modelOutput sent to /api/report/save
	Ready      map[string]handlers.Pinger
}

func NewApp(cfg *config.Config, deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "MediAssist Backend",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: joinOrigins(cfg.Security.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		IsDevelopment:  cfg.IsDevelopment(),
	}))
	app.Use(validation.Middleware(validation.Config{
		MaxSymptoms: deps.Catalog.Size(),
		Logger:      logger.GetLogger(),
	}))

	RegisterRoutes(app, deps)
	return app
}

func RegisterRoutes(app *fiber.App, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.Ready)
	catalogHandler := handlers.NewCatalogHandler(deps.Catalog)
	predictionHandler := handlers.NewPredictionHandler(deps.Predictor)
	reportHandler := handlers.NewReportHandler(deps.Reports, deps.ScoreScale)
	accountHandler := handlers.NewAccountHandler(deps.Accounts, deps.Tokens)
	wsHandler := handlers.NewWebSocketHandler(deps.Predictor, deps.Limiter)

	limited := deps.Limiter.Middleware()
	requireAuth := auth.Middleware(deps.Tokens)

	app.Get("/", healthHandler.Root)
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	api.Get("/symptoms", catalogHandler.ListSymptoms)
	api.Post("/predict", limited, predictionHandler.Predict)

	api.Post("/register", accountHandler.Register)
	api.Post("/login", limited, accountHandler.Login)

	reports := api.Group("/report", requireAuth)
	reports.Post("/save", reportHandler.Save)
	reports.Post("/predict", limited, reportHandler.PredictAndSave)
	reports.Get("/item/:reportId", reportHandler.Get)
	reports.Get("/:userId", reportHandler.ListByUser)
	reports.Patch("/:reportId/status", reportHandler.UpdateStatus)
	reports.Delete("/:reportId", reportHandler.Delete)

	api.Delete("/:username", requireAuth, accountHandler.Delete)

	ws := app.Group("/ws", limited, wsHandler.Upgrade)
	ws.Get("/predict", websocket.New(wsHandler.HandleConnection))
}

func joinOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
