package router

import (
	"net/http"

	healthsvc "cleanup-backend/internal/application/health"
	"cleanup-backend/internal/application/holds"
	"cleanup-backend/internal/application/notifications"
	"cleanup-backend/internal/application/payoutaccounts"
	"cleanup-backend/internal/application/reconciliation"
	"cleanup-backend/internal/application/recovery"
	"cleanup-backend/internal/application/requests"
	"cleanup-backend/internal/application/settlement"
	"cleanup-backend/internal/config"
	"cleanup-backend/internal/infrastructure/database"
	healthhandler "cleanup-backend/internal/interfaces/handlers/health"
	payhandler "cleanup-backend/internal/interfaces/handlers/payments"
	payouthandler "cleanup-backend/internal/interfaces/handlers/payouts"
	"cleanup-backend/internal/middleware"
	"cleanup-backend/internal/payments"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived clients the app is built on.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Rdb       *redis.Client
	Processor payments.Processor
}

// CreateApp opens the database, Redis and the Stripe client from cfg and builds the app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, *recovery.Worker, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		rdb = redis.NewClient(opts)
	}

	stripeProc, err := payments.NewStripeProcessor(payments.StripeConfig{SecretKey: cfg.StripeSecretKey})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	proc := payments.NewRetryingProcessor(stripeProc, payments.RetryPolicy{
		Attempts: cfg.ProcessorMaxAttempts,
		Timeout:  cfg.ProcessorTimeout,
		Backoff:  cfg.ProcessorRetryBackoff,
	})

	app, worker := New(Deps{Config: cfg, DB: db, Rdb: rdb, Processor: proc})
	return app, db, rdb, worker, nil
}

// New wires services, handlers and routes. The returned worker is not started.
func New(deps Deps) (*fiber.App, *recovery.Worker) {
	cfg, db, rdb := deps.Config, deps.DB, deps.Rdb

	reqs := &requests.Service{DB: db}
	queue := &recovery.Queue{DB: db}
	capturer := &holds.Capturer{DB: db, Processor: deps.Processor, Recovery: queue}
	holdSvc := &holds.Service{
		DB:        db,
		Processor: deps.Processor,
		Requests:  reqs,
		LedgerFor: func(tx *gorm.DB) holds.ContributionLedger { return reqs.WithTx(tx) },
		Currency:  cfg.Currency,
	}
	accounts := &payoutaccounts.Service{
		DB:         db,
		Processor:  deps.Processor,
		RefreshURL: cfg.OnboardingRefreshURL,
		ReturnURL:  cfg.OnboardingReturnURL,
	}
	settleSvc := &settlement.Service{
		DB:        db,
		Processor: deps.Processor,
		Capturer:  capturer,
		Accounts:  accounts,
		Requests:  reqs,
		Currency:  cfg.Currency,
	}

	var notifier notifications.Notifier = notifications.LogNotifier{}
	var events reconciliation.EventLog
	if rdb != nil {
		notifier = &notifications.RedisNotifier{Rdb: rdb}
		events = &reconciliation.RedisEventLog{Rdb: rdb, TTL: cfg.WebhookEventTTL}
	}
	recon := &reconciliation.Handler{
		DB:        db,
		Capturer:  capturer,
		Accounts:  accounts,
		LedgerFor: func(tx *gorm.DB) reconciliation.ContributionLedger { return reqs.WithTx(tx) },
		Notifier:  notifier,
		Recovery:  queue,
		Events:    events,
	}

	worker := &recovery.Worker{
		DB: db,
		Handlers: map[string]recovery.Handler{
			recovery.KindConvergeHoldCaptured: capturer.Converge,
			recovery.KindCompensateDonation:   recon.Compensate,
		},
		Interval:    cfg.RecoveryPollInterval,
		MaxAttempts: cfg.RecoveryMaxAttempts,
		Backoff:     cfg.RecoveryBackoff,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.FrontendOrigins,
		AllowLocalhost: !cfg.IsProduction(),
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))

	// Signed by the processor, not the browser: registered ahead of the session.
	wh := &payhandler.WebhookHandler{Reconciler: recon, WebhookSecret: cfg.StripeWebhookSecret}
	app.Post("/payments/webhooks", wh.HandleWebhook)

	hh := &healthhandler.Handlers{
		Collector:      &healthsvc.Collector{Rdb: rdb, DB: healthsvc.GormPinger{DB: db}, Tasks: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/reset", hh.Reset)

	app.Use(middleware.Session(rdb))

	ph := &payhandler.Handlers{Holds: holdSvc, Settlement: settleSvc}
	pg := app.Group("/payments", middleware.RequireAuth())
	pg.Post("/holds", ph.CreateHold)
	pg.Post("/settle", ph.Settle)
	pg.Get("/history", ph.History)

	poh := &payouthandler.Handlers{Accounts: accounts, Settlement: settleSvc}
	pog := app.Group("/payouts", middleware.RequireAuth())
	pog.Get("/history", poh.History)
	pog.Post("/accounts/onboard", poh.Onboard)
	pog.Get("/accounts/me", poh.Me)

	return app, worker
}

// Handler exposes app as a net/http handler for hosts that serve plain http.Handler.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
