package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hospital-billing/audit"
	"hospital-billing/config"
	"hospital-billing/controllers"
	"hospital-billing/database"
	"hospital-billing/logger"
	"hospital-billing/middlewares"
	"hospital-billing/routes"
	"hospital-billing/services"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// newApp builds the fiber app over an open, migrated store.
func newApp(cfg config.Config, log *zap.Logger, db *gorm.DB, sink audit.Sink) *fiber.App {
	deps := services.Deps{
		Store:   services.NewStore(db),
		Catalog: services.NewDBCatalog(db),
		Audit:   sink,
		Log:     log,
		TaxRate: cfg.TaxRate,
	}

	onError := middlewares.ErrorHandler(log)
	app := fiber.New(fiber.Config{
		ErrorHandler: onError,
		BodyLimit:    cfg.BodyLimitBytes,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middlewares.RequestLogger(log.Named("http"), onError))

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter (tune via env)
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: time.Duration(cfg.RateLimitWindow) * time.Second,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, try again later")
		},
	}))

	routes.Register(app, routes.Handlers{
		Patients: &controllers.PatientController{Patients: services.NewPatientService(deps)},
		Invoices: &controllers.InvoiceController{Invoices: services.NewInvoiceService(deps)},
		Pharmacy: &controllers.PharmacyController{Pharmacy: services.NewPharmacyService(deps)},
		Encounters: &controllers.EncounterController{
			Lab:           services.NewLabService(deps),
			Consultations: services.NewConsultationService(deps),
			Admissions:    services.NewAdmissionService(deps),
		},
		Accounts: &controllers.AccountController{Cash: services.NewCashService(deps)},
	},
		middlewares.RequireActor([]byte(cfg.JWTSecret)),
		middlewares.Idempotency(db, log.Named("idempotency")),
	)
	return app
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "hospital-billing")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// ---- Database
	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	// ---- Audit sinks
	sinks := audit.Multi{audit.NewLogSink(log)}
	var redisSink *audit.RedisStreamSink
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		redisSink = audit.NewRedisStreamSink(client, cfg.AuditStream, log)
		sinks = append(sinks, redisSink)
		log.Info("audit stream enabled", zap.String("addr", cfg.RedisAddr), zap.String("stream", cfg.AuditStream))
	}

	app := newApp(cfg, log, db, sinks)

	// ---- Start
	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DBDriver))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	if redisSink != nil {
		redisSink.Flush()
	}
	if err := database.Close(db); err != nil {
		log.Warn("store close failed", zap.Error(err))
	}
}
