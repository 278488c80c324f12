package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	auth "github.com/messfeedback/go-auth"
	"github.com/messfeedback/go-auth/audit"
	"github.com/messfeedback/go-auth/config"
	"github.com/messfeedback/go-auth/middleware/ratelimit"
	"github.com/messfeedback/go-auth/repository"
)

func main() {
	configPath := flag.String("config", os.Getenv("AUTH_CONFIG"), "path to a TOML config file")
	envFile := flag.String("env", ".env", "path to a dotenv file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("auth server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.Open(cfg.DSN)
	if err != nil {
		return err
	}

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	repo := repository.NewRepositoryManager(db)
	repo.MustValidate()
	defer repo.Close()

	authLogger := auth.NewSlogLogger(logger)

	if err := bootstrapAdmin(ctx, cfg, repo, authLogger); err != nil {
		return err
	}

	events := audit.NewAsyncSink(repo.SecurityEvents(),
		audit.WithQueueSize(cfg.AuditQueueSize),
		audit.WithLogger(authLogger.With("component", "audit")),
	)
	sink := auth.ActivitySinks(events, audit.NewLoggerSink(authLogger.With("component", "security")))

	auther := auth.NewAuthenticator(repo.Accounts(), cfg).
		WithLogger(authLogger).
		WithActivitySink(sink)

	httpAuth, err := auth.NewHTTPAuthenticator(auther, cfg)
	if err != nil {
		return err
	}
	httpAuth.Logger = authLogger.With("component", "http")

	limiter := ratelimit.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst)
	go limiter.StartCleanupWorker(ctx, time.Minute, 10*time.Minute)

	app := fiber.New(fiber.Config{
		AppName:      "mess-feedback-auth",
		ErrorHandler: httpAuth.HandleError,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return httpAuth.HandleError(c, auth.ErrStoreUnavailable)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}).Name("healthz")

	auth.RegisterAuthRoutes(app.Group("/api"),
		auth.WithAuthControllerAuther(httpAuth),
		auth.WithAuthControllerLogger(authLogger.With("component", "controller")),
		auth.WithLoginLimiter(ratelimit.New(ratelimit.Config{
			Limiter:      limiter,
			LimitReached: httpAuth.LimitReached(sink),
		})),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("auth server listening", "addr", cfg.ListenAddr)
		errCh <- app.Listen(cfg.ListenAddr)
	}()

	select {
	case sig := <-waitExitSignal():
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	if err := events.Close(shutdownCtx); err != nil {
		logger.Error("audit sink drain", "error", err, "dropped", events.Dropped())
	}

	return nil
}

func bootstrapAdmin(ctx context.Context, cfg *config.Config, repo *repository.Manager, logger auth.Logger) error {
	if cfg.BootstrapAdmin == "" {
		return nil
	}

	if _, err := repo.Accounts().FindAccount(ctx, cfg.BootstrapAdmin, auth.RoleAdmin); err == nil {
		return nil
	} else if !auth.IsAccountNotFound(err) {
		return err
	}

	hash, err := auth.HashPassword(cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}

	account, err := repo.Accounts().Create(ctx, &auth.Account{
		Identifier:   cfg.BootstrapAdmin,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		return err
	}

	logger.Info("bootstrap admin created", "identifier", account.Identifier, "id", account.ID)
	return nil
}

func waitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
