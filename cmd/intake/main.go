package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ifl-de/intake-api/internal/api"
	"github.com/ifl-de/intake-api/internal/api/handler"
	"github.com/ifl-de/intake-api/internal/core/ports"
	"github.com/ifl-de/intake-api/internal/core/service"
	mongostore "github.com/ifl-de/intake-api/internal/infrastructure/db/mongo"
	redisstore "github.com/ifl-de/intake-api/internal/infrastructure/db/redis"
	"github.com/ifl-de/intake-api/internal/infrastructure/notify"
	"github.com/ifl-de/intake-api/internal/infrastructure/queue"
	"github.com/ifl-de/intake-api/internal/infrastructure/storage/blobstore"
	"github.com/ifl-de/intake-api/internal/pkg/config"
	"github.com/ifl-de/intake-api/pkg/logger"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, nil)
	if err != nil {
		boot := logger.Init(logger.Options{Service: "intake-api"})
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "intake-api",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	if err := mongostore.RequireTransactions(ctx, mongoClient); err != nil {
		return err
	}

	actors := mongostore.NewActorRepository(db)
	documents := mongostore.NewDocumentRepository(mongoClient, db)
	if err := actors.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := documents.EnsureIndexes(ctx); err != nil {
		return err
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	blobs, err := blobstore.New(ctx, blobstore.Config{
		Endpoint:     cfg.S3.Endpoint,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
		Bucket:       cfg.S3.Bucket,
		Region:       cfg.S3.Region,
		CreateBucket: cfg.S3.CreateBucket,
	})
	if err != nil {
		return err
	}

	// --- Background reaper ---
	reaper := queue.NewReaper(cfg.Reaper.Workers, cfg.Reaper.Grace, documents, blobs, logger.Component("reaper"))
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer func() {
		stopWorkers()
		reaper.Wait()
	}()
	reaper.Start(workerCtx)
	go reaper.RunSweeper(workerCtx, cfg.Reaper.SweepInterval)

	// --- Services ---
	tokens, err := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	throttle := redisstore.NewLoginThrottle(rdb, cfg.Auth.MaxAttempts, cfg.Auth.Lockout)
	authService := service.NewAuthService(actors, tokens, throttle, logger.Component("auth"))

	if cfg.Auth.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return err
		}
	}

	submissions := service.NewSubmissionService(documents, blobs, actors, reaper, newNotifier(cfg, log), service.SubmissionConfig{
		Policy: service.FilePolicy{
			MaxFileSize:  cfg.Upload.FileSizeLimit,
			MaxFiles:     cfg.Upload.MaxFiles,
			AllowedTypes: cfg.Upload.AllowedMimeTypes,
		},
		BlobConcurrency: cfg.Upload.Concurrency,
	}, logger.Component("submissions"))
	profiles := service.NewProfileService(actors, logger.Component("profiles"))

	// --- HTTP ---
	e := api.NewRouter(
		api.Services{Auth: authService, Submissions: submissions, Profiles: profiles},
		api.Options{
			AllowedOrigins:  cfg.AllowedOrigins,
			Cookie:          handler.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure},
			MaxRequestBytes: cfg.MaxRequestBytes(),
			MaxFileSize:     cfg.Upload.FileSizeLimit,
			AuthRateLimit:   cfg.Auth.RateLimit,
			Readiness: map[string]handler.PingFunc{
				"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
				"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
				"minio":   blobs.Ping,
			},
		},
		logger.Component("http"),
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	submissions.Wait()
	log.Info().Msg("shutdown complete")
	return nil
}

// newNotifier sends review mail when SMTP is configured and only logs
// decisions otherwise.
func newNotifier(cfg *config.Config, log zerolog.Logger) ports.ReviewNotifier {
	if cfg.SMTP.Host == "" {
		log.Warn().Msg("SMTP_HOST not set, review notifications are logged only")
		return notify.NewLogNotifier(logger.Component("notify"))
	}
	return notify.NewMailNotifier(notify.SMTPConfig{
		Host:          cfg.SMTP.Host,
		Port:          cfg.SMTP.Port,
		Username:      cfg.SMTP.User,
		Password:      cfg.SMTP.Pass,
		From:          cfg.SMTP.From,
		SkipTLSVerify: cfg.SMTP.SkipTLSVerify,
	}, logger.Component("notify"))
}
