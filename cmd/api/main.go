package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	app "github.com/gappsops/message-recall/internal/application/recall"
	"github.com/gappsops/message-recall/internal/bootstrap"
	"github.com/gappsops/message-recall/internal/config"
	"github.com/gappsops/message-recall/internal/infrastructure/cache"
	"github.com/gappsops/message-recall/internal/infrastructure/directory"
	"github.com/gappsops/message-recall/internal/infrastructure/mailbox"
	"github.com/gappsops/message-recall/internal/infrastructure/repository"
	"github.com/gappsops/message-recall/internal/metrics"
)

const (
	directoryScope = "https://www.googleapis.com/auth/admin.directory.user.readonly"
	mailScope      = "https://mail.google.com/"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	metrics.Register()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect database")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create pgx pool")
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	directoryJWT, mailJWT := loadDelegatedCredentials(cfg)
	dirClient := directory.NewClient(cfg.DirectoryEndpoint, directoryJWT.TokenSource(context.Background()))

	tokens := mailbox.NewOAuthTokenProvider(func(userEmail string) oauth2.TokenSource {
		delegated := *mailJWT
		delegated.Subject = userEmail
		return delegated.TokenSource(context.Background())
	})
	dialer := mailbox.NewDialer(cfg.IMAPAddr, tokens)

	auth := app.NewAuthorizer(cfg.AppsDomain, dirClient, cache.NewAdminCache(rdb))

	server, err := bootstrap.NewHTTPServer(cfg, db, auth)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build http server")
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	worker := app.NewWorker(
		repository.NewTaskRepository(db),
		repository.NewTaskUserRepository(db),
		repository.NewTaskUserBulkRepository(pool),
		repository.NewErrorReasonRepository(db),
		repository.NewCounterRepository(db),
		dirClient,
		dialer,
		app.WorkerConfig{
			Workers:           cfg.Workers,
			RetrievalWorkers:  cfg.RetrievalWorkers,
			RecallConcurrency: cfg.RecallConcurrency,
			PollInterval:      cfg.PollInterval,
			LeaseDuration:     cfg.LeaseDuration,
			HeartbeatInterval: cfg.HeartbeatInterval,
		},
	)
	worker.Start(workerCtx)

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("graceful shutdown failed")
	}
}

// loadDelegatedCredentials reads the service-account key and prepares two
// JWT configs: one impersonating the directory admin, one re-targeted per
// mailbox user by the token provider.
func loadDelegatedCredentials(cfg config.Config) (*jwt.Config, *jwt.Config) {
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read service account credentials")
	}

	directoryJWT, err := google.JWTConfigFromJSON(raw, directoryScope)
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse service account credentials")
	}
	directoryJWT.Subject = cfg.DirectorySubject

	mailJWT, err := google.JWTConfigFromJSON(raw, mailScope)
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse service account credentials")
	}
	return directoryJWT, mailJWT
}
