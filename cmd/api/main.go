package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/vulngate/internal/application"
	appai "github.com/bryanwahyu/vulngate/internal/application/ai"
	appscans "github.com/bryanwahyu/vulngate/internal/application/scans"
	"github.com/bryanwahyu/vulngate/internal/config"
	"github.com/bryanwahyu/vulngate/internal/domain/advice"
	"github.com/bryanwahyu/vulngate/internal/domain/ai"
	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scanerrors"
	"github.com/bryanwahyu/vulngate/internal/infra/ai/openai"
	"github.com/bryanwahyu/vulngate/internal/infra/ai/prompt"
	mysqlp "github.com/bryanwahyu/vulngate/internal/infra/db/mysql"
	"github.com/bryanwahyu/vulngate/internal/infra/db/postgres"
	dockerrunner "github.com/bryanwahyu/vulngate/internal/infra/executor/docker"
	"github.com/bryanwahyu/vulngate/internal/infra/httpserver"
	"github.com/bryanwahyu/vulngate/internal/infra/report"
	minioStore "github.com/bryanwahyu/vulngate/internal/infra/storage"
	"github.com/bryanwahyu/vulngate/internal/logging"
	"github.com/bryanwahyu/vulngate/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}
	log, err := logging.New(cfg.Server.LogLevel, logging.JSON, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("invalid server.logLevel")
	}

	ctx := context.Background()
	health := map[string]middleware.HealthChecker{}

	runner := dockerrunner.NewRunner(dockerrunner.Mode(cfg.Gate.Mode))
	ready := map[string]middleware.HealthChecker{
		"scanners": &middleware.ScannerChecker{Runner: runner, Scanners: cfg.Scanners()},
	}
	svc := &appscans.Service{
		Runner:      runner,
		Inspector:   dockerrunner.NewInspector(),
		Writer:      report.NewWriter(cfg.Gate.OutputDir),
		Clock:       application.SystemClock{},
		Log:         log,
		Concurrency: cfg.Gate.Concurrency,
	}

	// database opsional; tanpa host, evaluasi tidak disimpan
	var adviceRepo advice.Repository
	if cfg.DatabaseEnabled() {
		db, repos, err := openDatabase(ctx, cfg)
		if err != nil {
			log.WithError(err).WithField("driver", cfg.Database.Driver).Fatal("database connect error")
		}
		defer db.Close()
		svc.Repo, svc.Failures, adviceRepo = repos.evals, repos.failures, repos.advice
		health["database"] = &middleware.DatabaseHealthChecker{DB: db}
	} else {
		log.Warn("database.host not set, evaluation history disabled")
	}

	if cfg.ArchiveEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.WithError(err).Fatal("minio init error")
		}
		svc.Artifacts = store
		health["storage"] = middleware.CheckFunc(store.Ping)
	}

	var advisor ai.Client = prompt.Offline{}
	if cfg.OpenAI.APIKey != "" {
		advisor = openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}
	var aiSvc *appai.Service
	if svc.Repo != nil {
		aiSvc = appai.NewService(advisor, svc.Repo, adviceRepo, application.SystemClock{})
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	stopCleanup := make(chan struct{})
	go limiter.Run(5*time.Minute, 10*time.Minute, stopCleanup)

	router := httpserver.NewRouter(svc, aiSvc, httpserver.Options{
		APIKeys:          cfg.Auth.APIKeys,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		RateLimiter:      limiter,
		Health:           health,
		Ready:            ready,
		Log:              log,
		DefaultScanners:  cfg.Scanners(),
		DefaultPolicy:    cfg.Policy(),
		ProceedIfMissing: cfg.Gate.ProceedIfMissing,
	})
	if len(cfg.Auth.APIKeys) == 0 {
		log.Warn("auth.apiKeys empty, API is unauthenticated")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")
	close(stopCleanup)

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	log.Info("waiting for background scans")
	router.Wait()
}

type repositories struct {
	evals    gate.Repository
	failures scanerrors.Repository
	advice   advice.Repository
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, repositories, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, repositories{}, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			evals:    postgres.NewEvaluationRepository(db),
			failures: postgres.NewScanErrorRepository(db),
			advice:   postgres.NewAdviceRepository(db),
		}, nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, repositories{}, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			evals:    mysqlp.NewEvaluationRepository(db),
			failures: mysqlp.NewScanErrorRepository(db),
			advice:   mysqlp.NewAdviceRepository(db),
		}, nil
	}
}
