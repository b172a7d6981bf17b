package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hourly-quiz-service/internal/app"
	"hourly-quiz-service/internal/config"
	"hourly-quiz-service/internal/epoch"
	"hourly-quiz-service/internal/infra/memory"
	pgstore "hourly-quiz-service/internal/infra/postgres"
	redisstore "hourly-quiz-service/internal/infra/redis"
	"hourly-quiz-service/internal/logging"
	"hourly-quiz-service/internal/metrics"
	transport "hourly-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if *port != "" {
				cfg.Server.Port = *port
			}
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

// loadConfig reads the config file, falling back to defaults when it does not
// exist, and builds the logger it describes.
func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	missing := errors.Is(err, os.ErrNotExist)
	if missing {
		cfg = config.Default()
	} else if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return cfg, nil, err
	}
	if missing {
		logger.Warn("config file not found, using defaults", zap.String("path", path))
	}
	return cfg, logger, nil
}

// backends holds the storage chosen from config. Postgres wins over Redis for
// sessions; Redis, when configured, always caches the question catalog.
type backends struct {
	sessions  app.SessionStore
	questions app.QuestionBank
	closers   []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, err
		}
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			b.close()
			return nil, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if err := seedQuestions(ctx, cfg, pool, logger); err != nil {
			b.close()
			return nil, err
		}
	}

	var loader memory.QuestionLoader
	if pool != nil {
		loader = pgstore.NewQuestionLoader(pool)
	} else {
		questions, err := catalogQuestions(cfg)
		if err != nil {
			b.close()
			return nil, err
		}
		loader = memory.NewStaticQuestionLoader(questions)
	}

	if redisClient != nil {
		b.questions = redisstore.NewQuestionBank(redisClient, loader, cfg.QuestionTTL())
	} else {
		b.questions = memory.NewQuestionBank(loader, cfg.QuestionTTL())
	}

	switch {
	case pool != nil:
		b.sessions = pgstore.NewSessionStore(pool)
		logger.Info("using postgres session store")
	case redisClient != nil:
		b.sessions = redisstore.NewSessionStore(redisClient)
		logger.Info("using redis session store")
	default:
		b.sessions = memory.NewSessionStore()
		logger.Warn("using in-memory session store; sessions are lost on restart")
	}
	return b, nil
}

func runServer(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(registry)

	service := app.NewQuizService(b.sessions, b.questions,
		app.WithClock(epoch.NewClock(cfg.EpochWindow())),
		app.WithAssignmentSize(cfg.Quiz.AssignmentSize),
		app.WithLeaderboardSize(cfg.Leaderboard.Size),
		app.WithRecorder(collector),
		app.WithLogger(logger),
	)

	router := transport.NewRouter(service, logger, func(r chi.Router) {
		r.Handle("/metrics", collector.Handler())
	}, collector.Middleware)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service",
			zap.String("addr", server.Addr),
			zap.Int("assignment_size", cfg.Quiz.AssignmentSize),
			zap.Duration("epoch_window", cfg.EpochWindow()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-serveErr:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
