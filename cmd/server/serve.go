package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hirevoice/interview/internal/aggregator"
	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/evaluation"
	"hirevoice/interview/internal/events"
	"hirevoice/interview/internal/handlers"
	"hirevoice/interview/internal/interviews"
	"hirevoice/interview/internal/jobs"
	"hirevoice/interview/internal/llm"
	_ "hirevoice/interview/internal/llm/gemini"
	"hirevoice/interview/internal/metrics"
	"hirevoice/interview/internal/middleware"
	"hirevoice/interview/internal/pipeline"
	"hirevoice/interview/internal/prompts"
	"hirevoice/interview/internal/repositories"
	"hirevoice/interview/internal/routers"
	"hirevoice/interview/internal/session"
	"hirevoice/interview/internal/speech/deepgram"
	"hirevoice/interview/internal/speech/elevenlabs"
	"hirevoice/interview/internal/storage"
	"hirevoice/interview/internal/storage/azure"
	"hirevoice/interview/internal/storage/local"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, answer pipeline and sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// service holds everything serve starts and must stop again.
type service struct {
	router   *chi.Mux
	pipeline *pipeline.Pipeline
	sweeper  *jobs.StaleSweeperJob
	redis    *redis.Client
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger)

	svc, err := buildService(ctx, cfg, db, logger)
	if err != nil {
		return err
	}

	svc.pipeline.Start()
	if err := svc.sweeper.Start(); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      svc.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Interview service starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	logger.Info("Interview service shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	svc.sweeper.Stop()
	if err := svc.pipeline.Stop(shutdownCtx); err != nil {
		logger.Warn("Answer pipeline did not drain", zap.Error(err))
	}
	if svc.redis != nil {
		_ = svc.redis.Close()
	}

	logger.Info("Interview service exited")
	return nil
}

// buildService wires every component from configuration.
func buildService(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*service, error) {
	promptManager, err := prompts.NewPromptManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
	}
	evaluator := evaluation.NewEvaluator(provider, promptManager, logger)

	httpClient := &http.Client{Timeout: cfg.Pipeline.TranscribeTimeout}
	transcriber, err := deepgram.NewClient(cfg.Speech.Deepgram, httpClient)
	if err != nil {
		return nil, err
	}
	synthesizer, err := elevenlabs.NewClient(cfg.Speech.ElevenLabs, httpClient)
	if err != nil {
		return nil, err
	}

	store, uploadsDir, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	checks := map[string]handlers.DependencyCheck{"database": sqlDB.PingContext}

	var (
		publisher events.Publisher = events.NopPublisher{}
		rdb       *redis.Client
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisPublisher := events.NewRedisPublisher(rdb)
		publisher = redisPublisher
		checks["redis"] = redisPublisher.Ping
	}

	repos := repositories.New(db)
	answers := pipeline.New(repos, transcriber, evaluator, publisher, cfg.Pipeline, logger)
	manager := session.NewManager(repos, answers, store,
		aggregator.New(evaluator, cfg.Session.SummaryTimeout, logger),
		publisher, cfg.Session.TTL, logger)
	interviewService := interviews.NewService(repos, evaluator, synthesizer, store, logger)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, every bearer token will be rejected")
	}

	router := newRouter(cfg,
		handlers.NewHealthHandler(provider, promptManager, checks, answers.Metrics),
		handlers.NewInterviewHandler(interviewService, logger),
		handlers.NewSessionHandler(manager, handlers.DefaultMaxAnswerBytes, logger),
		uploadsDir)

	logger.Info("Service wired",
		zap.String("provider", provider.GetProviderName()),
		zap.String("transcriber", transcriber.Name()),
		zap.String("synthesizer", synthesizer.Name()),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", cfg.Redis.Enabled))

	return &service{
		router:   router,
		pipeline: answers,
		sweeper:  jobs.NewStaleSweeperJob(repos, cfg.Sweeper, logger),
		redis:    rdb,
	}, nil
}

// openStore returns the configured store, and for the local driver the
// directory to serve under /uploads.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, string, error) {
	switch cfg.Driver {
	case "azure":
		store, err := azure.NewStore(ctx, cfg.AzureConnStr, cfg.AzureContainer)
		return store, "", err
	default:
		store, err := local.NewStore(cfg.LocalDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.Root(), nil
	}
}

func newRouter(cfg *config.Config, health *handlers.HealthHandler, interviewHandler *handlers.InterviewHandler, sessionHandler *handlers.SessionHandler, uploadsDir string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	router.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Logger, chimiddleware.Recoverer, chimiddleware.Timeout(60*time.Second))
	router.Use(metrics.Middleware)
	router.Use(middleware.Authenticate(cfg.Auth.JWTSecret))

	routers.HealthRoutes(router, health)
	routers.InterviewRoutes(router, interviewHandler, sessionHandler)
	routers.SessionRoutes(router, sessionHandler)

	if uploadsDir != "" {
		router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))
	}
	return router
}
