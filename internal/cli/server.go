package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/config"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/follower"
	"classroom-quiz-service/internal/infra/memory"
	natsfeed "classroom-quiz-service/internal/infra/nats"
	pgstore "classroom-quiz-service/internal/infra/postgres"
	redisinfra "classroom-quiz-service/internal/infra/redis"
	transport "classroom-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) must be set")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
	}

	repos, loader := buildRepositories(pool)

	questionTTL := config.TTLDuration(cfg.Game.QuestionCacheTTL, 10*time.Minute)
	if redisClient != nil {
		repos.Questions = redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
	} else {
		repos.Questions = memory.NewQuestionCache(loader, questionTTL)
	}

	notifier, closeNotifier, err := buildNotifier(cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeNotifier()

	service := app.NewGameService(repos, notifier, app.WithPinAttempts(cfg.Game.PinAttempts))
	api := transport.NewAPI(service, transport.NewTokenVerifier(cfg.Auth.JWTSecret))
	wsHandler := transport.NewWSHandler(service, config.TTLDuration(cfg.Game.PollInterval, follower.DefaultPollInterval), nil)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(api, wsHandler, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", finalPort).
			Str("notifier", cfg.Notifier.Driver).
			Bool("postgres", pool != nil).
			Bool("redis", redisClient != nil).
			Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRepositories picks Postgres when configured and falls back to the
// in-memory store seeded with a demo block.
func buildRepositories(pool *pgxpool.Pool) (app.Repositories, memory.QuestionLoader) {
	if pool != nil {
		store := pgstore.NewStore(pool)
		return app.Repositories{
			Sessions:     store,
			Participants: store,
			Answers:      store,
			Teachers:     store,
		}, pgstore.NewQuestionLoader(pool)
	}
	log.Warn().Msg("postgres not configured, using in-memory store with demo questions")
	store := memory.NewStore()
	return app.Repositories{
		Sessions:     store,
		Participants: store,
		Answers:      store,
		Teachers:     store,
	}, memory.NewStaticQuestionLoader(sampleBlocks())
}

func buildNotifier(cfg config.Config, redisClient *redis.Client) (app.Notifier, func(), error) {
	switch cfg.Notifier.Driver {
	case "memory":
		return memory.NewBroker(), func() {}, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("notifier driver redis requires redis.addr")
		}
		return redisinfra.NewNotifier(redisClient), func() {}, nil
	case "nats":
		natsCfg := natsfeed.DefaultConfig()
		if cfg.NATS.URL != "" {
			natsCfg.URL = cfg.NATS.URL
		}
		if cfg.NATS.SubjectPrefix != "" {
			natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		notifier, err := natsfeed.Connect(natsCfg)
		if err != nil {
			return nil, nil, err
		}
		return notifier, func() {
			if err := notifier.Close(); err != nil {
				log.Warn().Err(err).Msg("close NATS connection")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
	}
}

// sampleBlocks provides a demo block for running without a database.
func sampleBlocks() map[string][]domain.Question {
	return map[string][]domain.Question{
		"demo": {
			{ID: "demo-q1", BlockID: "demo", OrderIndex: 0, Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectOption: 1, TimeSeconds: 20, MaxPoints: 1000},
			{ID: "demo-q2", BlockID: "demo", OrderIndex: 1, Text: "Which planet is largest?", Options: []string{"Mars", "Earth", "Jupiter", "Venus"}, CorrectOption: 2, TimeSeconds: 20, MaxPoints: 1000},
			{ID: "demo-q3", BlockID: "demo", OrderIndex: 2, Text: "H2O is the formula for?", Options: []string{"Salt", "Water", "Oxygen", "Hydrogen"}, CorrectOption: 1, TimeSeconds: 15, MaxPoints: 1000},
		},
	}
}
