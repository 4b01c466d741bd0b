package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cf-quiz-service/internal/app"
	"cf-quiz-service/internal/config"
	"cf-quiz-service/internal/infra/memory"
	pgstorage "cf-quiz-service/internal/infra/postgres"
	redisstore "cf-quiz-service/internal/infra/redis"
	"cf-quiz-service/internal/infra/trivia"
	"cf-quiz-service/internal/logging"
	transport "cf-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
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

// backends holds the optional external connections shared by the commands.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
}

func (b backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func connect(ctx context.Context, cfg config.Config) (backends, error) {
	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return backends{}, err
		}
		b.pool = pool
	}
	return b, nil
}

// historyStorage picks the attempt storage for the configured backend.
func historyStorage(cfg config.Config, b backends) (app.Storage, error) {
	switch backend := cfg.HistoryBackend(); backend {
	case config.BackendPostgres:
		if b.pool == nil {
			return nil, fmt.Errorf("history backend %q needs postgres.url", backend)
		}
		return pgstorage.NewStorage(b.pool), nil
	case config.BackendRedis:
		if b.redis == nil {
			return nil, fmt.Errorf("history backend %q needs redis.addr", backend)
		}
		return redisstore.NewStorage(b.redis), nil
	default:
		return memory.NewStorage(), nil
	}
}

// triviaOptions maps the trivia section; min_interval defaults to the provider's 5s per-IP policy.
func triviaOptions(cfg config.Config) trivia.Options {
	return trivia.Options{
		URL:         cfg.Trivia.URL,
		Amount:      cfg.Trivia.Amount,
		Timeout:     config.TTLDuration(cfg.Trivia.Timeout, 10*time.Second),
		MinInterval: config.TTLDuration(cfg.Trivia.MinInterval, 5*time.Second),
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logs := logging.Setup(cfg)
	defer logs.Close()

	if cfg.HistoryBackend() == config.BackendPostgres {
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

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	storage, err := historyStorage(cfg, b)
	if err != nil {
		return err
	}

	var sessions app.SessionRepository
	if b.redis != nil {
		sessions = redisstore.NewSessionStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	} else {
		sessions = memory.NewSessionStore()
	}

	source := trivia.NewSource(triviaOptions(cfg))

	service := app.NewQuizService(sessions, source, app.NewHistoryStore(storage))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s (history: %s)", finalPort, cfg.HistoryBackend())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
