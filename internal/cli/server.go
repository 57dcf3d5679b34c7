package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"docquiz-service/internal/app"
	"docquiz-service/internal/config"
	"docquiz-service/internal/domain"
	"docquiz-service/internal/infra/gemini"
	"docquiz-service/internal/infra/memory"
	"docquiz-service/internal/infra/postgres"
	"docquiz-service/internal/infra/rabbit"
	infraredis "docquiz-service/internal/infra/redis"
	transport "docquiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
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

type stores struct {
	documents   app.DocumentStore
	quizzes     app.QuizStore
	submissions app.SubmissionLog
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
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

	st := stores{
		documents:   memory.NewDocumentStore(),
		quizzes:     memory.NewQuizStore(),
		submissions: memory.NewSubmissionLog(),
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		st = stores{
			documents:   postgres.NewDocumentStore(pool),
			quizzes:     postgres.NewQuizStore(pool),
			submissions: postgres.NewSubmissionLog(pool),
		}
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	searchTTL := config.TTLDuration(cfg.Documents.CacheTTL, 5*time.Minute)
	var (
		reader      app.QuizReader
		searchCache app.SearchCache
		feed        app.AnalyticsFeed
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		reader = infraredis.NewQuizCache(redisClient, st.quizzes, quizTTL)
		searchCache = infraredis.NewSearchCache(redisClient, searchTTL)
		feed = infraredis.NewFeedHub(redisClient, redisTTL)
	} else {
		reader = memory.NewQuizCache(st.quizzes, quizTTL)
		feed = memory.NewFeedHub()
	}

	opts := []app.Option{app.WithAnalyticsFeed(feed)}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbit.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithSubmissionPublisher(publisher))
	}

	var generator app.Generator = unconfiguredGenerator{}
	if cfg.Gemini.APIKey != "" {
		g, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
		})
		if err != nil {
			return err
		}
		defer g.Close()
		generator = g
	} else {
		log.Printf("gemini api key not set; quiz generation disabled")
	}

	index := app.NewDocumentIndex(st.documents, searchCache, cfg.Documents.MaxBytes)
	builder := app.NewQuizBuilder(index, generator, st.quizzes, app.BuilderConfig{
		MaxContextBytes:   cfg.Quiz.MaxContextBytes,
		AttemptTimeout:    config.TTLDuration(cfg.Quiz.AttemptTimeout, 60*time.Second),
		StrictInstruction: cfg.Quiz.StrictInstruction,
		MaxQuestions:      cfg.Quiz.MaxQuestions,
	})
	service := app.NewQuizService(index, builder, st.quizzes, reader, st.submissions, opts...)

	handler := transport.NewHandler(service, int64(cfg.Documents.MaxBytes))
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(handler, transport.NewWSHandler(service)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// unconfiguredGenerator stands in when no generation backend is configured.
type unconfiguredGenerator struct{}

func (unconfiguredGenerator) Generate(context.Context, app.GenerationRequest) (app.RawCandidate, error) {
	return app.RawCandidate{}, fmt.Errorf("%w: no generation backend configured", domain.ErrGenerationService)
}
