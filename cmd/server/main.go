package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-concierge/internal/advisor"
	"crypto-concierge/internal/cache"
	"crypto-concierge/internal/config"
	"crypto-concierge/internal/db"
	"crypto-concierge/internal/ensemble"
	"crypto-concierge/internal/fetch"
	"crypto-concierge/internal/handler"
	"crypto-concierge/internal/job"
	"crypto-concierge/internal/provider"
	"crypto-concierge/internal/repository"
	"crypto-concierge/internal/sentiment"
	"crypto-concierge/internal/service"
	"crypto-concierge/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "crypto-concierge/docs"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	newChatRepoFunc  = repository.NewChatRepository
	newMarketServiceFunc = func(tracer trace.Tracer, market service.MarketSource, snapCache service.SnapshotCache, topN int, freshness time.Duration, volumeMult float64) *service.MarketService {
		return service.NewMarketService(tracer, market, snapCache, topN, freshness, volumeMult)
	}
	newSnapshotPollerFunc  = job.NewSnapshotPoller
	startPollerFunc        = func(p *job.SnapshotPoller, ctx context.Context) { go p.Start(ctx) }
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Crypto Concierge API
// @version         1.0
// @description     A crypto market assistant backed by a multi-model ensemble.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Chat repository and migrations
	var chatRepo *repository.ChatRepository
	if db.Pool != nil {
		chatRepo = newChatRepoFunc(db.Pool, tracer)
		if err := chatRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// HTTP fetch clients. The classifier gets its own client so the auth
	// header never leaks to other upstreams.
	fetchOpts := fetch.Options{
		Retries:     cfg.FetchRetries,
		BaseTimeout: time.Duration(cfg.FetchBaseTimeoutMs) * time.Millisecond,
		MaxTimeout:  time.Duration(cfg.FetchMaxTimeoutMs) * time.Millisecond,
		BaseDelay:   time.Duration(cfg.FetchBaseDelayMs) * time.Millisecond,
		RateBurst:   cfg.FetchRateBurst,
		RatePeriod:  time.Duration(cfg.FetchRatePeriodMs) * time.Millisecond,
	}
	fetcher := fetch.NewClient(tracer, fetchOpts)

	hfOpts := fetchOpts
	if cfg.HuggingFaceAPIKey != "" {
		hfOpts.Header = http.Header{"Authorization": {"Bearer " + cfg.HuggingFaceAPIKey}}
	}
	hfFetcher := fetch.NewClient(tracer, hfOpts)

	// Providers
	marketProvider := provider.NewMarketProvider(tracer, fetcher)
	newsProvider := provider.NewNewsProvider(tracer, fetcher, cfg.NewsAPIKey)
	trendsProvider := provider.NewTrendsProvider(tracer, fetcher, cfg.TrendsAPIKey, nil)
	classifier := provider.NewHFClassifier(tracer, hfFetcher, cfg.SentimentModel)
	geminiProvider := provider.NewGeminiProvider(tracer, fetcher, cfg.GeminiAPIKey, cfg.GeminiModel)
	openaiProvider := provider.NewOpenAIProvider(tracer, cfg.OpenAIAPIKey, cfg.OpenAIModel)

	// Sentiment analyzer: remote rung only with a key
	var remote sentiment.RemoteClassifier
	if cfg.HuggingFaceAPIKey != "" {
		remote = classifier
	}
	analyzer := sentiment.NewAnalyzer(tracer, remote,
		cfg.SentimentConcurrency,
		time.Duration(cfg.SentimentBatchDelayMs)*time.Millisecond,
	)

	// Ensemble sources per config
	var sources []ensemble.Source
	for _, name := range cfg.EnsembleSources {
		switch name {
		case "gemini":
			if cfg.GeminiAPIKey != "" {
				sources = append(sources, ensemble.NewLLMSource("gemini", geminiProvider, 0.85, "broad reasoning"))
			}
		case "openai":
			if cfg.OpenAIAPIKey != "" {
				sources = append(sources, ensemble.NewLLMSource("openai", openaiProvider, 0.85, "broad reasoning"))
			}
		case "huggingface":
			if cfg.HuggingFaceAPIKey != "" {
				sources = append(sources, ensemble.NewSentimentSource(classifier))
			}
		default:
			log.Printf("Warning: unknown ensemble source %q skipped", name)
		}
	}
	if len(sources) == 0 {
		log.Println("Warning: no ensemble sources configured, chat will use canned fallback replies")
	}
	ensembleService, err := ensemble.NewService(tracer, sources, cfg.EnsembleStrategy, cfg.EnsemblePrimary)
	if err != nil {
		log.Fatalf("failed to create ensemble: %v", err)
	}

	// Market snapshot service and poller
	var snapCache service.SnapshotCache
	if cache.Client != nil {
		snapCache = cache.Client
	}
	marketService := newMarketServiceFunc(tracer, marketProvider, snapCache,
		cfg.SnapshotTopN,
		time.Duration(cfg.SnapshotFreshnessMs)*time.Millisecond,
		cfg.MarketCapVolumeMult,
	)
	poller := newSnapshotPollerFunc(tracer, marketService, cfg.SnapshotPollSecs)
	startPollerFunc(poller, ctx)

	// Advisor
	var chatStore advisor.ChatStore
	var history handler.HistoryStore
	if chatRepo != nil {
		chatStore = chatRepo
		history = chatRepo
	}
	advisorService := advisor.NewAdvisorService(tracer, ensembleService, marketService, chatStore, cfg.AdvisorMaxHistory)

	// Handlers and routes
	h := newHandlerFunc(tracer, marketService, advisorService, history, analyzer, newsProvider, trendsProvider)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("crypto-concierge"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
