package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string

	FetchRetries       int
	FetchBaseTimeoutMs int
	FetchMaxTimeoutMs  int
	FetchBaseDelayMs   int
	FetchRateBurst     int
	FetchRatePeriodMs  int

	SentimentConcurrency  int
	SentimentBatchDelayMs int
	SentimentModel        string

	SnapshotFreshnessMs int
	SnapshotPollSecs    int
	SnapshotTopN        int
	MarketCapVolumeMult float64

	EnsembleSources  []string
	EnsembleStrategy string
	EnsemblePrimary  string

	OpenAIAPIKey      string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string
	HuggingFaceAPIKey string
	NewsAPIKey        string
	TrendsAPIKey      string

	AdvisorMaxHistory int
}

var fatalf = log.Fatalf

func Load() *Config {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		HuggingFaceAPIKey: os.Getenv("HUGGINGFACE_API_KEY"),
		NewsAPIKey:        os.Getenv("NEWS_API_KEY"),
		TrendsAPIKey:      os.Getenv("TRENDS_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, chat history will not persist")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, snapshots will not survive restarts")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set")
	}
	if cfg.GeminiAPIKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set")
	}
	if cfg.HuggingFaceAPIKey == "" {
		log.Println("Warning: HUGGINGFACE_API_KEY not set, sentiment uses keyword heuristic only")
	}
	if cfg.NewsAPIKey == "" {
		log.Println("Warning: NEWS_API_KEY not set, news served from fallback dataset")
	}

	cfg.FetchRetries = intEnv("FETCH_RETRIES", 3)
	cfg.FetchBaseTimeoutMs = intEnv("FETCH_BASE_TIMEOUT_MS", 2500)
	cfg.FetchMaxTimeoutMs = intEnv("FETCH_MAX_TIMEOUT_MS", 10000)
	cfg.FetchBaseDelayMs = intEnv("FETCH_BASE_DELAY_MS", 250)
	// Zero disables the client-level politeness budget.
	cfg.FetchRateBurst = intEnv("FETCH_RATE_BURST", 0)
	cfg.FetchRatePeriodMs = intEnv("FETCH_RATE_PERIOD_MS", 1000)

	cfg.SentimentConcurrency = intEnv("SENTIMENT_CONCURRENCY", 2)
	cfg.SentimentBatchDelayMs = intEnv("SENTIMENT_BATCH_DELAY_MS", 150)
	cfg.SentimentModel = strings.TrimSpace(os.Getenv("SENTIMENT_MODEL"))

	cfg.SnapshotFreshnessMs = intEnv("SNAPSHOT_FRESHNESS_MS", 60000)
	cfg.SnapshotPollSecs = intEnv("SNAPSHOT_POLL_SECS", 5)
	cfg.SnapshotTopN = intEnv("SNAPSHOT_TOP_N", 10)

	cfg.MarketCapVolumeMult = 40
	if v := strings.TrimSpace(os.Getenv("MARKETCAP_VOLUME_MULT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.MarketCapVolumeMult = n
		}
	}

	cfg.EnsembleSources = []string{"gemini", "huggingface", "openai"}
	if v := strings.TrimSpace(os.Getenv("ENSEMBLE_SOURCES")); v != "" {
		var sources []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
				sources = append(sources, s)
			}
		}
		if len(sources) > 0 {
			cfg.EnsembleSources = sources
		}
	}

	cfg.EnsembleStrategy = strings.ToLower(strings.TrimSpace(os.Getenv("ENSEMBLE_STRATEGY")))
	if cfg.EnsembleStrategy == "" {
		cfg.EnsembleStrategy = "confidence"
	}
	switch cfg.EnsembleStrategy {
	case "confidence", "primary-with-support", "equal":
	default:
		fatalf("unsupported ENSEMBLE_STRATEGY=%q", cfg.EnsembleStrategy)
	}

	cfg.EnsemblePrimary = strings.ToLower(strings.TrimSpace(os.Getenv("ENSEMBLE_PRIMARY_SOURCE")))
	if cfg.EnsemblePrimary == "" {
		cfg.EnsemblePrimary = "gemini"
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	cfg.GeminiModel = strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-1.5-flash"
	}

	cfg.AdvisorMaxHistory = intEnv("ADVISOR_MAX_HISTORY", 20)

	return cfg
}

func intEnv(name string, def int) int {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
