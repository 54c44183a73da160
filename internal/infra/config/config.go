package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	EmbedderURL     string
	EmbeddingModel  string
	EmbedderTimeout int // seconds
	EmbedCacheSize  int
	EmbedCacheTTL   int // minutes

	GeneratorURL     string
	GeneratorModel   string
	GeneratorTimeout int // seconds
	PlanMaxTokens    int
	PromptVersion    string

	TotalBudget      int
	MaxTemplates     int
	ReferenceBodyMax int

	FanoutTimeoutMS   int
	FanoutMaxAttempts int
	FanoutBackoffMS   int
	FanoutQueriesPS   float64

	// Per-intent re-ranker weight overrides, keyed by intent name then
	// feature name. Empty means the shipped defaults apply. Format:
	// RERANK_WEIGHTS_DEFAULT="semantic:0.4,protein:0.15,carbs:0.15,..."
	WeightOverrides map[string]map[string]float64

	OTelEnabled bool
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "meal-kb-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "meal_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "meal_password"),
		DBName:     getEnv("DB_NAME", "meal_kb"),

		EmbedderURL:     getEnv("EMBEDDER_URL", "http://embedder:11434"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "embeddinggemma"),
		EmbedderTimeout: getEnvInt("EMBEDDER_TIMEOUT", 30),
		EmbedCacheSize:  getEnvInt("EMBED_CACHE_SIZE", 2048),
		EmbedCacheTTL:   getEnvInt("EMBED_CACHE_TTL_MINUTES", 60),

		GeneratorURL:     getEnv("GENERATOR_URL", "http://generator:11435"),
		GeneratorModel:   getEnv("GENERATOR_MODEL", "gpt-oss20b-cpu"),
		GeneratorTimeout: getEnvInt("GENERATOR_TIMEOUT", 120),
		PlanMaxTokens:    getEnvInt("PLAN_MAX_TOKENS", 2048),
		PromptVersion:    getEnv("PLAN_PROMPT_VERSION", "mealplan-v1"),

		TotalBudget:      getEnvInt("TOTAL_CANDIDATE_BUDGET", 70),
		MaxTemplates:     getEnvInt("MAX_TEMPLATE_CANDIDATES", 70),
		ReferenceBodyMax: getEnvInt("REFERENCE_BODY_MAX_CHARS", 600),

		FanoutTimeoutMS:   getEnvInt("FANOUT_TIMEOUT_MS", 5000),
		FanoutMaxAttempts: getEnvInt("FANOUT_MAX_ATTEMPTS", 3),
		FanoutBackoffMS:   getEnvInt("FANOUT_BACKOFF_MS", 200),
		FanoutQueriesPS:   getEnvFloat("FANOUT_QUERIES_PER_SEC", 20),

		WeightOverrides: loadWeightOverrides(),

		OTelEnabled: getEnv("OTEL_LOGS_ENABLED", "false") == "true",
	}
}

// loadWeightOverrides reads RERANK_WEIGHTS_<INTENT> variables. The weight
// tables are heuristic constants, so they stay configurable rather than
// hard-coded.
func loadWeightOverrides() map[string]map[string]float64 {
	intents := map[string]string{
		"RERANK_WEIGHTS_DEFAULT":      "default",
		"RERANK_WEIGHTS_HIGH_PROTEIN": "high-protein",
		"RERANK_WEIGHTS_QUICK_MEAL":   "quick-meal",
		"RERANK_WEIGHTS_BUDGET":       "budget-constrained",
		"RERANK_WEIGHTS_LOW_GLYCEMIC": "low-glycemic",
	}

	overrides := make(map[string]map[string]float64)
	for envKey, intent := range intents {
		raw, ok := os.LookupEnv(envKey)
		if !ok || raw == "" {
			continue
		}
		weights := parseWeights(raw)
		if len(weights) > 0 {
			overrides[intent] = weights
		}
	}
	return overrides
}

// parseWeights parses "feature:value,feature:value" pairs. Malformed pairs
// are skipped so one typo does not discard the whole vector.
func parseWeights(raw string) map[string]float64 {
	weights := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || value < 0 {
			continue
		}
		weights[strings.TrimSpace(parts[0])] = value
	}
	return weights
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
