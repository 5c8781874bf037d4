// Package config loads server configuration from the environment.
// A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Models maps each pipeline stage to the completion model it uses.
// Cheap models handle classification and summarization; the planner and
// builder get the stronger model because SQL correctness is what users see.
type Models struct {
	Chat       string `json:"chat"`
	Analyzer   string `json:"analyzer"`
	Planner    string `json:"planner"`
	Builder    string `json:"builder"`
	Summarizer string `json:"summarizer"`
	Fixer      string `json:"fixer"`
}

// Config structure
type Config struct {
	Port             int           `json:"port"`
	DuckDBPath       string        `json:"duckdbPath"`
	APIKey           string        `json:"apiKey"`
	BaseURL          string        `json:"baseUrl"`
	Models           Models        `json:"models"`
	MaxRefine        int           `json:"maxRefine"`    // repair attempts after the first execution
	RetryBackoff     time.Duration `json:"retryBackoff"` // linear backoff base between execution attempts
	HistoryLimit     int           `json:"historyLimit"` // hard cap on session history length
	CompactAfter     int           `json:"compactAfter"` // soft threshold that triggers compaction
	SessionTTL       time.Duration `json:"sessionTtl"`
	SweepInterval    time.Duration `json:"sweepInterval"`
	LLMTimeout       time.Duration `json:"llmTimeout"` // per completion call
	LogMode          string        `json:"logMode"`
	AllowedOrigins   []string      `json:"allowedOrigins"`
	ImportantPath    string        `json:"importantPath"`    // domain rule file
	ImportantCTIPath string        `json:"importantCtiPath"` // manufacturing rule file
	StarHintPath     string        `json:"starHintPath"`
}

// Load reads configuration from the environment and applies defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:       envInt("PORT", 3001),
		DuckDBPath: envStr("DUCKDB_PATH", "feature_store_heb.duckdb"),
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		BaseURL:    os.Getenv("OPENAI_BASE_URL"),
		Models: Models{
			Chat:       envStr("MODEL_CHAT", "gpt-4o-mini"),
			Analyzer:   envStr("MODEL_ANALYZER", "gpt-4o-mini"),
			Planner:    envStr("MODEL_PLANNER", "gpt-4o"),
			Builder:    envStr("MODEL_BUILDER", "gpt-4o"),
			Summarizer: envStr("MODEL_SUMMARIZER", "gpt-4o-mini"),
			Fixer:      envStr("MODEL_FIXER", "gpt-4o-mini"),
		},
		MaxRefine:     envInt("MAX_REFINE", 3),
		RetryBackoff:  envDuration("RETRY_BACKOFF", time.Second),
		HistoryLimit:  envInt("HISTORY_LIMIT", 500),
		CompactAfter:  envInt("COMPACT_AFTER", 20),
		SessionTTL:    envDuration("SESSION_TTL", 24*time.Hour),
		SweepInterval: envDuration("SWEEP_INTERVAL", time.Hour),
		LLMTimeout:    envDuration("LLM_TIMEOUT", 120*time.Second),
		LogMode:       envStr("LOG_MODE", "dev"),
		AllowedOrigins: []string{
			"http://localhost:3000",
			"https://aibi.cloudline.co.il",
			".base44.app",
		},
		ImportantPath:    envStr("IMPORTANT_PATH", "important_enhanced.txt"),
		ImportantCTIPath: envStr("IMPORTANT_CTI_PATH", "IMPORTANT_CTI.txt"),
		StarHintPath:     envStr("STAR_HINT_PATH", "star_hint.txt"),
	}

	if cfg.MaxRefine < 0 {
		return cfg, fmt.Errorf("config: MAX_REFINE must be >= 0, got %d", cfg.MaxRefine)
	}
	if cfg.HistoryLimit <= 0 {
		return cfg, fmt.Errorf("config: HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
