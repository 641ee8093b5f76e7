// Package config loads Beats' runtime configuration from environment
// variables, with an optional YAML file overlay for local/dev tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/provenonce/beats/pkg/hashchain"
)

// Config holds all configuration for the Beats service.
type Config struct {
	// Server
	ListenAddr string

	// Secrets — required, no defaults for production security.
	AnchorKeypair string // BEATS_ANCHOR_KEYPAIR, base58 secret; also the HKDF master seed
	CronSecret    string // CRON_SECRET, compared constant-time against the cron bearer token
	ProTierToken  string // BEATS_PRO_TIER_TOKEN, optional

	// Ledger
	SolanaRPCURL string // NEXT_PUBLIC_SOLANA_RPC_URL

	// Anchor cadence and difficulty defaults.
	AnchorIntervalMS   int64
	DefaultDifficulty  uint32
	DefaultEpoch       uint32
	AnchorHashGrace    uint32
	MinDifficulty      uint32
	MaxDifficulty      uint32
	PublicMaxDifficulty uint32
	PublicMaxSpotChecks int

	// Rate limiting
	TimestampFreeMinuteLimit int
	TimestampFreeDayLimit    int
	TimestampProMinuteLimit  int
	TimestampProDayLimit     int

	// Anchor cache
	AnchorCacheTTL time.Duration

	LogLevel string
}

// fileOverlay mirrors a subset of Config that may be tuned from an optional
// YAML file. Env vars always take precedence over the file.
type fileOverlay struct {
	Anchor struct {
		IntervalMS        int64  `yaml:"interval_ms"`
		DefaultDifficulty uint32 `yaml:"default_difficulty"`
		DefaultEpoch      uint32 `yaml:"default_epoch"`
	} `yaml:"anchor"`
	RPC struct {
		SolanaURL string `yaml:"solana_url"`
	} `yaml:"rpc"`
	ProTier struct {
		MinuteLimit int `yaml:"minute_limit"`
		DayLimit    int `yaml:"day_limit"`
	} `yaml:"pro_tier"`
}

// Load reads configuration from environment variables and, if
// BEATS_CONFIG_FILE points at a readable YAML file, layers file-provided
// defaults underneath the env vars (env always wins when both are set).
func Load() (*Config, error) {
	overlay, err := loadFileOverlay(getEnv("BEATS_CONFIG_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("load config file overlay: %w", err)
	}

	cfg := &Config{
		ListenAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),

		AnchorKeypair: getEnv("BEATS_ANCHOR_KEYPAIR", ""),
		CronSecret:    getEnv("CRON_SECRET", ""),
		ProTierToken:  getEnv("BEATS_PRO_TIER_TOKEN", ""),

		SolanaRPCURL: firstNonEmpty(getEnv("NEXT_PUBLIC_SOLANA_RPC_URL", ""), overlay.RPC.SolanaURL),

		AnchorIntervalMS:  getEnvInt64("BEATS_ANCHOR_INTERVAL_MS", firstNonZeroInt64(overlay.Anchor.IntervalMS, 60_000)),
		DefaultDifficulty: uint32(getEnvInt("BEATS_DEFAULT_DIFFICULTY", firstNonZeroInt(int(overlay.Anchor.DefaultDifficulty), 1000))),
		DefaultEpoch:      uint32(getEnvInt("BEATS_DEFAULT_EPOCH", int(overlay.Anchor.DefaultEpoch))),
		AnchorHashGrace:     hashchain.AnchorHashGraceWindow,
		MinDifficulty:       hashchain.MinDifficulty,
		MaxDifficulty:       hashchain.MaxDifficulty,
		PublicMaxDifficulty: hashchain.PublicMaxDifficulty,
		PublicMaxSpotChecks: hashchain.PublicMaxSpotChecks,

		TimestampFreeMinuteLimit: getEnvInt("BEATS_TS_FREE_PER_MINUTE", 5),
		TimestampFreeDayLimit:    getEnvInt("BEATS_TS_FREE_PER_DAY", 10),
		TimestampProMinuteLimit:  getEnvInt("BEATS_TS_PRO_PER_MINUTE", firstNonZeroInt(overlay.ProTier.MinuteLimit, 30)),
		TimestampProDayLimit:     getEnvInt("BEATS_TS_PRO_PER_DAY", firstNonZeroInt(overlay.ProTier.DayLimit, 500)),

		AnchorCacheTTL: getEnvDuration("BEATS_ANCHOR_CACHE_TTL", 10*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate enforces the required production invariants. devMode relaxes the
// CRON_SECRET requirement for local development against a fake ledger.
func (c *Config) Validate(devMode bool) error {
	var errs []string

	if c.AnchorKeypair == "" {
		errs = append(errs, "BEATS_ANCHOR_KEYPAIR is required but not set")
	}
	if c.CronSecret == "" && !devMode {
		errs = append(errs, "CRON_SECRET is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func loadFileOverlay(path string) (fileOverlay, error) {
	var overlay fileOverlay
	if path == "" {
		return overlay, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overlay, nil
		}
		return overlay, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return overlay, fmt.Errorf("parse %s: %w", path, err)
	}
	return overlay, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZeroInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroInt64(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
