// Package config loads the tenderarb configuration from a YAML file with
// TENDERARB_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Scan     ScanConfig     `mapstructure:"scan"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScanConfig holds the ranker filters
type ScanConfig struct {
	MinSpreadPct      float64 `mapstructure:"min_spread_pct"`
	IncludeOddLotOnly bool    `mapstructure:"include_odd_lot_only"`
	MaxDaysToExpiry   int     `mapstructure:"max_days_to_expiry"`
	ReportTopN        int     `mapstructure:"report_top_n"`
}

// EngineConfig holds reconciliation and concurrency settings
type EngineConfig struct {
	Workers                     int    `mapstructure:"workers"`
	PriceStalenessWindowSeconds int    `mapstructure:"price_staleness_window_seconds"`
	OddLotPolicy                string `mapstructure:"odd_lot_policy"`
	DutchBasis                  string `mapstructure:"dutch_basis"`
}

// RankingConfig holds the composite score weights and rating cutoffs
type RankingConfig struct {
	TierCutoffs      []float64 `mapstructure:"tier_cutoffs"`
	AnnualizedWeight float64   `mapstructure:"annualized_weight"`
	NormalizationCap float64   `mapstructure:"normalization_cap"`
	OddLotBonus      float64   `mapstructure:"odd_lot_bonus"`
	StalePenalty     float64   `mapstructure:"stale_penalty"`
	ConflictPenalty  float64   `mapstructure:"conflict_penalty"`
}

// FetchConfig holds source adapter transport settings
type FetchConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	RateLimit      int           `mapstructure:"rate_limit"`
	LookbackDays   int           `mapstructure:"lookback_days"`
}

// SourcesConfig holds source endpoints
type SourcesConfig struct {
	EDGARSearchURL         string   `mapstructure:"edgar_search_url"`
	EDGARArchiveURL        string   `mapstructure:"edgar_archive_url"`
	EDGARForms             []string `mapstructure:"edgar_forms"`
	InsideArbitrageURL     string   `mapstructure:"insidearbitrage_url"`
	InsideArbitrageEnabled bool     `mapstructure:"insidearbitrage_enabled"`
	YahooURL               string   `mapstructure:"yahoo_url"`
}

// StorageConfig holds the run archive and artifact settings
type StorageConfig struct {
	DBPath          string `mapstructure:"db_path"`
	ResultsDir      string `mapstructure:"results_dir"`
	KeepRuns        int    `mapstructure:"keep_runs"`
	FilePermissions uint32 `mapstructure:"file_permissions"`
	DirPermissions  uint32 `mapstructure:"dir_permissions"`
}

// EmailConfig holds SMTP notification configuration
type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	SMTPServer string   `mapstructure:"smtp_server"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	SMTPUser   string   `mapstructure:"smtp_user"`
	SMTPPass   string   `mapstructure:"smtp_pass"`
	From       string   `mapstructure:"from"`
	To         []string `mapstructure:"to"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// KafkaConfig holds the deal event publisher configuration
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// ScheduleConfig holds daemon mode scheduling
type ScheduleConfig struct {
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty
// path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TENDERARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.min_spread_pct", 0.5)
	v.SetDefault("scan.include_odd_lot_only", false)
	v.SetDefault("scan.max_days_to_expiry", 90)
	v.SetDefault("scan.report_top_n", 5)

	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.price_staleness_window_seconds", 3600)
	v.SetDefault("engine.odd_lot_policy", "or")
	v.SetDefault("engine.dutch_basis", "lower")

	v.SetDefault("ranking.tier_cutoffs", []float64{0.8, 0.5, 0.2, -1.0})
	v.SetDefault("ranking.annualized_weight", 1.0)
	v.SetDefault("ranking.normalization_cap", 100.0)
	v.SetDefault("ranking.odd_lot_bonus", 0.25)
	v.SetDefault("ranking.stale_penalty", 0.2)
	v.SetDefault("ranking.conflict_penalty", 0.1)

	v.SetDefault("fetch.user_agent", "tenderarb research contact@example.com")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.retry_delay_base", "2s")
	v.SetDefault("fetch.rate_limit", 8)
	v.SetDefault("fetch.lookback_days", 45)

	v.SetDefault("sources.edgar_forms", []string{"SC TO-I", "SC TO-T"})
	v.SetDefault("sources.insidearbitrage_enabled", true)

	v.SetDefault("storage.db_path", "./data/tenderarb.db")
	v.SetDefault("storage.results_dir", "./results")
	v.SetDefault("storage.keep_runs", 90)
	v.SetDefault("storage.file_permissions", 0644)
	v.SetDefault("storage.dir_permissions", 0755)

	// Registered so that TENDERARB_* variables reach Unmarshal.
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_server", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_pass", "")
	v.SetDefault("email.from", "")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "tender-offer-deals")
	v.SetDefault("kafka.client_id", "tenderarb")

	v.SetDefault("schedule.cron", "0 21 * * 1-5")
	v.SetDefault("schedule.timezone", "America/New_York")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Scan.MinSpreadPct < 0 {
		return fmt.Errorf("scan.min_spread_pct must not be negative")
	}
	if c.Scan.MaxDaysToExpiry < 1 {
		return fmt.Errorf("scan.max_days_to_expiry must be at least 1")
	}
	if c.Scan.ReportTopN < 1 {
		return fmt.Errorf("scan.report_top_n must be at least 1")
	}

	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1")
	}
	if c.Engine.PriceStalenessWindowSeconds < 1 {
		return fmt.Errorf("engine.price_staleness_window_seconds must be at least 1")
	}
	validPolicies := map[string]bool{"or": true, "and": true, "majority": true}
	if !validPolicies[c.Engine.OddLotPolicy] {
		return fmt.Errorf("engine.odd_lot_policy must be one of: or, and, majority")
	}
	validBases := map[string]bool{"lower": true, "midpoint": true, "upper": true}
	if !validBases[c.Engine.DutchBasis] {
		return fmt.Errorf("engine.dutch_basis must be one of: lower, midpoint, upper")
	}

	if len(c.Ranking.TierCutoffs) != 4 {
		return fmt.Errorf("ranking.tier_cutoffs must hold exactly 4 values (A, B, C, D)")
	}
	for i := 1; i < len(c.Ranking.TierCutoffs); i++ {
		if c.Ranking.TierCutoffs[i] >= c.Ranking.TierCutoffs[i-1] {
			return fmt.Errorf("ranking.tier_cutoffs must be strictly decreasing")
		}
	}
	if c.Ranking.NormalizationCap <= 0 {
		return fmt.Errorf("ranking.normalization_cap must be positive")
	}
	if c.Ranking.AnnualizedWeight < 0 || c.Ranking.OddLotBonus < 0 || c.Ranking.StalePenalty < 0 || c.Ranking.ConflictPenalty < 0 {
		return fmt.Errorf("ranking weights must not be negative")
	}

	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.user_agent is required")
	}
	if c.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch.timeout must be at least 1 second")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	if c.Fetch.RateLimit > 10 {
		return fmt.Errorf("fetch.rate_limit must not exceed 10 requests per second")
	}
	if c.Fetch.LookbackDays < 1 {
		return fmt.Errorf("fetch.lookback_days must be at least 1")
	}

	if c.Storage.KeepRuns < 0 {
		return fmt.Errorf("storage.keep_runs must not be negative")
	}

	if c.Email.Enabled {
		if c.Email.SMTPServer == "" {
			return fmt.Errorf("email.smtp_server is required when email is enabled")
		}
		if c.Email.From == "" || len(c.Email.To) == 0 {
			return fmt.Errorf("email.from and email.to are required when email is enabled")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must contain at least one broker when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}

	if c.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone is invalid: %w", err)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// PriceStalenessWindow returns the quote freshness window as a duration.
func (e EngineConfig) PriceStalenessWindow() time.Duration {
	return time.Duration(e.PriceStalenessWindowSeconds) * time.Second
}
