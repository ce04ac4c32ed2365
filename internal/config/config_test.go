package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	content := `
scan:
  min_spread_pct: 1.0
  include_odd_lot_only: true
  max_days_to_expiry: 60

engine:
  workers: 8
  price_staleness_window_seconds: 900
  odd_lot_policy: majority
  dutch_basis: midpoint

ranking:
  tier_cutoffs: [0.9, 0.6, 0.3, 0.0]

fetch:
  user_agent: "Example Research research@example.com"
  timeout: 10s
  lookback_days: 30

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

kafka:
  enabled: true
  brokers: ["localhost:9092"]

storage:
  db_path: "./data/test.db"
  keep_runs: 10

logging:
  level: "debug"
  format: "json"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scan.MinSpreadPct != 1.0 || !cfg.Scan.IncludeOddLotOnly || cfg.Scan.MaxDaysToExpiry != 60 {
		t.Errorf("Unexpected scan config: %+v", cfg.Scan)
	}
	if cfg.Engine.PriceStalenessWindow() != 15*time.Minute {
		t.Errorf("Unexpected staleness window: %v", cfg.Engine.PriceStalenessWindow())
	}
	if cfg.Engine.OddLotPolicy != "majority" || cfg.Engine.DutchBasis != "midpoint" {
		t.Errorf("Unexpected engine config: %+v", cfg.Engine)
	}
	if len(cfg.Ranking.TierCutoffs) != 4 || cfg.Ranking.TierCutoffs[0] != 0.9 {
		t.Errorf("Unexpected tier cutoffs: %v", cfg.Ranking.TierCutoffs)
	}
	if cfg.Fetch.Timeout != 10*time.Second {
		t.Errorf("Unexpected fetch timeout: %v", cfg.Fetch.Timeout)
	}
	// Defaults survive for keys the file does not set.
	if cfg.Ranking.NormalizationCap != 100 {
		t.Errorf("Expected default normalization cap, got %v", cfg.Ranking.NormalizationCap)
	}
	if cfg.Kafka.Topic != "tender-offer-deals" {
		t.Errorf("Expected default kafka topic, got %s", cfg.Kafka.Topic)
	}
	if cfg.Storage.DirPermissions != 0755 {
		t.Errorf("Expected default dir permissions, got %o", cfg.Storage.DirPermissions)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scan.MinSpreadPct != 0.5 || cfg.Scan.MaxDaysToExpiry != 90 || cfg.Scan.IncludeOddLotOnly {
		t.Errorf("Unexpected scan defaults: %+v", cfg.Scan)
	}
	if cfg.Engine.PriceStalenessWindowSeconds != 3600 {
		t.Errorf("Unexpected staleness default: %d", cfg.Engine.PriceStalenessWindowSeconds)
	}
	want := []float64{0.8, 0.5, 0.2, -1.0}
	for i, v := range want {
		if cfg.Ranking.TierCutoffs[i] != v {
			t.Errorf("tier_cutoffs[%d] = %v, expected %v", i, cfg.Ranking.TierCutoffs[i], v)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TENDERARB_TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("TENDERARB_SCAN_MIN_SPREAD_PCT", "2.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("Expected bot token from env, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Scan.MinSpreadPct != 2.5 {
		t.Errorf("Expected min spread from env, got %v", cfg.Scan.MinSpreadPct)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "cutoffs not decreasing",
			mutate:  func(c *Config) { c.Ranking.TierCutoffs = []float64{0.8, 0.8, 0.2, -1} },
			wantErr: "ranking.tier_cutoffs must be strictly decreasing",
		},
		{
			name:    "wrong cutoff count",
			mutate:  func(c *Config) { c.Ranking.TierCutoffs = []float64{0.8, 0.5} },
			wantErr: "ranking.tier_cutoffs must hold exactly 4 values",
		},
		{
			name:    "no workers",
			mutate:  func(c *Config) { c.Engine.Workers = 0 },
			wantErr: "engine.workers must be at least 1",
		},
		{
			name:    "zero staleness window",
			mutate:  func(c *Config) { c.Engine.PriceStalenessWindowSeconds = 0 },
			wantErr: "engine.price_staleness_window_seconds must be at least 1",
		},
		{
			name:    "unknown odd-lot policy",
			mutate:  func(c *Config) { c.Engine.OddLotPolicy = "any" },
			wantErr: "engine.odd_lot_policy must be one of",
		},
		{
			name:    "unknown dutch basis",
			mutate:  func(c *Config) { c.Engine.DutchBasis = "high" },
			wantErr: "engine.dutch_basis must be one of",
		},
		{
			name:    "rate limit above SEC fair access",
			mutate:  func(c *Config) { c.Fetch.RateLimit = 20 },
			wantErr: "fetch.rate_limit must not exceed 10",
		},
		{
			name:    "missing telegram token when enabled",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" },
			wantErr: "telegram.bot_token is required",
		},
		{
			name:    "email without recipients",
			mutate:  func(c *Config) { c.Email.Enabled = true; c.Email.SMTPServer = "smtp"; c.Email.From = "a@b" },
			wantErr: "email.from and email.to are required",
		},
		{
			name:    "kafka without brokers",
			mutate:  func(c *Config) { c.Kafka.Enabled = true },
			wantErr: "kafka.brokers must contain at least one broker",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" },
			wantErr: "schedule.timezone is invalid",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, expected %q", err, tt.wantErr)
			}
		})
	}
}
