package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration accepts "10s" style YAML values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

type AppCfg struct {
	Env          string   `yaml:"env"`
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
	FrontendURL  string   `yaml:"frontend_url"`
	JWT          struct {
		Secret     string `yaml:"secret"`
		ExpireDays int    `yaml:"expireDays"`
	} `yaml:"jwt"`
}

type MongoCfg struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type TwilioCfg struct {
	AccountSID string `yaml:"accountSID"`
	AuthToken  string `yaml:"authToken"`
	From       string `yaml:"from"`
}

type BrevoCfg struct {
	APIKey      string `yaml:"apiKey"`
	SenderEmail string `yaml:"senderEmail"`
	SenderName  string `yaml:"senderName"`
}

type UserCfg struct {
	Collection string `yaml:"collection"`
}

type SecurityCfg struct {
	OtpTTLMinutes        int `yaml:"otpTTLMinutes"`
	ResetTTLMinutes      int `yaml:"resetTTLMinutes"`
	MaxUnverifiedRecords int `yaml:"maxUnverifiedRecords"`
}

type ReaperCfg struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
	MaxAgeMinutes   int `yaml:"maxAgeMinutes"`
}

type Config struct {
	App      AppCfg      `yaml:"app"`
	Mongo    MongoCfg    `yaml:"mongo"`
	Twilio   TwilioCfg   `yaml:"twilio"`
	Brevo    BrevoCfg    `yaml:"brevo"`
	User     UserCfg     `yaml:"user"`
	Security SecurityCfg `yaml:"security"`
	Reaper   ReaperCfg   `yaml:"reaper"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	override := func(env string, apply func(string)) {
		if v := os.Getenv(env); v != "" {
			apply(v)
		}
	}
	overrideInt := func(env string, apply func(int)) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				apply(n)
			}
		}
	}

	override("APP_ENV", func(v string) { cfg.App.Env = v })
	overrideInt("APP_PORT", func(n int) { cfg.App.Port = n })
	override("FRONTEND_URL", func(v string) { cfg.App.FrontendURL = v })
	override("JWT_SECRET", func(v string) { cfg.App.JWT.Secret = v })
	overrideInt("JWT_EXPIRE_DAYS", func(n int) { cfg.App.JWT.ExpireDays = n })
	override("MONGO_URI", func(v string) { cfg.Mongo.URI = v })
	override("MONGO_DB", func(v string) { cfg.Mongo.Database = v })
	override("TWILIO_ACCOUNT_SID", func(v string) { cfg.Twilio.AccountSID = v })
	override("TWILIO_AUTH_TOKEN", func(v string) { cfg.Twilio.AuthToken = v })
	override("TWILIO_PHONE_NUMBER", func(v string) { cfg.Twilio.From = v })
	override("BREVO_API_KEY", func(v string) { cfg.Brevo.APIKey = v })
	override("BREVO_SENDER_EMAIL", func(v string) { cfg.Brevo.SenderEmail = v })
	override("BREVO_SENDER_NAME", func(v string) { cfg.Brevo.SenderName = v })
	overrideInt("OTP_TTL_MINUTES", func(n int) { cfg.Security.OtpTTLMinutes = n })
	overrideInt("RESET_TTL_MINUTES", func(n int) { cfg.Security.ResetTTLMinutes = n })
	overrideInt("MAX_UNVERIFIED_RECORDS", func(n int) { cfg.Security.MaxUnverifiedRecords = n })
	overrideInt("REAPER_INTERVAL_MINUTES", func(n int) { cfg.Reaper.IntervalMinutes = n })
	overrideInt("REAPER_MAX_AGE_MINUTES", func(n int) { cfg.Reaper.MaxAgeMinutes = n })

	applyDefaults(cfg)

	if cfg.App.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required (set in .env or config.yaml)")
	}
	if cfg.Mongo.URI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if cfg.App.FrontendURL == "" {
		return nil, errors.New("FRONTEND_URL is required")
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 5000
	}
	if cfg.App.JWT.ExpireDays == 0 {
		cfg.App.JWT.ExpireDays = 7
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "accounts"
	}
	if cfg.User.Collection == "" {
		cfg.User.Collection = "users"
	}
	if cfg.Security.OtpTTLMinutes == 0 {
		cfg.Security.OtpTTLMinutes = 5
	}
	if cfg.Security.ResetTTLMinutes == 0 {
		cfg.Security.ResetTTLMinutes = 15
	}
	if cfg.Security.MaxUnverifiedRecords == 0 {
		cfg.Security.MaxUnverifiedRecords = 3
	}
	if cfg.Reaper.IntervalMinutes == 0 {
		cfg.Reaper.IntervalMinutes = 30
	}
	if cfg.Reaper.MaxAgeMinutes == 0 {
		cfg.Reaper.MaxAgeMinutes = 30
	}
}
