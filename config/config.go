// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the service reads at startup.
// Values come from the process environment, optionally seeded from a .env file.
type Config struct {
	Port           int
	LogMode        string
	AllowedOrigins []string

	DBDriver    string // postgres | sqlite
	DatabaseURL string

	// Shared secret the gateway presents as a Bearer token.
	ServiceToken string

	BoostTiers        string
	StarRewardCredits int64

	PublishInterval time.Duration

	RedisAddr    string
	RedisChannel string

	SyncServiceURL    string
	PaymentServiceURL string
	AuthServiceURL    string
	SyncInterval      time.Duration

	R2AccountID    string
	R2AccessKeyID  string
	R2AccessSecret string
	R2Bucket       string
	CDNBaseURL     string
}

// DefaultBoostTiers is the canonical level:cost:multiplier table, level implied by position.
const DefaultBoostTiers = "25:1.5,50:2,100:3,200:4,500:5"

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 5200)
	v.SetDefault("LOG_MODE", "dev")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("BOOST_TIERS", DefaultBoostTiers)
	v.SetDefault("STAR_REWARD_CREDITS", 1)
	v.SetDefault("PUBLISH_INTERVAL", "1m")
	v.SetDefault("REDIS_CHANNEL", "promoverse.notifications")
	v.SetDefault("SYNC_INTERVAL", "1m")
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetInt("PORT"),
		LogMode:           v.GetString("LOG_MODE"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
		DBDriver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseURL:       strings.TrimSpace(v.GetString("DATABASE_URL")),
		ServiceToken:      strings.TrimSpace(v.GetString("SERVICE_TOKEN")),
		BoostTiers:        v.GetString("BOOST_TIERS"),
		StarRewardCredits: v.GetInt64("STAR_REWARD_CREDITS"),
		PublishInterval:   v.GetDuration("PUBLISH_INTERVAL"),
		RedisAddr:         strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisChannel:      v.GetString("REDIS_CHANNEL"),
		SyncServiceURL:    strings.TrimSpace(v.GetString("SYNC_SERVICE_URL")),
		PaymentServiceURL: strings.TrimSpace(v.GetString("PAYMENT_SERVICE_URL")),
		AuthServiceURL:    strings.TrimSpace(v.GetString("AUTH_SERVICE_URL")),
		SyncInterval:      v.GetDuration("SYNC_INTERVAL"),
		R2AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
		R2AccessSecret:    v.GetString("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          v.GetString("R2_BUCKET_NAME"),
		CDNBaseURL:        v.GetString("CDN_BASE_URL"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.ServiceToken == "" {
		errs = append(errs, errors.New("SERVICE_TOKEN environment variable not set"))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.StarRewardCredits < 0 {
		errs = append(errs, errors.New("STAR_REWARD_CREDITS must not be negative"))
	}
	if c.PublishInterval <= 0 {
		errs = append(errs, errors.New("PUBLISH_INTERVAL must be positive"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// MediaEnabled reports whether R2 credentials are present.
func (c *Config) MediaEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessSecret != "" && c.R2Bucket != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
