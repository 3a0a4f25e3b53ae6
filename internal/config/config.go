package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AQUA"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the process configuration.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Mail     MailConfig
	Alerts   AlertsConfig
	Catalog  CatalogConfig
	Log      LogConfig
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL string
}

// StorageConfig selects the repository implementation. Biotopes seeds the
// in-memory directory; it is ignored by the postgres driver.
type StorageConfig struct {
	Driver   string
	Biotopes []BiotopeSeed
}

// BiotopeSeed registers one biotope and its owner in memory mode.
type BiotopeSeed struct {
	ID         string `mapstructure:"id"`
	OwnerID    string `mapstructure:"owner_id"`
	OwnerEmail string `mapstructure:"owner_email"`
	Name       string `mapstructure:"name"`
	Kind       string `mapstructure:"kind"`
}

// MailConfig configures the SMTP transport. An empty host disables mail.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	From     string
}

// AlertsConfig configures threshold alerting.
type AlertsConfig struct {
	Cooldown      time.Duration
	SweepInterval time.Duration
	SendTimeout   time.Duration
	SettingsURL   string
	WebhookURL    string
}

// CatalogConfig points at an optional metric catalog file.
type CatalogConfig struct {
	File string
}

// LogConfig configures log output.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from path, or from AQUA_CONFIG / ./config.yaml
// when path is empty. Environment variables override file values, e.g.
// AQUA_MAIL_HOST for mail.host.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	applyDefaults(v)

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Database: DatabaseConfig{URL: v.GetString("database.url")},
		Storage:  StorageConfig{Driver: strings.ToLower(v.GetString("storage.driver"))},
		Mail: MailConfig{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			SSL:      v.GetBool("mail.ssl"),
			From:     v.GetString("mail.from"),
		},
		Alerts: AlertsConfig{
			Cooldown:      v.GetDuration("alerts.cooldown"),
			SweepInterval: v.GetDuration("alerts.sweep_interval"),
			SendTimeout:   v.GetDuration("alerts.send_timeout"),
			SettingsURL:   v.GetString("alerts.settings_url"),
			WebhookURL:    v.GetString("alerts.webhook_url"),
		},
		Catalog: CatalogConfig{File: v.GetString("catalog.file")},
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
	}
	if err := v.UnmarshalKey("storage.biotopes", &cfg.Storage.Biotopes); err != nil {
		return Config{}, fmt.Errorf("config: storage.biotopes: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("config: database.url is required for the postgres driver")
		}
	case DriverMemory:
		if err := validateSeeds(c.Storage.Biotopes); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Mail.Host != "" && c.Mail.From == "" {
		return errors.New("config: mail.from is required when mail.host is set")
	}
	if c.Alerts.Cooldown <= 0 {
		return errors.New("config: alerts.cooldown must be positive")
	}
	if c.Alerts.SweepInterval <= 0 {
		return errors.New("config: alerts.sweep_interval must be positive")
	}
	return nil
}

func validateSeeds(seeds []BiotopeSeed) error {
	seen := make(map[string]struct{}, len(seeds))
	for i, seed := range seeds {
		if seed.ID == "" || seed.OwnerID == "" {
			return fmt.Errorf("config: storage.biotopes[%d]: id and owner_id are required", i)
		}
		switch strings.ToLower(seed.Kind) {
		case "", "aquarium", "terrarium":
		default:
			return fmt.Errorf("config: storage.biotopes[%d]: unknown kind %q", i, seed.Kind)
		}
		if _, dup := seen[seed.ID]; dup {
			return fmt.Errorf("config: storage.biotopes[%d]: duplicate id %s", i, seed.ID)
		}
		seen[seed.ID] = struct{}{}
	}
	return nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("database.url", "")
	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.ssl", false)
	v.SetDefault("mail.from", "")

	v.SetDefault("alerts.cooldown", "24h")
	v.SetDefault("alerts.sweep_interval", "10m")
	v.SetDefault("alerts.send_timeout", "30s")
	v.SetDefault("alerts.settings_url", "")
	v.SetDefault("alerts.webhook_url", "")

	v.SetDefault("catalog.file", "")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}
