package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"table-ordering/internal/domain"
)

// Config holds every parameter of the system. Values come from the YAML
// file first and are then overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	HTTP     HTTPConfig     `yaml:"http"`
	LogLevel string         `yaml:"log_level"`
	Ordering OrderingConfig `yaml:"ordering"`
	Kitchen  KitchenConfig  `yaml:"kitchen"`
	Location LocationConfig `yaml:"location"`
	Menu     []MenuSeed     `yaml:"menu"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Database string `yaml:"database" env:"NAME"`
	MaxConns int32  `yaml:"max_conns" env:"MAX_CONNS"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Database)
}

type RabbitMQConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	VHost    string `yaml:"vhost" env:"VHOST"`
	UseTLS   bool   `yaml:"tls" env:"TLS"`
}

type HTTPConfig struct {
	Addr          string        `yaml:"addr" env:"ADDR"`
	ReadTimeout   time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	MaxConcurrent int64         `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	SecureCookies bool          `yaml:"secure_cookies" env:"SECURE_COOKIES"`
}

type OrderingConfig struct {
	// Categories whose items require a variant before they can be carted.
	VariantRequiredCategories []string      `yaml:"variant_required_categories" env:"VARIANT_REQUIRED_CATEGORIES" envSeparator:","`
	PollInterval              time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	MaxSyncFailures           int           `yaml:"max_sync_failures" env:"MAX_SYNC_FAILURES"`
}

type KitchenConfig struct {
	DebounceWindow  time.Duration `yaml:"debounce_window" env:"DEBOUNCE_WINDOW"`
	Exchange        string        `yaml:"exchange" env:"EXCHANGE"`
	AnnounceBacklog bool          `yaml:"announce_backlog" env:"ANNOUNCE_BACKLOG"` // also announce orders open at board start
}

// LocationConfig is the optional geofence in front of the menu. A zero
// radius disables it.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude" env:"LATITUDE"`
	Longitude float64 `yaml:"longitude" env:"LONGITUDE"`
	RadiusM   float64 `yaml:"radius_m" env:"RADIUS_M"`
}

type MenuSeed struct {
	Name         string         `yaml:"name"`
	Category     string         `yaml:"category"`
	Price        int64          `yaml:"price"`
	SpecialPrice *int64         `yaml:"special_price"`
	Unavailable  bool           `yaml:"unavailable"`
	ImageURL     string         `yaml:"image_url"`
	Variants     []string       `yaml:"variants"`
	Extras       []domain.Extra `yaml:"extras"`
}

func (m MenuSeed) Item() domain.MenuItem {
	return domain.MenuItem{
		Name:         m.Name,
		Category:     m.Category,
		BasePrice:    m.Price,
		SpecialPrice: m.SpecialPrice,
		IsAvailable:  !m.Unavailable,
		ImageRef:     m.ImageURL,
		Variants:     m.Variants,
		Extras:       m.Extras,
	}
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "restaurant", Password: "restaurant", Database: "restaurant", MaxConns: 10},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/"},
		HTTP: HTTPConfig{
			Addr:          ":3000",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			MaxConcurrent: 50,
		},
		LogLevel: "info",
		Ordering: OrderingConfig{
			VariantRequiredCategories: []string{"noodles"},
			PollInterval:              5 * time.Second,
			MaxSyncFailures:           3,
		},
		Kitchen: KitchenConfig{DebounceWindow: 1500 * time.Millisecond, Exchange: "kitchen_alerts"},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides each section from its own variable prefix. The menu
// seed is file-only.
func (c *Config) applyEnv() error {
	sections := []struct {
		prefix string
		target any
	}{
		{"DB_", &c.Database},
		{"RABBITMQ_", &c.RabbitMQ},
		{"HTTP_", &c.HTTP},
		{"ORDERING_", &c.Ordering},
		{"KITCHEN_", &c.Kitchen},
		{"LOCATION_", &c.Location},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.target, env.Options{Prefix: s.prefix}); err != nil {
			return fmt.Errorf("config env %s*: %w", s.prefix, err)
		}
	}
	if lv, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = lv
	}
	return nil
}

// FindConfig returns the first config.yaml found in the usual places, or ""
// when there is none.
func FindConfig() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	for _, p := range []string{"config.yaml", filepath.Join("deploy", "config.yaml"), filepath.Join("deploy", "config.example.yaml"), "/etc/table-ordering/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("http.max_concurrent must be positive"))
	}
	if c.Kitchen.DebounceWindow <= 0 {
		errs = append(errs, errors.New("kitchen.debounce_window must be positive"))
	}
	if c.Ordering.PollInterval <= 0 {
		errs = append(errs, errors.New("ordering.poll_interval must be positive"))
	}
	if c.Ordering.MaxSyncFailures <= 0 {
		errs = append(errs, errors.New("ordering.max_sync_failures must be positive"))
	}
	if c.Location.RadiusM < 0 {
		errs = append(errs, errors.New("location.radius_m must not be negative"))
	}
	for i, m := range c.Menu {
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, fmt.Errorf("menu[%d]: name is required", i))
		}
		if m.Price < 0 || (m.SpecialPrice != nil && *m.SpecialPrice < 0) {
			errs = append(errs, fmt.Errorf("menu[%d]: prices must not be negative", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RequirePostgres checks the database section for modes backed by Postgres.
func (c *Config) RequirePostgres() error {
	if c.Database.Host == "" || c.Database.Port <= 0 || c.Database.Database == "" {
		return errors.New("invalid config: database host, port and name are required")
	}
	return nil
}

// RequireRabbitMQ checks the rabbitmq section for modes that use the broker.
func (c *Config) RequireRabbitMQ() error {
	if c.RabbitMQ.Host == "" || c.RabbitMQ.Port <= 0 || c.Kitchen.Exchange == "" {
		return errors.New("invalid config: rabbitmq host, port and kitchen.exchange are required")
	}
	return nil
}
