package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type (
	// Config represents an application configuration.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Subconfigs.
		HTTPServer     HTTPServer     `yaml:"http_server"`
		JWT            JWT            `yaml:"jwt"`
		Logger         Logger         `yaml:"logger"`
		Checkout       Checkout       `yaml:"checkout"`
		Discount       Discount       `yaml:"discount"`
		Gateway        Gateway        `yaml:"gateway"`
		Reconciliation Reconciliation `yaml:"reconciliation"`
		FeatureGate    FeatureGate    `yaml:"feature_gate"`
		Notifier       Notifier       `yaml:"notifier"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
		// Upper bound for decompressed request bodies.
		MaxBodyBytes int64 `yaml:"max_body_bytes" env-default:"1048576"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb" env-default:"100"`
		MaxBackups int `yaml:"max_backups" env-default:"3"`
		MaxAgeDays int `yaml:"max_age_days" env-default:"28"`
	}
	// Config for JWT issued by the external authentication service.
	JWT struct {
		// JWT signing key shared with the authentication service.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
	}
	// Checkout pricing.
	Checkout struct {
		// Tax rate applied to the discounted subtotal, e.g. 0.19.
		TaxRate float64 `yaml:"tax_rate" env:"CHECKOUT_TAX_RATE" env-default:"0.19"`
		// Platform default currency assigned by POS checkout and reconciliation.
		DefaultCurrency string `yaml:"default_currency" env:"DEFAULT_CURRENCY" env-default:"COP"`
	}
	// Discount code generation.
	Discount struct {
		CodeLength  int `yaml:"code_length" env-default:"8"`
		MaxAttempts int `yaml:"max_attempts" env-default:"10"`
	}
	// Payment provider credentials and redirect settings.
	Gateway struct {
		PublicKey       string        `yaml:"public_key" env:"GATEWAY_PUBLIC_KEY"`
		IntegrityKey    string        `yaml:"integrity_key" env:"GATEWAY_INTEGRITY_KEY"`
		EventsSecret    string        `yaml:"events_secret" env:"GATEWAY_EVENTS_SECRET"`
		CheckoutURL     string        `yaml:"checkout_url" env:"GATEWAY_CHECKOUT_URL" env-default:"https://checkout.wompi.co/p/"`
		RedirectBaseURL string        `yaml:"redirect_base_url" env:"GATEWAY_REDIRECT_BASE_URL"`
		LinkExpiration  time.Duration `yaml:"link_expiration" env-default:"2h"`
	}
	// Reconciliation job.
	Reconciliation struct {
		// Cron spec for the scheduled scan.
		Schedule  string `yaml:"schedule" env:"RECONCILIATION_SCHEDULE" env-default:"@every 5m"`
		Workers   int    `yaml:"workers" env-default:"4"`
		QueueSize int    `yaml:"queue_size" env-default:"256"`
		BatchSize int    `yaml:"batch_size" env-default:"500"`
		// Orders processed per second across all workers.
		RatePerSecond float64 `yaml:"rate_per_second" env-default:"20"`
	}
	// External feature flag service.
	FeatureGate struct {
		// Base URL of the flag service. Static flags are used when empty.
		URL     string          `yaml:"url" env:"FEATURE_GATE_URL"`
		Timeout time.Duration   `yaml:"timeout" env-default:"2s"`
		Static  map[string]bool `yaml:"static"`
	}
	// Order event notifications.
	Notifier struct {
		// One of "kafka", "rabbitmq" or "log".
		Driver   string   `yaml:"driver" env:"NOTIFIER_DRIVER" env-default:"log"`
		Brokers  []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
		Topic    string   `yaml:"topic" env-default:"orders"`
		AMQPURL  string   `yaml:"amqp_url" env:"AMQP_URL"`
		Exchange string   `yaml:"exchange" env-default:"orders.events"`
	}
)

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	// Configuration yaml file path.
	configPath := flag.String("config", "./config/local.yml", "path to the config file")
	address := flag.String("a", "", "server startup address")
	dsn := flag.String("d", "", "server data source name")
	flag.Parse()

	// Local development convenience, missing file is fine.
	_ = godotenv.Load()

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Flags win over file and environment.
	if *address != "" {
		cfg.HTTPServer.Address = *address
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}

	return cfg
}

// Load reads the YAML file at path and then the environment.
func Load(path string) (*Config, error) {
	// Check if file exists.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks values cleanenv cannot express with tags.
func (c *Config) Validate() error {
	if c.Checkout.TaxRate < 0 || c.Checkout.TaxRate >= 1 {
		return errors.New("checkout.tax_rate must be in [0, 1)")
	}
	if _, err := entities.ParseCurrency(c.Checkout.DefaultCurrency); err != nil {
		return fmt.Errorf("checkout.default_currency: %w", err)
	}
	if c.Discount.CodeLength < 4 {
		return errors.New("discount.code_length must be at least 4")
	}
	if c.Discount.MaxAttempts < 1 {
		return errors.New("discount.max_attempts must be positive")
	}
	if c.Reconciliation.Workers < 1 || c.Reconciliation.QueueSize < 1 || c.Reconciliation.BatchSize < 1 {
		return errors.New("reconciliation workers, queue_size and batch_size must be positive")
	}
	switch c.Notifier.Driver {
	case "kafka", "rabbitmq", "log":
	default:
		return fmt.Errorf("unknown notifier driver %q", c.Notifier.Driver)
	}
	return nil
}
