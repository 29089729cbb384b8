package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/philippspitzley/auctioneer/internal/models"
)

// EnvPrefix is prepended to every environment override, e.g. AUCTIONEER_DB_DSN
const EnvPrefix = "AUCTIONEER"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Sweeper SweeperConfig `mapstructure:"sweeper"`
	Auction AuctionConfig `mapstructure:"auction"`
	Mail    MailConfig    `mapstructure:"mail"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Mode is the gin mode: debug, release or test.
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DBConfig selects the store. An empty DSN runs on the in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// AdminConfig is the account created on startup when no user with that email exists
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuctionConfig struct {
	DefaultDuration time.Duration `mapstructure:"default_duration"`
	DefaultMinBid   string        `mapstructure:"default_min_bid"`
}

// MinBid returns DefaultMinBid as a decimal. Call Validate first.
func (a AuctionConfig) MinBid() decimal.Decimal {
	d, err := decimal.NewFromString(a.DefaultMinBid)
	if err != nil {
		return models.MinimumIncrement
	}
	return d
}

type MailConfig struct {
	// Driver is "log" or "smtp".
	Driver      string        `mapstructure:"driver"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	LoginURL    string        `mapstructure:"login_url"`
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	DedupeSize  int           `mapstructure:"dedupe_size"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.slow_query", "200ms")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "@every 15m")
	v.SetDefault("sweeper.timeout", "2m")
	v.SetDefault("auction.default_duration", "5m")
	v.SetDefault("auction.default_min_bid", "1.00")
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "noreply@auctioneer.local")
	v.SetDefault("mail.login_url", "http://localhost:8080/auth/login")
	v.SetDefault("mail.workers", 2)
	v.SetDefault("mail.queue_size", 256)
	v.SetDefault("mail.send_timeout", "10s")
	v.SetDefault("mail.dedupe_size", 1024)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret must be set"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auction.DefaultDuration <= 0 {
		errs = append(errs, errors.New("auction.default_duration must be positive"))
	}
	if d, err := decimal.NewFromString(c.Auction.DefaultMinBid); err != nil {
		errs = append(errs, fmt.Errorf("auction.default_min_bid: %w", err))
	} else if d.LessThan(models.MinimumIncrement) || !models.IsMoney(d) {
		errs = append(errs, fmt.Errorf("auction.default_min_bid must be a money amount of at least %s", models.MinimumIncrement.StringFixed(2)))
	}
	if c.Sweeper.Enabled && strings.TrimSpace(c.Sweeper.Schedule) == "" {
		errs = append(errs, errors.New("sweeper.schedule must be set when the sweeper is enabled"))
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.Port <= 0 {
			errs = append(errs, errors.New("mail.host and mail.port are required for the smtp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("mail.driver %q is not one of log, smtp", c.Mail.Driver))
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("admin.email and admin.password must be set together"))
	}
	return errors.Join(errs...)
}
