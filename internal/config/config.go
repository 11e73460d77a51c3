package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "168h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "registrar"
	DefaultPGSSLMode         = "disable"
	DefaultUploadDir         = "uploads"
	DefaultDownloadTimeout   = "30s"
	DefaultMaxDownloads      = 8
	DefaultFFProbePath       = "ffprobe"
	DefaultSessionBackend    = "postgres"
	DefaultSessionTTL        = "168h"
	DefaultSweepSchedule     = "@every 1h"
	DefaultRedisKeyPrefix    = "registrar:session:"
	DefaultPollTimeout       = 30
	DefaultEmailProvider     = "smtp"
	DefaultSMTPPort          = 587
	DefaultDashboardURL      = "http://localhost:3000"
	DefaultAdminPasswordHint = "change-your-password-here"
)

type Config struct {
	Log          LogConfig          `toml:"log"`
	Server       ServerConfig       `toml:"server"`
	Admin        AdminConfig        `toml:"admin"`
	Auth         AuthConfig         `toml:"auth"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Redis        RedisConfig        `toml:"redis"`
	Telegram     TelegramConfig     `toml:"telegram"`
	Uploads      UploadsConfig      `toml:"uploads"`
	Registration RegistrationConfig `toml:"registration"`
	Session      SessionConfig      `toml:"session"`
	Email        EmailConfig        `toml:"email"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Email    string `toml:"email"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// ExpiresIn parses JWTExpiresIn, falling back to the default on a bad value.
func (c AuthConfig) ExpiresIn() time.Duration {
	return parseDuration(c.JWTExpiresIn, DefaultJWTExpiresIn)
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders a libpq-style URL for the pgx driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type RedisConfig struct {
	URL       string `toml:"url"`
	KeyPrefix string `toml:"key_prefix"`
}

type TelegramConfig struct {
	BotToken           string `toml:"bot_token"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
	Debug              bool   `toml:"debug"`
}

type UploadsConfig struct {
	Dir             string `toml:"dir"`
	DownloadTimeout string `toml:"download_timeout"`
	MaxDownloads    int    `toml:"max_downloads"`
	FFProbePath     string `toml:"ffprobe_path"`
}

// Timeout parses DownloadTimeout, falling back to the default on a bad value.
func (c UploadsConfig) Timeout() time.Duration {
	return parseDuration(c.DownloadTimeout, DefaultDownloadTimeout)
}

type RegistrationConfig struct {
	// AllowResubmission lets an identity that already has an application register again.
	AllowResubmission bool `toml:"allow_resubmission"`
}

type SessionConfig struct {
	// Backend is "postgres", "redis" or "memory".
	Backend       string `toml:"backend"`
	TTL           string `toml:"ttl"`
	SweepSchedule string `toml:"sweep_schedule"`
}

// IdleTTL parses TTL, falling back to the default on a bad value.
func (c SessionConfig) IdleTTL() time.Duration {
	return parseDuration(c.TTL, DefaultSessionTTL)
}

type EmailConfig struct {
	// Provider is "smtp", "mailgun" or "" to disable invitations.
	Provider     string        `toml:"provider"`
	From         string        `toml:"from"`
	DashboardURL string        `toml:"dashboard_url"`
	SMTP         SMTPConfig    `toml:"smtp"`
	Mailgun      MailgunConfig `toml:"mailgun"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Security string `toml:"security"`
}

type MailgunConfig struct {
	Domain string `toml:"domain"`
	APIKey string `toml:"api_key"`
	Region string `toml:"region"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: DefaultAdminPasswordHint,
			Email:    "admin@example.com",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			KeyPrefix: DefaultRedisKeyPrefix,
		},
		Telegram: TelegramConfig{
			PollTimeoutSeconds: DefaultPollTimeout,
		},
		Uploads: UploadsConfig{
			Dir:             DefaultUploadDir,
			DownloadTimeout: DefaultDownloadTimeout,
			MaxDownloads:    DefaultMaxDownloads,
			FFProbePath:     DefaultFFProbePath,
		},
		Session: SessionConfig{
			Backend:       DefaultSessionBackend,
			TTL:           DefaultSessionTTL,
			SweepSchedule: DefaultSweepSchedule,
		},
		Email: EmailConfig{
			Provider:     DefaultEmailProvider,
			DashboardURL: DefaultDashboardURL,
			SMTP: SMTPConfig{
				Port:     DefaultSMTPPort,
				Security: "starttls",
			},
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployment secrets override the file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.Redis.URL = v
	}
}

func parseDuration(raw, fallback string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}
