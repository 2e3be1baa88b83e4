package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultMondayAPIURL  = "https://api.monday.com/v2"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultSessionTTL    = "24h"
	DefaultSweepInterval = "10m"
)

type Config struct {
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
	Twilio TwilioConfig `toml:"twilio"`
	Monday MondayConfig `toml:"monday"`
	OpenAI OpenAIConfig `toml:"openai"`
	Flow   FlowConfig   `toml:"flow"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// TwilioConfig holds WhatsApp messaging credentials. From is the sending
// number in E.164 form without the whatsapp: prefix. TemplateSID optionally
// names a content template used for the welcome message; when empty a plain
// text welcome is sent instead.
type TwilioConfig struct {
	AccountSID        string `toml:"account_sid"`
	AuthToken         string `toml:"auth_token"`
	From              string `toml:"from"`
	TemplateSID       string `toml:"template_sid"`
	ValidateSignature bool   `toml:"validate_signature"`
	// PublicBaseURL is the externally visible base URL of this service,
	// needed to reconstruct the signed URL for signature validation.
	PublicBaseURL string `toml:"public_base_url"`
}

// MondayConfig holds record store credentials and board layout. SigningSecret
// is the app signing secret used to verify webhook Authorization JWTs; when
// empty webhook auth is skipped.
type MondayConfig struct {
	APIToken         string `toml:"api_token"`
	APIURL           string `toml:"api_url"`
	BoardID          int64  `toml:"board_id"`
	IdentifierColumn string `toml:"identifier_column"`
	PhoneColumn      string `toml:"phone_column"`
	FileColumn       string `toml:"file_column"`
	SigningSecret    string `toml:"signing_secret"`
}

// OpenAIConfig enables the AI fallback responder. With an empty APIKey the
// fallback is disabled and free text during document collection is ignored.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// FlowConfig tunes the conversation engine. SessionTTL "0" disables idle
// expiry entirely.
type FlowConfig struct {
	SessionTTL    string `toml:"session_ttl"`
	SweepInterval string `toml:"sweep_interval"`
}

// ParseSessionTTL returns the idle TTL; zero means no expiry.
func (f FlowConfig) ParseSessionTTL() (time.Duration, error) {
	return parseDuration(f.SessionTTL, DefaultSessionTTL)
}

// ParseSweepInterval returns how often expired sessions are collected.
func (f FlowConfig) ParseSweepInterval() (time.Duration, error) {
	return parseDuration(f.SweepInterval, DefaultSweepInterval)
}

func parseDuration(raw, fallback string) (time.Duration, error) {
	if raw == "" {
		raw = fallback
	}
	if raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", raw)
	}
	return d, nil
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
		Monday: MondayConfig{
			APIURL: DefaultMondayAPIURL,
		},
		OpenAI: OpenAIConfig{
			BaseURL: DefaultOpenAIBaseURL,
			Model:   DefaultOpenAIModel,
		},
		Flow: FlowConfig{
			SessionTTL:    DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.validate()
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.validate()
}

// validate checks structural validity only. Missing credentials are not an
// error: each absent credential degrades its feature instead of refusing to
// start.
func (c Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Flow.ParseSessionTTL(); err != nil {
		return fmt.Errorf("invalid config: flow.session_ttl: %w", err)
	}
	if _, err := c.Flow.ParseSweepInterval(); err != nil {
		return fmt.Errorf("invalid config: flow.sweep_interval: %w", err)
	}
	return nil
}
