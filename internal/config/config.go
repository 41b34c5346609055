// Package config loads the YAML configuration file into an immutable snapshot
// that is built once at startup and passed explicitly to every component.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Delivery modes for transcribed text.
const (
	ModeSelf  = "self"  // send to the operator's own account
	ModeReply = "reply" // reply into the original chat
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Telegram TelegramConfig `yaml:"telegram"`
	HTTP     HTTPConfig     `yaml:"http"`
	SendRate SendRateConfig `yaml:"send_rate"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type WhatsAppConfig struct {
	SessionPath   string              `yaml:"session_path"`
	Transcription TranscriptionConfig `yaml:"transcription"`
}

// TranscriptionConfig is the sender policy plus the outbound message shape.
type TranscriptionConfig struct {
	AllowAll  bool          `yaml:"allow_all"`
	Whitelist []string      `yaml:"whitelist"`
	Blacklist []string      `yaml:"blacklist"`
	Message   MessageConfig `yaml:"message"`
}

type MessageConfig struct {
	Mode     string `yaml:"mode"`     // "self" or "reply"
	Template string `yaml:"template"` // may contain {chat}, {author}, {text}
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// TelegramConfig enables the optional transcript mirror when both fields are set.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type SendRateConfig struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

// Load reads the YAML file at path, expands ${VAR} references from the
// environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := os.Expand(string(raw), func(name string) string {
		return os.Getenv(name)
	})

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "data/messages.db"},
		WhatsApp: WhatsAppConfig{
			SessionPath: "data/session.db",
			Transcription: TranscriptionConfig{
				Message: MessageConfig{
					Mode:     ModeSelf,
					Template: "{author} @ {chat}:\n{text}",
				},
			},
		},
		HTTP:     HTTPConfig{Addr: ":8080"},
		SendRate: SendRateConfig{PerMinute: 20, Burst: 5},
	}
}

// Validate catches configuration mistakes at startup instead of per message.
func (c *Config) Validate() error {
	var errs []error

	switch c.WhatsApp.Transcription.Message.Mode {
	case ModeSelf, ModeReply:
	default:
		errs = append(errs, fmt.Errorf("unknown delivery mode %q (want %q or %q)",
			c.WhatsApp.Transcription.Message.Mode, ModeSelf, ModeReply))
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key is required"))
	}
	if c.WhatsApp.Transcription.Message.Template == "" {
		errs = append(errs, errors.New("whatsapp.transcription.message.template is required"))
	}
	if c.HTTP.Addr != "" {
		if c.HTTP.JWTSecret == "" {
			errs = append(errs, errors.New("http.jwt_secret is required when the HTTP API is enabled"))
		}
		if c.HTTP.Username == "" || c.HTTP.Password == "" {
			errs = append(errs, errors.New("http.username and http.password are required when the HTTP API is enabled"))
		}
	}
	if c.SendRate.PerMinute <= 0 || c.SendRate.Burst <= 0 {
		errs = append(errs, errors.New("send_rate.per_minute and send_rate.burst must be positive"))
	}

	return errors.Join(errs...)
}
