// Package config loads tickler settings from YAML with TICKLER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/retry"
	"gopkg.in/yaml.v3"
)

// Model providers.
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Mailers and history stores.
const (
	MailerSES   = "ses"
	MailerLog   = "log"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

const (
	DefaultPath = "tickler.yaml"
	// DefaultBedrockModel is the model ID used when none is configured.
	DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	envPrefix           = "TICKLER_"
	defaultZone         = "Europe/Oslo"
)

// Config is the full process configuration.
type Config struct {
	Model        ModelConfig    `yaml:"model"`
	Retry        retry.Policy   `yaml:"retry"`
	Dispatch     DispatchConfig `yaml:"dispatch"`
	RunTimeout   time.Duration  `yaml:"run_timeout"`
	MaxInputSize int            `yaml:"max_input_size"`
	ToolsFile    string         `yaml:"tools_file"`
	Reminder     ReminderConfig `yaml:"reminder"`
	History      HistoryConfig  `yaml:"history"`
	HTTP         HTTPConfig     `yaml:"http"`
	Tracing      TracingConfig  `yaml:"tracing"`
	Log          LogConfig      `yaml:"log"`
}

// ModelConfig selects and configures the model service.
type ModelConfig struct {
	Provider  string `yaml:"provider"`
	ID        string `yaml:"id"`
	MaxTokens int    `yaml:"max_tokens"`
	// APIKey is used by the anthropic and openai providers.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// AWS settings are used by the bedrock provider and the ses mailer.
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type DispatchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	ItemTimeout time.Duration `yaml:"item_timeout"`
}

type ReminderConfig struct {
	Timezone    string        `yaml:"timezone"`
	Sender      string        `yaml:"sender"`
	Recipient   string        `yaml:"recipient"`
	Mailer      string        `yaml:"mailer"`
	AlarmBefore time.Duration `yaml:"alarm_before"`
}

type HistoryConfig struct {
	Store         string        `yaml:"store"`
	Capacity      int           `yaml:"capacity"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	TTL           time.Duration `yaml:"ttl"`
	// RedactKeys are regular expressions matched against item parameter keys
	// (and the "input" and "summary" field names) before a record is stored.
	RedactKeys []string `yaml:"redact_keys"`
	// EncryptionKey seals stored records with AES-256-GCM when set (hex or base64).
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	APIKey          string        `yaml:"api_key"`
	ThrottleLimit   int           `yaml:"throttle_limit"`
	ThrottleBacklog int           `yaml:"throttle_backlog"`
	ThrottleTimeout time.Duration `yaml:"throttle_timeout"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:  ProviderBedrock,
			ID:        DefaultBedrockModel,
			MaxTokens: 5000,
			Region:    "eu-central-1",
		},
		Retry: retry.DefaultPolicy(),
		Dispatch: DispatchConfig{
			Concurrency: 1,
		},
		RunTimeout:   2 * time.Minute,
		MaxInputSize: domain.DefaultMaxInputSize,
		Reminder: ReminderConfig{
			Timezone: defaultZone,
			Mailer:   MailerLog,
		},
		History: HistoryConfig{
			Store:       StoreMemory,
			Capacity:    1000,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "tickler:run:",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ThrottleLimit:   10,
			ThrottleBacklog: 2,
			ThrottleTimeout: 5 * time.Second,
		},
		Tracing: TracingConfig{
			ServiceName: "tickler",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and validates.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case ProviderBedrock, ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config: model max_tokens must be positive")
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("config: dispatch concurrency must be at least 1, got %d", c.Dispatch.Concurrency)
	}
	if c.Dispatch.ItemTimeout < 0 || c.RunTimeout < 0 {
		return errors.New("config: timeouts must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Reminder.Mailer {
	case MailerSES, MailerLog:
	default:
		return fmt.Errorf("config: unknown mailer %q", c.Reminder.Mailer)
	}
	switch c.History.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("config: unknown history store %q", c.History.Store)
	}
	if c.MaxInputSize < 0 {
		return errors.New("config: max_input_size must not be negative")
	}
	if c.HTTP.ThrottleLimit < 1 || c.HTTP.ThrottleBacklog < 0 {
		return errors.New("config: http throttle limit must be positive and backlog not negative")
	}
	return nil
}

// Location resolves the reminder time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Reminder.Timezone, err)
	}
	return loc, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"MODEL_PROVIDER": &c.Model.Provider,
		"MODEL_ID":       &c.Model.ID,
		"MODEL_API_KEY":  &c.Model.APIKey,
		"MODEL_BASE_URL": &c.Model.BaseURL,
		"AWS_REGION":     &c.Model.Region,
		"TIMEZONE":       &c.Reminder.Timezone,
		"SENDER":         &c.Reminder.Sender,
		"RECIPIENT":      &c.Reminder.Recipient,
		"MAILER":         &c.Reminder.Mailer,
		"HISTORY_STORE":  &c.History.Store,
		"REDIS_ADDR":     &c.History.RedisAddr,
		"REDIS_PASSWORD": &c.History.RedisPassword,
		"HISTORY_KEY":    &c.History.EncryptionKey,
		"TOOLS_FILE":     &c.ToolsFile,
		"HTTP_ADDR":      &c.HTTP.Addr,
		"HTTP_API_KEY":   &c.HTTP.APIKey,
		"OTLP_ENDPOINT":  &c.Tracing.Endpoint,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
	}
	for name, dst := range str {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MODEL_MAX_TOKENS":     &c.Model.MaxTokens,
		"RETRY_MAX_ATTEMPTS":   &c.Retry.MaxAttempts,
		"DISPATCH_CONCURRENCY": &c.Dispatch.Concurrency,
		"MAX_INPUT_SIZE":       &c.MaxInputSize,
	}
	for name, dst := range ints {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"RUN_TIMEOUT":  &c.RunTimeout,
		"ITEM_TIMEOUT": &c.Dispatch.ItemTimeout,
	}
	for name, dst := range durations {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	// Provider-native key variables fill in when no key is configured.
	if c.Model.APIKey == "" {
		native := map[string]string{
			ProviderAnthropic: "ANTHROPIC_API_KEY",
			ProviderOpenAI:    "OPENAI_API_KEY",
		}
		if name, ok := native[c.Model.Provider]; ok {
			if v, ok := lookup(name); ok {
				c.Model.APIKey = v
			}
		}
	}
	return nil
}
