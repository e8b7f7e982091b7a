package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sms_crm_agent/internal/model"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. CRM_ORACLE_MODEL.
const EnvPrefix = "CRM"

// Config represents the structure of config.yaml
type Config struct {
	Log          model.LogConfig          `yaml:"log" envconfig:"LOG"`
	Oracle       model.OracleConfig       `yaml:"oracle" envconfig:"ORACLE"`
	Conversation model.ConversationConfig `yaml:"conversation" envconfig:"CONVERSATION"`
	Storage      model.StorageConfig      `yaml:"storage" envconfig:"STORAGE"`
	Server       model.ServerConfig       `yaml:"server" envconfig:"SERVER"`
	Normalize    model.NormalizeConfig    `yaml:"normalize" envconfig:"NORMALIZE"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		Log: model.LogConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			FilePath:   "logs/crm.log",
			TimeFormat: "rfc3339",
		},
		Oracle: model.OracleConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			BaseURL:   "https://api.openai.com/v1",
			Timeout:   20 * time.Second,
			MaxTokens: 256,
			RateLimit: 5,
			RateBurst: 5,
		},
		Conversation: model.ConversationConfig{
			Store:              "memory",
			KeyPrefix:          "crm:session:",
			TTL:                40 * time.Minute,
			CorrectionExamples: 5,
			ClassifierMode:     "labels",
		},
		Storage: model.StorageConfig{
			Path: "data/crm.db",
		},
		Server: model.ServerConfig{
			Addr: ":8080",
		},
		Normalize: model.NormalizeConfig{
			DefaultCountryCode: "1",
		},
	}
}

// LoadConfig layers defaults, the optional YAML file at path and CRM_*
// environment variables, in that order.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("error parsing YAML: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Oracle.Provider) {
	case "openai", "openrouter", "deepseek", "ark":
		if c.Oracle.APIKey == "" {
			return fmt.Errorf("oracle provider %q requires an api key (set %s_ORACLE_API_KEY)", c.Oracle.Provider, EnvPrefix)
		}
	case "ollama":
	default:
		return fmt.Errorf("unsupported oracle provider %q", c.Oracle.Provider)
	}

	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive, got %s", c.Oracle.Timeout)
	}

	switch strings.ToLower(c.Conversation.Store) {
	case "memory":
	case "redis":
		if c.Conversation.RedisURL == "" {
			return fmt.Errorf("conversation store redis requires a url (set %s_CONVERSATION_REDIS_URL)", EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported conversation store %q", c.Conversation.Store)
	}

	switch strings.ToLower(c.Conversation.ClassifierMode) {
	case "labels", "binary":
	default:
		return fmt.Errorf("unsupported classifier mode %q", c.Conversation.ClassifierMode)
	}

	if c.Conversation.TTL <= 0 {
		return fmt.Errorf("conversation ttl must be positive, got %s", c.Conversation.TTL)
	}
	return nil
}
