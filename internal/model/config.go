package model

import "time"

// ----------------------------------------------------
// ================ Config ================

// LogConfig holds configuration for the logger
type LogConfig struct {
	Level      string `yaml:"level" split_words:"true"`
	Format     string `yaml:"format" split_words:"true"`
	Output     string `yaml:"output" split_words:"true"`
	FilePath   string `yaml:"file_path" split_words:"true"`
	TimeFormat string `yaml:"time_format" split_words:"true"`
}

// OracleConfig selects and tunes the language model provider.
type OracleConfig struct {
	Provider  string        `yaml:"provider" split_words:"true"`
	Model     string        `yaml:"model" split_words:"true"`
	BaseURL   string        `yaml:"base_url" split_words:"true"`
	APIKey    string        `yaml:"api_key" split_words:"true"`
	Timeout   time.Duration `yaml:"timeout" split_words:"true"`
	MaxTokens int           `yaml:"max_tokens" split_words:"true"`
	RateLimit float64       `yaml:"rate_limit" split_words:"true"`
	RateBurst int           `yaml:"rate_burst" split_words:"true"`
}

// ConversationConfig controls where per-sender state lives and for how long.
type ConversationConfig struct {
	Store              string        `yaml:"store" split_words:"true"`
	RedisURL           string        `yaml:"redis_url" split_words:"true"`
	KeyPrefix          string        `yaml:"key_prefix" split_words:"true"`
	TTL                time.Duration `yaml:"ttl" split_words:"true"`
	CorrectionExamples int           `yaml:"correction_examples" split_words:"true"`
	ClassifierMode     string        `yaml:"classifier_mode" split_words:"true"`
}

// StorageConfig points at the relational CRM store.
type StorageConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

// ServerConfig configures the inbound webhook.
type ServerConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
}

// NormalizeConfig tunes value normalization.
type NormalizeConfig struct {
	DefaultCountryCode string `yaml:"default_country_code" split_words:"true"`
}
