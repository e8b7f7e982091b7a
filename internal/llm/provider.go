package llm

import (
	"context"
	"fmt"
	"strings"

	"sms_crm_agent/internal/model"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewChatModel builds the provider selected by cfg. Every provider is pinned
// to temperature 0; the token budget is the fallback for calls without one.
func NewChatModel(ctx context.Context, cfg model.OracleConfig) (einomodel.BaseChatModel, error) {
	maxTokens := cfg.MaxTokens
	var temperature float32

	switch strings.ToLower(cfg.Provider) {
	case "openai", "openrouter":
		baseURL := cfg.BaseURL
		if baseURL == "" && strings.EqualFold(cfg.Provider, "openrouter") {
			baseURL = openRouterBaseURL
		}
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     baseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating openai chat model: %w", err)
		}
		return cm, nil

	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		cm, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Options: &api.Options{
				Temperature: temperature,
				NumPredict:  maxTokens,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("error creating ollama chat model: %w", err)
		}
		return cm, nil

	case "deepseek":
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating deepseek chat model: %w", err)
		}
		return cm, nil

	case "ark":
		timeout := cfg.Timeout
		cm, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Timeout:     &timeout,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating ark chat model: %w", err)
		}
		return cm, nil
	}

	return nil, fmt.Errorf("unsupported oracle provider %q", cfg.Provider)
}

// NewOracle builds the configured provider and wraps it in a ChatOracle.
func NewOracle(ctx context.Context, cfg model.OracleConfig) (*ChatOracle, error) {
	cm, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChatOracle(ctx, cm, ChatOracleConfig{
		Timeout:   cfg.Timeout,
		MaxTokens: cfg.MaxTokens,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})
}
