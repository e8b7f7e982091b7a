// Package llm wraps the language model behind a small completion port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms_crm_agent/internal/logger"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

var (
	// ErrOracle marks any failed completion: transport, provider, timeout or empty reply.
	ErrOracle = errors.New("oracle call failed")
	// ErrMalformed marks a reply that could not be coerced into the requested shape.
	ErrMalformed = errors.New("malformed oracle reply")
)

// Request is one completion.
type Request struct {
	// Task names the call site, e.g. "classify" or "extract_contact".
	Task      string
	System    string
	User      string
	JSON      bool
	MaxTokens int
}

// Oracle turns a system + user prompt into text.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, req Request) (string, error)

func (f OracleFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

const jsonInstruction = "\n\nRespond with a single JSON object and nothing else."

// ChatOracle runs every request through an eino chain: chat template → chat model.
type ChatOracle struct {
	chain     compose.Runnable[map[string]any, *schema.Message]
	limiter   *rate.Limiter
	timeout   time.Duration
	maxTokens int
}

// ChatOracleConfig tunes a ChatOracle.
type ChatOracleConfig struct {
	Timeout time.Duration
	// MaxTokens is used when a request leaves its own budget at zero.
	MaxTokens int
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// NewChatOracle compiles the completion chain around cm.
func NewChatOracle(ctx context.Context, cm einomodel.BaseChatModel, cfg ChatOracleConfig) (*ChatOracle, error) {
	if cm == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}

	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(completionTemplate()).
		AppendChatModel(cm).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating Eino chain: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &ChatOracle{
		chain:     chain,
		limiter:   limiter,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Complete runs req at temperature 0 under the configured timeout.
func (o *ChatOracle) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", ErrOracle, err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	system := req.System
	if req.JSON {
		system += jsonInstruction
	}

	start := time.Now()
	msg, err := o.chain.Invoke(ctx, map[string]any{
		"system": system,
		"user":   req.User,
	}, compose.WithChatModelOption(
		einomodel.WithTemperature(0),
		einomodel.WithMaxTokens(maxTokens),
	))
	if err != nil {
		logger.Warn().Err(err).Str("task", req.Task).Dur("elapsed", time.Since(start)).Msg("oracle call failed")
		return "", fmt.Errorf("%w: %s: %v", ErrOracle, req.Task, err)
	}

	content := ""
	if msg != nil {
		content = strings.TrimSpace(msg.Content)
	}
	if content == "" {
		return "", fmt.Errorf("%w: %s: empty reply", ErrOracle, req.Task)
	}

	logger.Debug().Str("task", req.Task).Dur("elapsed", time.Since(start)).Int("reply_len", len(content)).Msg("oracle call completed")
	return content, nil
}
