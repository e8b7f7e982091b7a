// Package cli implements the crm command line: the webhook server, a local
// chat loop and maintenance commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"sms_crm_agent/internal/agent"
	"sms_crm_agent/internal/classify"
	"sms_crm_agent/internal/config"
	"sms_crm_agent/internal/conversation"
	"sms_crm_agent/internal/llm"
	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/storage"
	"sms_crm_agent/internal/storage/sqlite"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

// newOracle is swapped in tests.
var newOracle = func(ctx context.Context, cfg *config.Config) (llm.Oracle, error) {
	return llm.NewOracle(ctx, cfg.Oracle)
}

var rootCmd = &cobra.Command{
	Use:           "crm",
	Short:         "SMS driven personal CRM assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads .env (if any), the config file and the environment, then
// initializes logging.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// app is everything a command needs to process messages.
type app struct {
	repo      storage.Repository
	sessions  conversation.Store
	processor *agent.Processor
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("error during shutdown")
		}
	}
}

// openApp wires storage, the session store and the oracle. With inMemory
// set nothing touches disk.
func openApp(ctx context.Context, cfg *config.Config, inMemory bool) (*app, error) {
	rt := &app{}

	if inMemory {
		rt.repo = storage.NewMemory(nil)
	} else {
		store, err := sqlite.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		rt.repo = store
		rt.closers = append(rt.closers, store.Close)
	}

	switch cfg.Conversation.Store {
	case "redis":
		sessions, err := conversation.NewRedisStore(ctx, cfg.Conversation.RedisURL, cfg.Conversation.KeyPrefix, cfg.Conversation.TTL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.sessions = sessions
		rt.closers = append(rt.closers, sessions.Close)
	default:
		rt.sessions = conversation.NewMemoryStore(cfg.Conversation.TTL)
	}

	oracle, err := newOracle(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create oracle: %w", err)
	}

	rt.processor, err = agent.Build(oracle, rt.repo, rt.sessions, agent.Options{
		ClassifierMode:     classify.Mode(cfg.Conversation.ClassifierMode),
		CorrectionExamples: cfg.Conversation.CorrectionExamples,
		CountryCode:        cfg.Normalize.DefaultCountryCode,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
