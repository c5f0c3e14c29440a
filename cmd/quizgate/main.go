package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quizgate/config"
	"quizgate/internal/logging"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.json"

type rootOptions struct {
	configPath string
	useEnv     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "quizgate",
		Short:         "Gate distracting apps behind quiz questions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "Path to configuration file (.json or .toml)")
	root.PersistentFlags().BoolVar(&opts.useEnv, "env", false, "Load configuration from environment variables")

	root.AddCommand(
		newServeCmd(opts),
		newRolloverCmd(opts),
		newAgentCmd(),
		newBankCmd(),
		newHashCmd(),
	)
	return root
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := logging.NewLogger(logging.LoggerConfig{
		Format:  cfg.Logging.Format,
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Service: "quizgate",
	})
	slog.SetDefault(logger)
	return logger
}
