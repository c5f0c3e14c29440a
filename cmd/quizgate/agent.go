package main

import (
	"os"

	"quizgate/internal/clock"
	"quizgate/internal/deviceagent"
	"quizgate/internal/logging"

	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	defaults := deviceagent.DefaultConfig()
	var (
		cfg           = deviceagent.Config{}
		foregroundCmd string
		closeCmd      string
		noticeCmd     string
		logLevel      string
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the on-device agent that reports foreground apps and closes blocked ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.AgentToken == "" {
				cfg.AgentToken = os.Getenv("QUIZGATE_AGENT_TOKEN")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.NewLogger(logging.LoggerConfig{
				Format:  logFormat,
				Level:   logging.ParseLevel(logLevel),
				Service: "quizgate-agent",
			})
			logger.Info("quizgate agent starting",
				"server", cfg.ServerURL,
				"poll_interval", cfg.PollInterval,
				"grace_period", cfg.GracePeriod,
			)

			client := deviceagent.NewHTTPClient(cfg.ServerURL, cfg.AgentToken, logger)
			platform := deviceagent.NewCommandPlatform(foregroundCmd, closeCmd, noticeCmd, logger)
			enforcer := deviceagent.NewEnforcer(client, platform, clock.RealClock{}, &cfg, logger)

			enforcer.Start(cmd.Context())
			logger.Info("quizgate agent stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.ServerURL, "server", "", "quizgate base URL (required)")
	f.StringVar(&cfg.AgentToken, "token", "", "Agent token (or QUIZGATE_AGENT_TOKEN)")
	f.DurationVar(&cfg.PollInterval, "poll-interval", defaults.PollInterval, "Polling interval")
	f.DurationVar(&cfg.GracePeriod, "grace-period", defaults.GracePeriod, "How long to tolerate network errors before closing gated apps")
	f.StringVar(&foregroundCmd, "foreground-cmd", "", "Command printing the foreground app ID")
	f.StringVar(&closeCmd, "close-cmd", "", "Command closing an app; {app} is substituted")
	f.StringVar(&noticeCmd, "notice-cmd", "", "Command showing a notice; {title} and {message} are substituted")
	f.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&logFormat, "log-format", "json", "Log format: json or text")

	return cmd
}
