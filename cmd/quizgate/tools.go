package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quizgate/internal/clock"
	"quizgate/internal/core"
	"quizgate/internal/quiz"
	"quizgate/internal/scheduler"
	"quizgate/internal/storage/sqlite"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newRolloverCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Reset daily counters of apps whose ledger day has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			db, err := sqlite.New(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			clk := clock.RealClock{}
			sched := scheduler.NewScheduler(core.NewLedger(db, clk, cfg.Location()), clk, 0, logger)
			n, err := sched.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled over %d app(s)\n", n)
			return nil
		},
	}
}

func newBankCmd() *cobra.Command {
	bank := &cobra.Command{
		Use:   "bank",
		Short: "Question bank tools",
	}
	bank.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Parse a bank file and report valid and skipped entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

			questions, skipped, err := quiz.LoadBankFile(args[0], logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d valid, %d skipped\n", len(questions), skipped)
			fmt.Fprintf(out, "topics: %s\n", strings.Join(quiz.NewBank(questions).Topics(), ", "))
			if len(questions) == 0 {
				return errors.New("bank contains no valid questions")
			}
			return nil
		},
	})
	return bank
}

// newHashCmd prints a bcrypt hash for the parent PIN or the agent token
func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [secret]",
		Short: "Print a bcrypt hash for parent_pin_hash or agent_token_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return errors.New("secret cannot be empty")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
