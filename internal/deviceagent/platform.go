package deviceagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Platform abstracts the OS operations the agent needs
type Platform interface {
	// ForegroundApp returns the identifier of the app in the foreground,
	// or "" when unknown
	ForegroundApp() (string, error)
	// CloseApp moves the app out of the foreground
	CloseApp(appID string) error
	// ShowNotice displays a short notification
	ShowNotice(title, message string) error
}

// ErrNoCommand is returned when a platform operation has no command configured
var ErrNoCommand = errors.New("no command configured")

const commandTimeout = 5 * time.Second

// CommandPlatform implements Platform by running shell commands. Every
// occurrence of {app}, {title} and {message} in an argument is substituted,
// e.g. "adb shell am force-stop {app}" on Android.
type CommandPlatform struct {
	ForegroundCmd []string
	CloseCmd      []string
	NoticeCmd     []string
	logger        *slog.Logger
}

// NewCommandPlatform creates a command-backed platform. Each command is a
// whitespace separated string; empty commands disable the operation.
func NewCommandPlatform(foreground, closeApp, notice string, logger *slog.Logger) *CommandPlatform {
	return &CommandPlatform{
		ForegroundCmd: strings.Fields(foreground),
		CloseCmd:      strings.Fields(closeApp),
		NoticeCmd:     strings.Fields(notice),
		logger:        logger.With("component", "platform"),
	}
}

// ForegroundApp runs the foreground command and returns its trimmed output
func (p *CommandPlatform) ForegroundApp() (string, error) {
	out, err := p.run(p.ForegroundCmd, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CloseApp runs the close command for appID
func (p *CommandPlatform) CloseApp(appID string) error {
	_, err := p.run(p.CloseCmd, map[string]string{"{app}": appID})
	return err
}

// ShowNotice runs the notice command. Without one the notice is only logged.
func (p *CommandPlatform) ShowNotice(title, message string) error {
	if len(p.NoticeCmd) == 0 {
		p.logger.Info("notice", "title", title, "message", message)
		return nil
	}
	_, err := p.run(p.NoticeCmd, map[string]string{"{title}": title, "{message}": message})
	return err
}

func (p *CommandPlatform) run(command []string, vars map[string]string) (string, error) {
	if len(command) == 0 {
		return "", ErrNoCommand
	}

	args := make([]string, len(command))
	for i, arg := range command {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, k, v)
		}
		args[i] = arg
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", args[0], err)
	}
	return string(out), nil
}

var _ Platform = (*CommandPlatform)(nil)
