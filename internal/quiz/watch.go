package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"quizgate/internal/core"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// BankWatcher reloads a bank file into a Bank whenever it changes on disk
type BankWatcher struct {
	path     string
	bank     *Bank
	onReload func([]*core.Question)
	logger   *slog.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewBankWatcher creates a watcher for path. onReload, if set, receives every
// successfully loaded set of questions.
func NewBankWatcher(path string, bank *Bank, onReload func([]*core.Question), logger *slog.Logger) *BankWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BankWatcher{
		path:     path,
		bank:     bank,
		onReload: onReload,
		logger:   logger.With("component", "bank-watcher"),
	}
}

// Run watches the bank file until ctx is cancelled
func (w *BankWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory
	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	w.logger.Info("watching question bank", "path", absPath)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("bank watcher error", "error", err)
		}
	}
}

func (w *BankWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(reloadDebounce, func() {
		w.Reload()
	})
}

// Reload loads the bank file now. A file without any valid question leaves
// the current bank in place.
func (w *BankWatcher) Reload() error {
	questions, skipped, err := LoadBankFile(w.path, w.logger)
	if err != nil {
		w.logger.Error("failed to reload question bank", "path", w.path, "error", err)
		return err
	}
	if len(questions) == 0 {
		w.logger.Warn("reloaded question bank is empty, keeping previous bank",
			"path", w.path,
			"skipped", skipped,
		)
		return nil
	}

	w.bank.Replace(questions)
	w.logger.Info("question bank reloaded",
		"path", w.path,
		"questions", len(questions),
		"skipped", skipped,
	)

	if w.onReload != nil {
		w.onReload(questions)
	}
	return nil
}
