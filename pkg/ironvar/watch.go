package ironvar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of writes into a single reload.
const watchDebounce = 100 * time.Millisecond

// WatchFile keeps the variable name in sync with the trimmed contents of the
// file at path until ctx is done. The parent directory is watched so editors
// that replace the file atomically are handled. A missing file unsets the
// variable rather than failing.
func (s *Store) WatchFile(ctx context.Context, name, path string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	s.loadFile(ctx, name, abs)

	go s.processFileEvents(ctx, watcher, name, abs)

	s.logger.Info().
		Str("variable", name).
		Str("path", abs).
		Msg("Started watching variable file")

	return nil
}

func (s *Store) processFileEvents(ctx context.Context, watcher *fsnotify.Watcher, name, path string) {
	defer watcher.Close()

	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			s.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Variable file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(watchDebounce, func() {
				s.loadFile(ctx, name, path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Str("path", path).Msg("Variable file watcher error")
		}
	}
}

func (s *Store) loadFile(ctx context.Context, name, path string) {
	if ctx.Err() != nil {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := s.Unset(ctx, name); err != nil {
				s.logger.Warn().Err(err).Str("variable", name).Msg("Failed to unset variable")
			}
			return
		}
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to read variable file")
		return
	}

	if err := s.Set(ctx, name, strings.TrimSpace(string(data))); err != nil {
		s.logger.Warn().Err(err).Str("variable", name).Msg("Failed to set variable from file")
	}
}
