package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ridgeline/intranet/pkg/observability"
)

// LoadAdminList reads an admin email list file: one email per line, blank
// lines and #-comments ignored.
func LoadAdminList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open admin list: %w", err)
	}
	defer f.Close()

	var emails []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emails = append(emails, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read admin list: %w", err)
	}
	return emails, nil
}

// WatchAdminList reloads the admin email list whenever the file changes,
// until ctx is cancelled. The parent directory is watched rather than the
// file itself so atomic rename-in-place updates are seen.
func WatchAdminList(ctx context.Context, path string, svc *Service, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			emails, err := LoadAdminList(path)
			if err != nil {
				logger.WithError(err).Warn("failed to reload admin list")
				continue
			}
			svc.SetAdminEmails(emails)
			logger.WithField("admins", len(emails)).Info("reloaded admin list")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("admin list watcher error")
		}
	}
}
