package luainspect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the script whenever the file at path is written or
// replaced, until ctx is done. A script that fails to load is reported to the
// error logger and the previous one keeps running.
func (i *Inspector) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	path = filepath.Clean(path)
	// Watch the directory: editors often replace the file rather than
	// writing it in place.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := i.reloadFile(path); err != nil {
				i.errorLogger(err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			i.errorLogger(fmt.Errorf("watching %s: %w", path, err))
		}
	}
}

func (i *Inspector) reloadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read inspector script: %w", err)
	}
	if err := i.Reload(string(src)); err != nil {
		return fmt.Errorf("failed to reload %s: %w", path, err)
	}
	return nil
}
