package planner

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the template override file whenever it changes on disk.
// Tasks already planned keep the workflow they were generated with; only
// future submissions see the new templates. Watch returns once the watcher
// is installed; reloads happen on a background goroutine until ctx is done.
func (p *Planner) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch template file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := p.LoadFile(path); err != nil {
					// Keep serving the last good templates.
					p.logger.Warn("template reload failed, keeping previous templates: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("template watcher error: %v", err)
			}
		}
	}()

	return nil
}
