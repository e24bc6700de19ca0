package jartoc

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"buildtools/internal/logging"
)

// watchSettle is how long the jar must stay quiet before a rebuild; jar
// writers usually emit several events per update.
const watchSettle = 250 * time.Millisecond

// Watch runs Run once and then again every time jarPath is written or
// replaced, until ctx is done. Failed runs are logged and watching goes on.
// It returns nil when ctx ends.
func (u *Updater) Watch(ctx context.Context, jarPath, tocPath, stampPath string) error {
	log := logging.OrNop(u.Logger).With(zap.String("jar", jarPath))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", jarPath, err)
	}
	defer w.Close()

	// Watch the directory: build steps usually replace the jar via rename,
	// which drops a watch on the file itself.
	target := filepath.Clean(jarPath)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", jarPath, err)
	}

	run := func() {
		if _, err := u.Run(ctx, jarPath, tocPath, stampPath); err != nil {
			log.Error("TOC update failed", zap.Error(err))
		}
	}
	run()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			log.Debug("jar event", zap.Stringer("op", ev.Op))
			settle = time.After(watchSettle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		case <-settle:
			settle = nil
			run()
		}
	}
}
