package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"helmsman/internal/logger"
)

// WatchDecision 监听配置文件变更，热更新决策权重与阈值。
// Only the decision section is applied at runtime; everything else
// requires a restart.
func WatchDecision(ctx context.Context, path string, apply func(DecisionConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	// Watch the directory: editors replace files on save, which would
	// otherwise drop the watch on the inode.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					logger.Warnf("config reload rejected: %v", err)
					continue
				}
				logger.Infof("decision config reloaded: weights=%+v threshold=%.2f min_confidence=%.2f",
					cfg.Decision.Weights, cfg.Decision.Threshold, cfg.Decision.MinConfidence)
				apply(cfg.Decision)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("config watcher error: %v", err)
			}
		}
	}()
	return nil
}
