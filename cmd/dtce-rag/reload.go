package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
)

const reloadDebounce = 250 * time.Millisecond

// reloader swaps in a freshly built pipeline after the config file changes.
// Requests already running keep the app they loaded.
type reloader struct {
	load    func() (*config.Config, error)
	build   func(*config.Config) (*app, error)
	current *atomic.Pointer[app]
	// Grace period before a replaced app's resources are released.
	retire time.Duration
}

func (r *reloader) reload() {
	cfg, err := r.load()
	if err != nil {
		logger.Warnf("config reload: keeping current pipeline: %v", err)
		return
	}
	next, err := r.build(cfg)
	if err != nil {
		logger.Warnf("config reload: keeping current pipeline: %v", err)
		return
	}
	old := r.current.Swap(next)
	logger.Infof("config reload: pipeline rebuilt")
	if old != nil {
		time.AfterFunc(r.retire, func() { _ = old.Close() })
	}
}

// watchConfig calls onChange, debounced, whenever path is written or
// replaced. The parent directory is watched so editors that rename a temp
// file over the original are seen too.
func watchConfig(ctx context.Context, path string, onChange func()) (stop func() error, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}

	go func() {
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(reloadDebounce)
			case <-pending:
				pending = nil
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnf("config watch: %v", err)
			}
		}
	}()
	return w.Close, nil
}
