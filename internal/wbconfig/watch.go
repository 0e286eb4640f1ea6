package wbconfig

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

// Holder provides atomic, hot-reloadable access to an AppConfig loaded
// from path. It is only used by the waybackctl serve subcommand; the
// core library does not use this package and takes a fixed
// SessionConfig at construction.
type Holder struct {
	path    string
	current atomic.Pointer[AppConfig]
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewHolder loads the initial configuration from path and returns a Holder.
func NewHolder(path string) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	h := &Holder{path: path, logger: wblog.WithComponent("wbconfig")}
	h.current.Store(&cfg)
	return h, nil
}

// Get returns the current configuration snapshot.
func (h *Holder) Get() AppConfig {
	return *h.current.Load()
}

// Watch starts watching the config file's directory for changes and
// reloads on write/create/rename events, debounced by 500ms. It returns
// immediately if path is empty. The watcher stops when ctx is canceled.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	h.watcher = watcher

	dir := filepath.Dir(h.path)
	file := filepath.Base(h.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	go h.watchLoop(ctx, file)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, file string) {
	var debounce *time.Timer
	const debounceDuration = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, h.reload)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (h *Holder) reload() {
	cfg, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping previous configuration")
		return
	}
	h.current.Store(&cfg)
	h.logger.Info().Msg("configuration reloaded")
}

// Stop stops the file watcher, if running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}
