package settings

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Provider keeps the current settings snapshot and swaps it when the file
// changes. A failed reload keeps the previous snapshot.
type Provider struct {
	path   string
	logger *slog.Logger

	cur atomic.Pointer[Settings]
	mu  sync.Mutex // serializes reloads
}

// NewProvider loads path once. A load failure is logged and leaves the
// provider empty, so model calls report a configuration failure until a
// valid file appears.
func NewProvider(path string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{path: path, logger: logger}
	if err := p.Reload(); err != nil {
		logger.Error("settings.load.error", "path", path, "error", err)
	}
	return p
}

func (p *Provider) Current() *Settings { return p.cur.Load() }

func (p *Provider) Path() string { return p.path }

// Reload re-reads the file and publishes the new snapshot on success.
func (p *Provider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := Load(p.path)
	if err != nil {
		return err
	}
	p.cur.Store(s)
	hasPrompt := s.Prompt != nil
	p.logger.Info("settings.loaded", "path", p.path, "model", s.Model, "with_date", s.WithDate, "has_prompt", hasPrompt)
	return nil
}

// Watch reloads the settings whenever the file is written, created or
// renamed into place. It blocks until ctx is done.
func (p *Provider) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("settings.watch.create_error", "error", err)
		return err
	}
	defer func(w *fsnotify.Watcher) {
		if err := w.Close(); err != nil {
			p.logger.Warn("settings.watch.close_error", "error", err)
		}
	}(w)

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(p.path)
	if err := w.Add(dir); err != nil {
		p.logger.Error("settings.watch.add_error", "dir", dir, "error", err)
		return err
	}
	base := filepath.Base(p.path)
	p.logger.Info("settings.watch.start", "path", p.path, "debounce_ms", debounce.Milliseconds())

	var timer *time.Timer
	reload := func() {
		if err := p.Reload(); err != nil {
			p.logger.Error("settings.reload.error", "path", p.path, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			p.logger.Info("settings.watch.stop")
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return errors.New("settings watcher closed")
			}
			if filepath.Base(e.Name) != base || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce <= 0 {
				reload()
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("settings watcher closed")
			}
			p.logger.Warn("settings.watch.error", "error", err)
		}
	}
}
