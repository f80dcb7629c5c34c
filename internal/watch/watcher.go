// Package watch reloads and revalidates a local catalog document whenever it
// changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"catalogcore/pkg/domain"
)

// Session is the part of core.Service the watcher drives.
type Session interface {
	Load(ctx context.Context, data []byte) error
	Validate(ctx context.Context) (domain.Report, error)
}

// Result is the outcome of one reload.
type Result struct {
	Path   string
	Report domain.Report
	// Err is set when the file could not be read or parsed; the session then
	// keeps its previous contents.
	Err error
	At  time.Time
}

// Handler receives every reload result.
type Handler func(Result)

// Watcher observes one file.
type Watcher struct {
	path     string
	session  Session
	debounce time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New returns a watcher for path feeding session.
func New(path string, session Session, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w := &Watcher{path: abs, session: session, debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Check reloads and validates the file once.
func (w *Watcher) Check(ctx context.Context) Result {
	res := Result{Path: w.path, At: time.Now().UTC()}
	data, err := os.ReadFile(w.path)
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", w.path, err)
		return res
	}
	if err := w.session.Load(ctx, data); err != nil {
		res.Err = err
		return res
	}
	res.Report, res.Err = w.session.Validate(ctx)
	return res
}

// Run checks the file immediately and again after every change until ctx is
// done. The parent directory is watched so editors that replace the file
// by rename are followed.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	handle(w.Check(ctx))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			handle(Result{Path: w.path, Err: fmt.Errorf("watch: %w", err), At: time.Now().UTC()})
		case <-timer.C:
			if _, err := os.Stat(w.path); err != nil {
				continue
			}
			handle(w.Check(ctx))
		}
	}
}
