package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file whenever it changes and hands the new
// config to onChange. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	log      *slog.Logger
	debounce time.Duration
	onChange func(*Config)

	fs   *fsnotify.Watcher
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	// mu is held across onChange so Close waits for a running reload.
	mu     sync.Mutex
	closed bool
}

// NewWatcher starts watching path. The parent directory is watched so
// editors replacing the file by rename are picked up too.
func NewWatcher(path string, log *slog.Logger, onChange func(*Config)) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fs.Close()
		return nil, err
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}

	w := &Watcher{
		path:     abs,
		log:      log.With(slog.String("config", abs)),
		debounce: defaultDebounce,
		onChange: onChange,
		fs:       fs,
		stop:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.log.Error("failed to reload config", slog.Any("error", err))
		return
	}
	w.log.Info("config reloaded")
	w.onChange(cfg)
}

// Close stops watching. No reload runs onChange after Close returns.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
