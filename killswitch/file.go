package killswitch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStore backs the in-memory store with a YAML snapshot on disk. State is
// loaded once at open and written through on every mutation. Persistence is
// best-effort: a failed write is logged and the in-memory toggle still takes
// effect. Watch makes the store pick up external edits to the snapshot, so
// an operator (or trialctl) can flip switches from outside the process.
type FileStore struct {
	*Memory
	path   string
	logger *slog.Logger

	writeMu sync.Mutex

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenFile opens (or initializes) a file-backed store at path. A missing
// snapshot is treated as empty state, not an error.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileStore{
		Memory: NewMemory(),
		path:   path,
		logger: logger.With("component", "killswitch", "path", path),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("killswitch: read snapshot: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("killswitch: parse snapshot: %w", err)
	}
	f.Memory.Restore(st)
	return nil
}

func (f *FileStore) DisableExperiment(service string) {
	f.Memory.DisableExperiment(service)
	f.persist()
}

func (f *FileStore) EnableExperiment(service string) {
	f.Memory.EnableExperiment(service)
	f.persist()
}

func (f *FileStore) DisableTrial(service, trial string) {
	f.Memory.DisableTrial(service, trial)
	f.persist()
}

func (f *FileStore) EnableTrial(service, trial string) {
	f.Memory.EnableTrial(service, trial)
	f.persist()
}

func (f *FileStore) Restore(st State) {
	f.Memory.Restore(st)
	f.persist()
}

// persist writes the current state to disk. Failures are logged, never
// surfaced: the in-memory state stays authoritative for dispatch.
func (f *FileStore) persist() {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	data, err := yaml.Marshal(f.Memory.State())
	if err != nil {
		f.logger.Error("marshal kill-switch snapshot", "error", err)
		return
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		f.logger.Error("write kill-switch snapshot", "error", err)
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		f.logger.Error("replace kill-switch snapshot", "error", err)
	}
}

// Watch starts reloading the store whenever the snapshot file changes on
// disk. Reloads triggered by the store's own writes are harmless: restoring
// an identical state is a no-op for readers.
func (f *FileStore) Watch() error {
	f.watchMu.Lock()
	defer f.watchMu.Unlock()
	if f.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("killswitch: watcher: %w", err)
	}
	// Watch the directory: editors and atomic renames replace the inode.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("killswitch: watch %s: %w", f.path, err)
	}

	f.watcher = watcher
	f.done = make(chan struct{})
	go f.watchLoop(watcher, f.done)
	return nil
}

func (f *FileStore) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := f.load(); err != nil {
				f.logger.Warn("reload kill-switch snapshot", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("kill-switch watcher", "error", err)
		}
	}
}

// Close stops the watcher, if started.
func (f *FileStore) Close() error {
	f.watchMu.Lock()
	defer f.watchMu.Unlock()
	if f.watcher == nil {
		return nil
	}
	close(f.done)
	err := f.watcher.Close()
	f.watcher = nil
	f.done = nil
	return err
}
