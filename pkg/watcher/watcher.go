// Package watcher reports changes below a directory tree, using fsnotify
// where it works and polling where it does not.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/repoview/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrRootRemoved    = errors.New("watched directory was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the callback invoked with the changed directories.
func WithOnChange(fn func(dirs []string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithIgnore sets the predicate for directory entry names that are never
// watched. The default ignores ".git".
func WithIgnore(fn func(name string) bool) WatcherOption {
	return func(w *Watcher) {
		if fn != nil {
			w.ignore = fn
		}
	}
}

// Watcher monitors a directory tree for changes.
type Watcher struct {
	root             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func([]string)
	onError          func(error)
	ignore           func(string) bool
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	lastPrint   fingerprint
	dirty       map[string]struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a watcher for the directory tree rooted at root.
func NewWatcher(root string, opts ...WatcherOption) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:             absRoot,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func([]string) {},
		onError:          func(error) {},
		ignore:           func(name string) bool { return name == ".git" },
		dirty:            make(map[string]struct{}),
		changeCh:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// Start begins watching the tree.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.root)
	if err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "watch", Path: w.root, Err: errors.New("not a directory")}
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Reset per-start state.
	w.useFallback = false
	w.forcePollEnv = envBool("RV_FORCE_POLLING") || envBool("RV_FORCE_POLL")
	w.fsType = DetectFilesystemType(w.root)
	w.dirty = make(map[string]struct{})

	forcePoll := w.forcePoll || w.forcePollEnv || isRemoteFilesystem(w.fsType)
	if !forcePoll {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err := w.addTree(fsw, w.root); err != nil {
				debug.Log("watcher: fsnotify unavailable for %s: %v", w.root, err)
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify()
			}
		} else {
			w.useFallback = true
		}
	} else {
		w.useFallback = true
	}

	if w.useFallback {
		w.lastPrint = w.fingerprint()
		go w.watchPolling()
	}

	debug.Log("watcher: watching %s (polling=%v fs=%s)", w.root, w.useFallback, w.fsType)
	w.started = true
	return nil
}

// Stop stops watching. The Changed channel stays open so a receiver blocked
// on it is not woken spuriously.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives after each debounced change.
// Call Drain to learn which directories changed; directories accumulate
// until drained.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Drain returns the directories changed since the last call, sorted.
func (w *Watcher) Drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drainLocked()
}

func (w *Watcher) drainLocked() []string {
	dirs := make([]string, 0, len(w.dirty))
	for d := range w.dirty {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	w.dirty = make(map[string]struct{})
	return dirs
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// FilesystemType returns the best-effort filesystem classification of the root.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// ignored reports whether path lies below an ignored entry.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.ignore(part) {
			return true
		}
	}
	return false
}

// addTree registers dir and every directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignore(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) markDirty(dir string) {
	w.mu.Lock()
	w.dirty[dir] = struct{}{}
	w.mu.Unlock()
}

// watchFsnotify monitors using fsnotify events.
func (w *Watcher) watchFsnotify() {
	// Capture channel references to avoid race with Stop() setting fsWatcher to nil
	w.mu.RLock()
	fsw := w.fsWatcher
	w.mu.RUnlock()
	if fsw == nil {
		return
	}

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			if event.Name == w.root && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.onError(ErrRootRemoved)
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, event.Name); err != nil {
						w.onError(err)
					}
				}
			}

			w.markDirty(filepath.Dir(event.Name))
			w.debouncer.Trigger(w.notifyChange)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// fingerprint summarizes the tree for change detection while polling.
type fingerprint struct {
	entries  int
	size     int64
	modSum   int64
	newest   int64
	rootGone bool
}

func (w *Watcher) fingerprint() fingerprint {
	var fp fingerprint
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != w.root && w.ignore(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fp.entries++
		fp.size += info.Size()
		mod := info.ModTime().UnixNano()
		fp.modSum += mod
		fp.newest = max(fp.newest, mod)
		return nil
	})
	if err != nil {
		fp.rootGone = true
	}
	if _, statErr := os.Stat(w.root); statErr != nil {
		fp.rootGone = true
	}
	return fp
}

// watchPolling monitors by walking the tree periodically. Polling cannot
// tell which directory changed, so the root is reported.
func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			fp := w.fingerprint()

			w.mu.Lock()
			prev := w.lastPrint
			w.lastPrint = fp
			w.mu.Unlock()

			if fp.rootGone {
				if !prev.rootGone {
					w.onError(ErrRootRemoved)
				}
				continue
			}
			if fp != prev {
				w.markDirty(w.root)
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.Lock()
	started := w.started
	var dirs []string
	if started {
		dirs = make([]string, 0, len(w.dirty))
		for d := range w.dirty {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
	}
	w.mu.Unlock()

	// Callbacks after Stop are skipped on a best-effort basis.
	if !started {
		return
	}

	w.onChange(dirs)

	// Non-blocking send to change channel
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
