package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// File persists values as a single JSON document on disk. Changes made by
// other processes are picked up through a filesystem watch and dispatched
// to Watch handlers, mirroring the cross-tab notification contract of the
// in-memory backend. The store's own writes are suppressed from dispatch.
type File struct {
	path string

	lock      sync.Mutex
	snapshot  map[string]string
	watchers  map[string]map[int]ChangeHandler
	nextWatch int
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

var _ Store = (*File)(nil)

// NewFile opens (or creates) a JSON file store at path.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFile] MkdirAll")
	}
	f := &File{
		path:     path,
		watchers: make(map[string]map[int]ChangeHandler),
	}
	snapshot, err := f.load()
	if err != nil {
		return nil, err
	}
	f.snapshot = snapshot
	return f, nil
}

func (f *File) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[File.load] ReadFile")
	}
	values := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, errors.Wrap(err, "[File.load] Unmarshal")
		}
	}
	return values, nil
}

func (f *File) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[File.save] Marshal")
	}
	// Write-then-rename keeps concurrent readers off half-written files.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[File.save] WriteFile")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrap(err, "[File.save] Rename")
	}
	return nil
}

func (f *File) Get(key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	value, ok := f.snapshot[key]
	if !ok {
		return "", NotFoundErr
	}
	return value, nil
}

func (f *File) Set(key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.snapshot[key] = value
	return f.save(f.snapshot)
}

func (f *File) Delete(key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := f.snapshot[key]; !ok {
		return nil
	}
	delete(f.snapshot, key)
	return f.save(f.snapshot)
}

func (f *File) Watch(key string, handler ChangeHandler) (cancel func()) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.watcher == nil {
		if err := f.startWatcher(); err != nil {
			log.Warn().Err(err).Str("path", f.path).Msg("file store watch unavailable")
		}
	}

	if f.watchers[key] == nil {
		f.watchers[key] = make(map[int]ChangeHandler)
	}
	id := f.nextWatch
	f.nextWatch++
	f.watchers[key][id] = handler

	return func() {
		f.lock.Lock()
		defer f.lock.Unlock()
		delete(f.watchers[key], id)
	}
}

// Close stops the filesystem watcher. The store remains usable for
// Get/Set/Delete afterwards.
func (f *File) Close() error {
	f.lock.Lock()
	watcher, done := f.watcher, f.done
	f.watcher = nil
	f.lock.Unlock()

	if watcher == nil {
		return nil
	}
	// Wait outside the lock: the watch loop takes it while dispatching.
	err := watcher.Close()
	<-done
	return err
}

// startWatcher is called with f.lock held.
func (f *File) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "[File.startWatcher] NewWatcher")
	}
	// Watch the directory: editors and this store itself replace the
	// file via rename, which drops a watch on the file node.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return errors.Wrap(err, "[File.startWatcher] Add")
	}
	f.watcher = watcher
	f.done = make(chan struct{})
	go f.watchLoop(watcher, f.done)
	return nil
}

func (f *File) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			f.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", f.path).Msg("file store watch error")
		}
	}
}

// reload re-reads the file, diffs it against the in-memory snapshot and
// dispatches per-key changes. Events caused by this store's own save are
// no-ops here because the snapshot already matches the file contents.
func (f *File) reload() {
	f.lock.Lock()
	current, err := f.load()
	if err != nil {
		f.lock.Unlock()
		log.Warn().Err(err).Str("path", f.path).Msg("file store reload failed")
		return
	}

	type change struct {
		handler ChangeHandler
		key     string
		value   *string
	}
	var changes []change
	collect := func(key string, value *string) {
		for _, h := range f.watchers[key] {
			changes = append(changes, change{handler: h, key: key, value: value})
		}
	}

	for key, value := range current {
		if prev, ok := f.snapshot[key]; !ok || prev != value {
			v := value
			collect(key, &v)
		}
	}
	for key := range f.snapshot {
		if _, ok := current[key]; !ok {
			collect(key, nil)
		}
	}
	f.snapshot = current
	f.lock.Unlock()

	for _, c := range changes {
		c.handler(c.key, c.value)
	}
}
