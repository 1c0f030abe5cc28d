package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"stw/internal/providers"
	"stw/internal/storage/interfaces"
	"stw/internal/structures"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileStore is a file-per-key key-value store: each aggregate key maps to one
// zstd-compressed JSON file, rewritten wholesale and atomically on every
// write. Any operation error invalidates the opened state; the next call
// re-runs Init lazily (reconnect-on-next-use, no retries).
type FileStore struct {
	mu         sync.Mutex
	dir        string
	opened     bool
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileStore(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) (interfaces.StoreInterface, error) {
	fs := &FileStore{
		dir:        conf.Storage.Dir,
		compressor: compressor,
		logger:     logger,
	}
	if err := fs.Init(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Init opens the store. Idempotent; concurrent callers share the opened
// state under the mutex.
func (fs *FileStore) Init() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.ensureOpen()
}

// ensureOpen must be called with the mutex held.
func (fs *FileStore) ensureOpen() error {
	if fs.opened {
		return nil
	}
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("cannot open storage dir %s: %w", fs.dir, err)
	}
	fs.opened = true
	return nil
}

func (fs *FileStore) fileFor(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(fs.dir, key+".dat"), nil
}

func (fs *FileStore) GetItem(key string) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.ensureOpen(); err != nil {
		return nil, false, err
	}

	path, err := fs.fileFor(key)
	if err != nil {
		return nil, false, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		fs.opened = false
		return nil, false, err
	}

	data, err := fs.compressor.Decompress(raw)
	if err != nil {
		fs.opened = false
		return nil, false, fmt.Errorf("corrupt aggregate %q: %w", key, err)
	}
	return data, true, nil
}

func (fs *FileStore) SetItem(key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.ensureOpen(); err != nil {
		return err
	}

	path, err := fs.fileFor(key)
	if err != nil {
		return err
	}

	data, err := fs.compressor.Compress(value)
	if err != nil {
		return err
	}

	if err := atomicWrite(path, data); err != nil {
		fs.opened = false
		return err
	}
	return nil
}

func (fs *FileStore) RemoveItem(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.ensureOpen(); err != nil {
		return err
	}

	path, err := fs.fileFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fs.opened = false
		return err
	}
	return nil
}

// Usage sums the size of all stored aggregate files.
func (fs *FileStore) Usage() (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.ensureOpen(); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		fs.opened = false
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".dat" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// Probe verifies the storage dir is still writable.
func (fs *FileStore) Probe() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.ensureOpen(); err != nil {
		return err
	}

	probe := filepath.Join(fs.dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		fs.opened = false
		return err
	}
	return os.Remove(probe)
}

func (fs *FileStore) Close() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.opened = false
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
