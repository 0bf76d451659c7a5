package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrCorrupted = errors.New("key-value file is corrupted")

// FileStore is a string-keyed map of raw JSON values persisted as a single
// JSON object on disk. It plays the role a browser's local storage plays for
// a web client: every Set rewrites the whole file.
type FileStore struct {
	filePath string
	mu       sync.Mutex
	data     map[string]json.RawMessage
}

func NewFileStore(filePath string) *FileStore {
	return &FileStore{
		filePath: filePath,
		data:     make(map[string]json.RawMessage),
	}
}

func (fs *FileStore) Path() string {
	return fs.filePath
}

// load rereads the file so edits made by another process are picked up.
// A missing file is an empty store.
func (fs *FileStore) load() error {
	raw, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			fs.data = make(map[string]json.RawMessage)
			return nil
		}
		return err
	}

	data := make(map[string]json.RawMessage)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}
	fs.data = data
	return nil
}

func (fs *FileStore) save() error {
	if dir := filepath.Dir(fs.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), filepath.Base(fs.filePath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fs.data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), fs.filePath)
}

// Get returns the raw value stored under key. ok is false when the key is
// absent. A corrupted file yields ErrCorrupted.
func (fs *FileStore) Get(key string) (value []byte, ok bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.load(); err != nil {
		return nil, false, err
	}

	v, ok := fs.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores value under key. value must be valid JSON. Other keys are kept;
// if the file is corrupted they are dropped and the file is rewritten.
func (fs *FileStore) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for key %q is not valid JSON", key)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.load(); err != nil {
		if !errors.Is(err, ErrCorrupted) {
			return err
		}
		fs.data = make(map[string]json.RawMessage)
	}

	v := make(json.RawMessage, len(value))
	copy(v, value)
	fs.data[key] = v
	return fs.save()
}

func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.load(); err != nil {
		return err
	}
	if _, ok := fs.data[key]; !ok {
		return nil
	}
	delete(fs.data, key)
	return fs.save()
}
