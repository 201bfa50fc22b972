// Package file is a kv backend keeping every key in a single YAML document.
// It is meant for the handful of keys a single process keeps between runs.
package file

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/canonical/cloudsupport/pkg/kv"
	"gopkg.in/yaml.v3"
)

func init() {
	kv.Register("file", New)
}

type fkv struct {
	sync.Mutex
	path string
	data map[string]string
}

// New opens the YAML document at the path of addr, e.g.
// file:///var/lib/cloudsupport/state.yaml. A missing file is an empty store.
func New(addr string) (kv.KV, error) {
	path, err := kv.Path(addr)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("file kv requires a path")
	}

	f := &fkv{path: path, data: map[string]string{}}
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(buf, &f.data); err != nil {
		return nil, err
	}
	if f.data == nil {
		f.data = map[string]string{}
	}
	return f, nil
}

// save writes the document to a temporary file and renames it into place.
// Must be called with the lock held.
func (f *fkv) save() error {
	buf, err := yaml.Marshal(f.data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *fkv) Delete(key string, recurse bool) error {
	f.Lock()
	defer f.Unlock()

	if _, ok := f.data[key]; !ok && !recurse {
		return kv.ErrKeyNotFound
	}
	delete(f.data, key)
	if recurse {
		prefix := strings.TrimSuffix(key, "/") + "/"
		for k := range f.data {
			if strings.HasPrefix(k, prefix) {
				delete(f.data, k)
			}
		}
	}
	return f.save()
}

func (f *fkv) Get(key string) (kv.Value, error) {
	f.Lock()
	defer f.Unlock()

	v, ok := f.data[key]
	if !ok {
		return kv.Value{}, kv.ErrKeyNotFound
	}
	return kv.Value{Data: []byte(v)}, nil
}

func (f *fkv) Keys(prefix string) ([]string, error) {
	f.Lock()
	defer f.Unlock()

	keys := []string{}
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fkv) Set(key, value string) error {
	f.Lock()
	defer f.Unlock()

	f.data[key] = value
	return f.save()
}

func (f *fkv) IsKeyNotFound(err error) bool {
	return errors.Is(err, kv.ErrKeyNotFound)
}

func (f *fkv) Close() error {
	return nil
}
