// Package kv provides a small key value store abstraction with pluggable
// local backends selected by URL scheme.
package kv

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
)

// ErrKeyNotFound is returned by backends when a key does not exist
var ErrKeyNotFound = errors.New("kv: key not found")

// Value is a stored value
type Value struct {
	Data []byte
}

var register = struct {
	sync.RWMutex
	kvs map[string]func(string) (KV, error)
}{
	kvs: map[string]func(string) (KV, error){},
}

// Register is called by KV implementors to register their scheme to be used
// with New
func Register(name string, fn func(string) (KV, error)) {
	register.Lock()
	defer register.Unlock()

	if _, dup := register.kvs[name]; dup {
		panic("kv: Register called twice for " + name)
	}
	register.kvs[name] = fn
}

// New will return a KV implementation according to the connection string addr.
// addr is a URL where the scheme is used to determine which kv implementation to return.
func New(addr string) (KV, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	register.RLock()
	defer register.RUnlock()

	fn := register.kvs[u.Scheme]
	if fn == nil {
		return nil, fmt.Errorf("unknown kv store %s (forgotten import?)", u.Scheme)
	}
	return fn(addr)
}

// Path returns the filesystem path of a kv URL, accepting both
// scheme:///abs/path and scheme://relative/path forms
func Path(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	return u.Host + u.Path, nil
}

// KV is the interface for key value store interaction
type KV interface {
	// Delete removes key, or every key under the key prefix if recurse is set
	Delete(string, bool) error
	Get(string) (Value, error)
	// Keys returns the keys starting with a prefix, sorted
	Keys(string) ([]string, error)
	Set(string, string) error

	// IsKeyNotFound is a helper to determine if the error is a key not found error
	IsKeyNotFound(error) bool

	Close() error
}
