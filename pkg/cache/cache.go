// Package cache stores analyzer results addressed by file content and a
// caller-chosen key, so unchanged files are not re-analyzed across runs.
//
// Entries are keyed by the SHA-256 of the file content and the SHA-1 of the
// cache key. The file path is deliberately not part of the address: files
// with identical content share entries. Analyzers whose output depends on
// the path must include it in their key.
package cache

import (
	"context"
	"crypto/sha1" //nolint:gosec // key hashing, not security sensitive.
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrIO marks failures of the cache store. They are never swallowed.
var ErrIO = errors.New("cache i/o failure")

// IOError describes a failed cache store operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrIO, e.Op, e.Path, e.Err)
}

// Unwrap exposes both ErrIO and the underlying error.
func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// Source is anything with content, typically a *model.File.
type Source interface {
	Content() string
}

// Key is the resolved address of a cache entry.
type Key struct {
	ContentHash string
	KeyHash     string
}

// NewKey derives the address of key for content.
func NewKey(content, key string) Key {
	contentSum := sha256.Sum256([]byte(content))
	keySum := sha1.Sum([]byte(key)) //nolint:gosec // see import.

	return Key{
		ContentHash: hex.EncodeToString(contentSum[:]),
		KeyHash:     hex.EncodeToString(keySum[:]),
	}
}

// Path returns the relative storage path "<2 hex>/<rest of hash>/<key hash>".
func (k Key) Path() string {
	return k.ContentHash[:2] + "/" + k.ContentHash[2:] + "/" + k.KeyHash
}

// Backend persists raw entries.
type Backend interface {
	Load(ctx context.Context, key Key) ([]byte, bool, error)
	Save(ctx context.Context, key Key, value []byte) error
}

// Cache is the analyzer-facing contract.
type Cache interface {
	// Get returns the stored value, or false on a miss.
	Get(ctx context.Context, src Source, key string) ([]byte, bool, error)
	// Store writes value, replacing any earlier entry.
	Store(ctx context.Context, src Source, key string, value []byte) error
}

// FileCache addresses a backend by file content.
type FileCache struct {
	backend Backend
}

// New returns a cache over backend.
func New(backend Backend) *FileCache {
	return &FileCache{backend: backend}
}

// Get implements Cache.
func (c *FileCache) Get(ctx context.Context, src Source, key string) ([]byte, bool, error) {
	return c.backend.Load(ctx, NewKey(src.Content(), key))
}

// Store implements Cache.
func (c *FileCache) Store(ctx context.Context, src Source, key string, value []byte) error {
	return c.backend.Save(ctx, NewKey(src.Content(), key), value)
}

// WithCache passes the cached value for (src, key) to consume. On a miss it
// calls generate, stores the result and then consumes it. Errors from
// generate are returned as is and nothing is stored.
func WithCache(
	ctx context.Context, c Cache, src Source, key string,
	generate func() ([]byte, error), consume func([]byte) error,
) error {
	value, ok, err := c.Get(ctx, src, key)
	if err != nil {
		return err
	}

	if !ok {
		value, err = generate()
		if err != nil {
			return err
		}

		err = c.Store(ctx, src, key, value)
		if err != nil {
			return err
		}
	}

	return consume(value)
}

// Null never hits and never stores. It is used when caching is disabled.
type Null struct{}

// Get implements Cache.
func (Null) Get(context.Context, Source, string) ([]byte, bool, error) { return nil, false, nil }

// Store implements Cache.
func (Null) Store(context.Context, Source, string, []byte) error { return nil }

// Observer is notified about scoped cache lookups.
type Observer interface {
	CacheHit(ctx context.Context, analyzer string)
	CacheMiss(ctx context.Context, analyzer string)
}

// Scoped namespaces keys by analyzer name and configuration fingerprint, so
// changing one analyzer's configuration invalidates only its entries.
type Scoped struct {
	inner    Cache
	analyzer string
	prefix   string
	observer Observer
}

// NewScoped wraps inner for the analyzer. observer may be nil.
func NewScoped(inner Cache, analyzer, fingerprint string, observer Observer) *Scoped {
	return &Scoped{
		inner:    inner,
		analyzer: analyzer,
		prefix:   analyzer + ":" + fingerprint + ":",
		observer: observer,
	}
}

// ScopedKey returns the key passed to the wrapped cache.
func (s *Scoped) ScopedKey(key string) string {
	return s.prefix + key
}

// Get implements Cache.
func (s *Scoped) Get(ctx context.Context, src Source, key string) ([]byte, bool, error) {
	value, ok, err := s.inner.Get(ctx, src, s.ScopedKey(key))
	if err != nil || s.observer == nil {
		return value, ok, err
	}

	if ok {
		s.observer.CacheHit(ctx, s.analyzer)
	} else {
		s.observer.CacheMiss(ctx, s.analyzer)
	}

	return value, ok, nil
}

// Store implements Cache.
func (s *Scoped) Store(ctx context.Context, src Source, key string, value []byte) error {
	return s.inner.Store(ctx, src, s.ScopedKey(key), value)
}
