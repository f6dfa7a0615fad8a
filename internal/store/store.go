// Package store persists keyed record collections as pretty-printed JSON
// arrays sorted by natural key.
package store

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/renameio/v2"

	"github.com/kmicac/matchsync/internal/codec"
)

// ErrCorruptState marks a persisted file that exists but cannot be decoded.
// Load still returns a usable empty collection alongside it.
var ErrCorruptState = errors.New("corrupt local state")

// Collection is an in-memory keyed view of one persisted file.
type Collection[K cmp.Ordered, T any] struct {
	key   func(T) K
	items map[K]T
}

// New returns an empty collection keyed by key.
func New[K cmp.Ordered, T any](key func(T) K) *Collection[K, T] {
	return &Collection[K, T]{key: key, items: make(map[K]T)}
}

// Get returns the stored record for k.
func (c *Collection[K, T]) Get(k K) (T, bool) {
	v, ok := c.items[k]
	return v, ok
}

// Put inserts or overwrites the record under its own key.
func (c *Collection[K, T]) Put(v T) {
	c.items[c.key(v)] = v
}

// Merge overwrites existing entries with incoming ones by key. Whether an
// incoming record should win is decided by the caller beforehand.
func (c *Collection[K, T]) Merge(incoming []T) {
	for _, v := range incoming {
		c.Put(v)
	}
}

func (c *Collection[K, T]) Len() int {
	return len(c.items)
}

// Sorted returns all records ascending by key.
func (c *Collection[K, T]) Sorted() []T {
	keys := make([]K, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.items[k])
	}
	return out
}

// Load reads path into a collection. A missing file yields an empty
// collection. Unreadable content yields an empty collection and an error
// marked with ErrCorruptState; callers log it and carry on insert-only.
func Load[K cmp.Ordered, T any](path string, key func(T) K) (*Collection[K, T], error) {
	c := New(key)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrapf(err, "read %s", path)
	}

	var items []T
	if err := codec.Unmarshal(data, &items); err != nil {
		return c, errors.Mark(errors.Wrapf(err, "decode %s", path), ErrCorruptState)
	}
	c.Merge(items)
	return c, nil
}

// Save writes the collection to path sorted by key. The file is replaced
// atomically: readers see either the old or the new content.
func Save[K cmp.Ordered, T any](path string, c *Collection[K, T]) error {
	return WriteJSON(path, c.Sorted())
}

// WriteJSON encodes v with the collection layout and atomically replaces path.
func WriteJSON(path string, v any) error {
	data, err := codec.MarshalIndent(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	// temp file in the target directory so the rename never crosses devices
	if err := renameio.WriteFile(path, data, 0o644, renameio.WithTempDir(dir)); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}

// Locks hands out one mutex per output path so two runs inside the same
// process never write the same collection at once.
type Locks struct {
	mu    sync.Mutex
	paths map[string]*sync.Mutex
}

// Lock blocks until path is free and returns the matching unlock func.
func (l *Locks) Lock(path string) func() {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	l.mu.Lock()
	if l.paths == nil {
		l.paths = make(map[string]*sync.Mutex)
	}
	m, ok := l.paths[abs]
	if !ok {
		m = &sync.Mutex{}
		l.paths[abs] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
