package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"prdeck/internal/store"
)

// Secret names used by prdeck.
const (
	KeyGitHubToken     = "github_token"
	KeyGitHubTokenData = "github_token_data"
	KeyGeminiAPIKey    = "gemini_api_key"
)

type EntryState uint8

const (
	Unknown EntryState = iota
	Absent
	Present
)

func (s EntryState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

type Entry struct {
	State EntryState
	Value string
}

// StoreError reports a secret store failure other than not-found.
type StoreError struct {
	Op   string
	Name string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("secret store %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Cache memoizes secret lookups for one service. Reads take the memory lock
// only around map access; writes are serialized among themselves so the
// cached state always matches the last write that reached the store.
type Cache struct {
	store   store.SecretStore
	service string

	writeMu sync.Mutex

	mu       sync.RWMutex
	entries  map[string]Entry
	versions map[string]uint64
}

func NewCache(secrets store.SecretStore, service string) *Cache {
	return &Cache{
		store:    secrets,
		service:  service,
		entries:  map[string]Entry{},
		versions: map[string]uint64{},
	}
}

// Peek returns the cached entry without touching the store.
func (c *Cache) Peek(name string) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[name]
}

func (c *Cache) Get(ctx context.Context, name string) (Entry, error) {
	c.mu.RLock()
	entry := c.entries[name]
	version := c.versions[name]
	c.mu.RUnlock()
	if entry.State != Unknown {
		return entry, nil
	}

	value, err := c.store.Get(ctx, c.service, name)
	loaded := Entry{State: Present, Value: value}
	if err != nil {
		if !errors.Is(err, store.ErrSecretNotFound) {
			return Entry{}, &StoreError{Op: "get", Name: name, Err: err}
		}
		loaded = Entry{State: Absent}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[name] != version || c.entries[name].State != Unknown {
		// A write or another read-through landed while we were in the store.
		return c.entries[name], nil
	}
	c.entries[name] = loaded
	return loaded, nil
}

func (c *Cache) Set(ctx context.Context, name, value string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.store.Set(ctx, c.service, name, value); err != nil {
		return &StoreError{Op: "set", Name: name, Err: err}
	}
	c.record(name, Entry{State: Present, Value: value})
	return nil
}

func (c *Cache) Delete(ctx context.Context, name string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.store.Delete(ctx, c.service, name); err != nil && !errors.Is(err, store.ErrSecretNotFound) {
		return &StoreError{Op: "delete", Name: name, Err: err}
	}
	c.record(name, Entry{State: Absent})
	return nil
}

// Forget drops the memoized entry so the next Get reads through again.
func (c *Cache) Forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	c.versions[name]++
}

func (c *Cache) record(name string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = entry
	c.versions[name]++
}
