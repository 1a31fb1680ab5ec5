// Package records stores session state as typed records in a kv.Store.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shehryarbajwa/chrome-keepalive/internal/kv"
	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

// ErrMalformedRecord marks a stored value that could not be decoded
var ErrMalformedRecord = errors.New("malformed record")

// Repository reads and writes cookie and storage records
type Repository struct {
	store  kv.Store
	scheme Scheme
}

// NewRepository creates a repository over store using scheme
func NewRepository(store kv.Store, scheme Scheme) *Repository {
	if scheme == nil {
		scheme = Prefixed{}
	}
	return &Repository{store: store, scheme: scheme}
}

type cookieSlot struct {
	index int
	key   string
}

type keyIndex struct {
	cookies []cookieSlot
	storage map[string]string // storage name -> store key
}

func (r *Repository) index(ctx context.Context) (*keyIndex, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list store keys: %w", err)
	}

	idx := &keyIndex{storage: make(map[string]string)}
	for _, key := range keys {
		kind, n, name := r.scheme.Classify(key)
		switch kind {
		case KindCookie:
			idx.cookies = append(idx.cookies, cookieSlot{index: n, key: key})
		case KindStorage:
			idx.storage[name] = key
		}
	}

	sort.Slice(idx.cookies, func(i, j int) bool {
		a, b := idx.cookies[i], idx.cookies[j]
		if a.index != b.index {
			return a.index < b.index
		}
		// clamped indexes: a longer digit run is the larger number
		if len(a.key) != len(b.key) {
			return len(a.key) < len(b.key)
		}
		return a.key < b.key
	})

	return idx, nil
}

// HasCookies reports whether any cookie records exist
func (r *Repository) HasCookies(ctx context.Context) (bool, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return false, err
	}
	return len(idx.cookies) > 0, nil
}

// HasStorage reports whether any storage records exist
func (r *Repository) HasStorage(ctx context.Context) (bool, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return false, err
	}
	return len(idx.storage) > 0, nil
}

// ListCookies returns cookie records in ascending index order
func (r *Repository) ListCookies(ctx context.Context) ([]models.Cookie, error) {
	var cookies []models.Cookie
	_, err := r.EachCookie(ctx, func(c models.Cookie) error {
		cookies = append(cookies, c)
		return nil
	})
	return cookies, err
}

// EachCookie fetches cookie records in ascending index order and hands each
// to fn as it is read. It stops at the first read, decode or fn error and
// returns how many records fn accepted.
func (r *Repository) EachCookie(ctx context.Context, fn func(models.Cookie) error) (int, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return 0, err
	}

	for i, slot := range idx.cookies {
		raw, err := r.store.Get(ctx, slot.key)
		if err != nil {
			return i, fmt.Errorf("failed to read cookie record %s: %w", slot.key, err)
		}

		var c models.Cookie
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return i, fmt.Errorf("%w: cookie record %s: %v", ErrMalformedRecord, slot.key, err)
		}
		if err := fn(c); err != nil {
			return i, err
		}
	}

	return len(idx.cookies), nil
}

// ReplaceCookies deletes every cookie record and writes cookies at indexes 0..n-1.
// A failure partway leaves a mix of old and new records.
func (r *Repository) ReplaceCookies(ctx context.Context, cookies []models.Cookie) error {
	idx, err := r.index(ctx)
	if err != nil {
		return err
	}

	for _, slot := range idx.cookies {
		if err := r.store.Delete(ctx, slot.key); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete cookie record %s: %w", slot.key, err)
		}
	}

	for i, c := range cookies {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode cookie %s: %w", c.Name, err)
		}
		key := r.scheme.CookieKey(i)
		if err := r.store.Set(ctx, key, string(data)); err != nil {
			return fmt.Errorf("failed to write cookie record %s: %w", key, err)
		}
	}

	return nil
}

// ListStorage returns every storage record
func (r *Repository) ListStorage(ctx context.Context) (map[string]string, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(idx.storage))
	for name, key := range idx.storage {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read storage record %s: %w", key, err)
		}

		var value string
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("%w: storage record %s: %v", ErrMalformedRecord, key, err)
		}
		entries[name] = value
	}

	return entries, nil
}

// StorageEntries returns storage records sorted by key
func (r *Repository) StorageEntries(ctx context.Context) ([]models.StorageEntry, error) {
	m, err := r.ListStorage(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.StorageEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, models.StorageEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// UpsertStorage writes one storage record. It reports false, without error,
// when the scheme cannot represent name.
func (r *Repository) UpsertStorage(ctx context.Context, name, value string) (bool, error) {
	key, ok := r.scheme.StorageKey(name)
	if !ok {
		return false, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode storage value %s: %w", name, err)
	}
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		return false, fmt.Errorf("failed to write storage record %s: %w", key, err)
	}
	return true, nil
}
