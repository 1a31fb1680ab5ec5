// Package localstorage exposes the loaded page's window.localStorage as a map-like type.
//
// Every call runs a script in the page; nothing is cached.
package localstorage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrNotFound is returned by Value for keys the page does not hold
var ErrNotFound = errors.New("localStorage key not found")

// Evaluator runs a JavaScript function in the loaded page and decodes its
// JSON result into out. out may be nil when the result is not needed.
type Evaluator interface {
	Eval(ctx context.Context, out any, js string, args ...any) error
}

const (
	scriptLen   = `() => window.localStorage.length`
	scriptItems = `() => {
		const items = {};
		for (let i = 0, k; i < localStorage.length; ++i) {
			items[k = localStorage.key(i)] = localStorage.getItem(k);
		}
		return items;
	}`
	scriptKeys = `() => {
		const keys = [];
		for (let i = 0; i < localStorage.length; ++i) {
			keys[i] = localStorage.key(i);
		}
		return keys;
	}`
	scriptGet    = `(k) => localStorage.getItem(k)`
	scriptSet    = `(k, v) => localStorage.setItem(k, v)`
	scriptRemove = `(k) => window.localStorage.removeItem(k)`
	scriptClear  = `() => window.localStorage.clear()`
)

// Storage is the localStorage of whatever page the evaluator has loaded
type Storage struct {
	page Evaluator
}

// New wraps page
func New(page Evaluator) *Storage {
	return &Storage{page: page}
}

// Len returns the number of entries
func (s *Storage) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.page.Eval(ctx, &n, scriptLen); err != nil {
		return 0, fmt.Errorf("failed to read localStorage length: %w", err)
	}
	return n, nil
}

// Items returns every entry
func (s *Storage) Items(ctx context.Context) (map[string]string, error) {
	items := map[string]string{}
	if err := s.page.Eval(ctx, &items, scriptItems); err != nil {
		return nil, fmt.Errorf("failed to read localStorage items: %w", err)
	}
	return items, nil
}

// Keys returns every key in storage order
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.page.Eval(ctx, &keys, scriptKeys); err != nil {
		return nil, fmt.Errorf("failed to read localStorage keys: %w", err)
	}
	return keys, nil
}

// Get returns the value for key and whether it exists
func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	var value *string
	if err := s.page.Eval(ctx, &value, scriptGet, key); err != nil {
		return "", false, fmt.Errorf("failed to get localStorage %q: %w", key, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// Value returns the value for key, or ErrNotFound
func (s *Storage) Value(ctx context.Context, key string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return v, nil
}

// Set creates or overwrites key
func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := s.page.Eval(ctx, nil, scriptSet, key, value); err != nil {
		return fmt.Errorf("failed to set localStorage %q: %w", key, err)
	}
	return nil
}

// Has reports whether key exists
func (s *Storage) Has(ctx context.Context, key string) (bool, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(keys, key), nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.page.Eval(ctx, nil, scriptRemove, key); err != nil {
		return fmt.Errorf("failed to remove localStorage %q: %w", key, err)
	}
	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if err := s.page.Eval(ctx, nil, scriptClear); err != nil {
		return fmt.Errorf("failed to clear localStorage: %w", err)
	}
	return nil
}

// Range calls fn for each entry in key order until fn returns false
func (s *Storage) Range(ctx context.Context, fn func(key, value string) bool) error {
	items, err := s.Items(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !fn(k, items[k]) {
			return nil
		}
	}
	return nil
}

// Dump renders the current items for logging
func (s *Storage) Dump(ctx context.Context) string {
	items, err := s.Items(ctx)
	if err != nil {
		return fmt.Sprintf("localStorage(<%v>)", err)
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("localStorage{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %q", k, items[k])
	}
	b.WriteString("}")
	return b.String()
}
