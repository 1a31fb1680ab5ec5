package records

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Kind tells which record set a store key belongs to
type Kind int

const (
	KindNone Kind = iota
	KindCookie
	KindStorage
)

// Scheme maps typed records onto flat store keys
type Scheme interface {
	// Classify returns the kind of key, the cookie index for cookie keys
	// and the storage key for storage keys.
	Classify(key string) (kind Kind, index int, name string)
	CookieKey(index int) string
	// StorageKey returns false if name cannot be stored under this scheme.
	StorageKey(name string) (string, bool)
}

const (
	cookiePrefix  = "cookie:"
	storagePrefix = "storage:"
)

// Prefixed namespaces keys as cookie:<index> and storage:<name>
type Prefixed struct{}

func (Prefixed) Classify(key string) (Kind, int, string) {
	switch {
	case strings.HasPrefix(key, cookiePrefix):
		if n, ok := parseIndex(strings.TrimPrefix(key, cookiePrefix)); ok {
			return KindCookie, n, ""
		}
	case strings.HasPrefix(key, storagePrefix):
		if name := strings.TrimPrefix(key, storagePrefix); name != "" {
			return KindStorage, 0, name
		}
	}
	return KindNone, 0, ""
}

func (Prefixed) CookieKey(index int) string {
	return cookiePrefix + strconv.Itoa(index)
}

func (Prefixed) StorageKey(name string) (string, bool) {
	return storagePrefix + name, name != ""
}

// Legacy reads and writes the layout of stores written by the original tool:
// numeric keys are cookie slots, purely alphabetic keys are storage entries
// and everything else is ignored.
type Legacy struct{}

func (Legacy) Classify(key string) (Kind, int, string) {
	if n, ok := parseIndex(key); ok {
		return KindCookie, n, ""
	}
	if isAlpha(key) {
		return KindStorage, 0, key
	}
	return KindNone, 0, ""
}

func (Legacy) CookieKey(index int) string {
	return strconv.Itoa(index)
}

func (Legacy) StorageKey(name string) (string, bool) {
	return name, isAlpha(name)
}

// SchemeByName returns the scheme for a config value
func SchemeByName(name string) (Scheme, bool) {
	switch name {
	case "prefixed", "":
		return Prefixed{}, true
	case "legacy":
		return Legacy{}, true
	}
	return nil, false
}

// parseIndex accepts any run of ASCII digits. Indexes too large for an int
// are clamped to math.MaxInt so the slot still counts as a cookie.
func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return math.MaxInt, true
	}
	return n, true
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
