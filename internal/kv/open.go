package kv

import "fmt"

// Open returns the Store for a configured driver name
func Open(driver, storeURL, path string) (Store, error) {
	switch driver {
	case "replit":
		return NewReplit(storeURL)
	case "sqlite":
		return OpenSQLite(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
