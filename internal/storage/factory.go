// File: internal/storage/factory.go
package storage

import (
	"fmt"
	"strings"
)

// NewStorage creates a storage instance based on the configured type
func NewStorage(config *StorageConfig) (Store, error) {
	switch strings.ToLower(config.Type) {
	case "sqlite", "sqlite3":
		return NewSQLiteStorage(config), nil
	case "postgres", "postgresql":
		return NewPostgresStorage(config), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
