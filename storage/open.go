package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported backends for Open.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Open creates the database for backend inside dir. An empty backend selects
// LevelDB.
func Open(backend, dir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendLevelDB:
		return NewLevelDB(dir)
	case BackendBolt:
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
		return NewBoltDB(filepath.Join(dir, "state.db"))
	case BackendMemory:
		return NewMemDB(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
