package core

import (
	"fmt"

	"ranchcore/internal/config"
	"ranchcore/internal/infra/persistence/memory"
	"ranchcore/internal/infra/persistence/postgres"
	"ranchcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend from the storage configuration.
func OpenPersistentStore(cfg config.StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	switch StorageDriver(cfg.Driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
