package core

import (
	"fmt"
	"os"

	"biograph/internal/infra/persistence/memory"
	"biograph/internal/infra/persistence/postgres"
	"biograph/internal/infra/persistence/sqlite"
	"biograph/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
	// Result aliases domain.Result.
	Result = domain.Result
	// Change aliases domain.Change.
	Change = domain.Change
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	BIOGRAPH_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	BIOGRAPH_SQLITE_PATH: path to sqlite file (default ./biograph.db)
//	BIOGRAPH_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("BIOGRAPH_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("BIOGRAPH_SQLITE_PATH"), engine)
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("BIOGRAPH_POSTGRES_DSN"), engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
