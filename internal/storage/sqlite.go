package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solarcraft/bosforge/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage backs every engine collaborator with a single SQLite file:
// the project field bag, the battery/inverter/BOS catalogs, company
// preferences, and utility requirements.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// Compile-time checks that the storage satisfies the engine's collaborator
// interfaces.
var (
	_ service.ProjectReader       = (*SQLiteStorage)(nil)
	_ service.ProjectWriter       = (*SQLiteStorage)(nil)
	_ service.EquipmentCatalog    = (*SQLiteStorage)(nil)
	_ service.PreferredEquipment  = (*SQLiteStorage)(nil)
	_ service.UtilityRequirements = (*SQLiteStorage)(nil)
	_ service.BatteryCatalog      = batteryCatalog{}
	_ service.InverterCatalog     = inverterCatalog{}
)

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
