package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaFS embed.FS

var requiredTables = []string{
	"audit_log",
	"rescue_operations",
}

// Service owns the sqlite connection backing the audit journal and the
// rescue ledger.
type Service struct {
	DB     *sql.DB
	DBPath string
	logger *zap.Logger
}

type Config struct {
	DBPath       string
	MaxOpenConns int
	MaxIdleConns int
	Logger       *zap.Logger
}

// DefaultConfig keeps everything in a shared in-memory database that lives
// as long as the process.
func DefaultConfig() *Config {
	return &Config{
		DBPath:       "file:overwatch?mode=memory&cache=shared",
		MaxOpenConns: 1, // SQLite doesn't handle concurrent writes well
		MaxIdleConns: 1,
	}
}

func New(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 1
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = config.MaxOpenConns
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &Service{
		DBPath: config.DBPath,
		logger: logger.Named("db"),
	}

	if !isMemory(config.DBPath) {
		if err := os.MkdirAll(filepath.Dir(config.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	// an in-memory database disappears with its last connection
	db.SetConnMaxLifetime(0)

	service.DB = db

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := service.InitializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	service.logger.Info("Database service initialized", zap.String("path", config.DBPath))
	return service, nil
}

// InitializeSchema applies the embedded schema. Statements are idempotent.
func (s *Service) InitializeSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := s.DB.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *Service) VerifySchema() error {
	for _, table := range requiredTables {
		var exists int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := s.DB.QueryRow(query, table).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if exists == 0 {
			return fmt.Errorf("required table missing: %s", table)
		}
	}

	s.logger.Debug("Schema verification successful")
	return nil
}

func (s *Service) Close() error {
	if s.DB != nil {
		s.logger.Info("Closing database connection")
		return s.DB.Close()
	}
	return nil
}

// Transaction executes a function within a database transaction
func (s *Service) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) Health() error {
	if s.DB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.DB.Ping()
}

func (s *Service) Stats() sql.DBStats {
	return s.DB.Stats()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
