// Command migrate applies or rolls back the SQL migrations of the semantic
// index against a Postgres database.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pageza/nutriplan/backend/config"
	"github.com/pageza/nutriplan/backend/internal/database"
	"github.com/pageza/nutriplan/backend/internal/logger"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

func main() {
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	migrationsDir := flag.String("dir", "migrations", "migrations directory")
	flag.Parse()

	zlog := logger.New(os.Getenv("LOG_LEVEL"), "console", !config.IsProduction())
	defer func() { _ = zlog.Sync() }()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if _, err := db.Exec(createMigrationsTable); err != nil {
		zlog.Fatal("failed to create migrations table", zap.Error(err))
	}

	if *rollback {
		if err := rollbackLast(db, *migrationsDir, zlog); err != nil {
			zlog.Fatal("rollback failed", zap.Error(err))
		}
		return
	}

	files, err := database.MigrationFiles(*migrationsDir)
	if err != nil {
		zlog.Fatal("failed to list migrations", zap.Error(err))
	}
	for _, name := range files {
		var applied bool
		if err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)", name).Scan(&applied); err != nil {
			zlog.Fatal("failed to check migration status", zap.String("name", name), zap.Error(err))
		}
		if applied {
			zlog.Info("migration already applied", zap.String("name", name))
			continue
		}

		content, err := os.ReadFile(filepath.Join(*migrationsDir, name))
		if err != nil {
			zlog.Fatal("failed to read migration", zap.String("name", name), zap.Error(err))
		}
		if err := inTx(db, string(content), "INSERT INTO schema_migrations (name) VALUES ($1)", name); err != nil {
			zlog.Fatal("failed to apply migration", zap.String("name", name), zap.Error(err))
		}
		zlog.Info("applied migration", zap.String("name", name))
	}
	zlog.Info("all migrations applied")
}

func rollbackLast(db *sql.DB, dir string, zlog *zap.Logger) error {
	var name string
	err := db.QueryRow("SELECT name FROM schema_migrations ORDER BY applied_at DESC, name DESC LIMIT 1").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		zlog.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return err
	}

	path := filepath.Join(dir, strings.TrimSuffix(name, ".sql")+"_rollback.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := inTx(db, string(content), "DELETE FROM schema_migrations WHERE name = $1", name); err != nil {
		return err
	}
	zlog.Info("rolled back migration", zap.String("name", name))
	return nil
}

// inTx runs script and then the bookkeeping statement in one transaction.
func inTx(db *sql.DB, script, record, name string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(script); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(record, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
