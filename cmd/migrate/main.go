package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"merchantpay/internal/config"
	"merchantpay/internal/db"
	"merchantpay/internal/logging"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const downMarker = "-- +migrate Down"

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	down := flag.Bool("down", false, "roll back the most recently applied migration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		logger.Fatal("failed to ensure schema_migrations", zap.Error(err))
	}

	if *down {
		if err := rollback(database, *dir, logger); err != nil {
			logger.Fatal("rollback failed", zap.Error(err))
		}
		return
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		logger.Fatal("failed to read migrations", zap.Error(err))
	}
	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			logger.Fatal("failed to read migration state", zap.Error(err))
		}
		if exists {
			continue
		}
		up, _, err := readSections(file)
		if err != nil {
			logger.Fatal("failed to read migration", zap.String("file", filename), zap.Error(err))
		}
		if err := applyInTx(database, up, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			logger.Fatal("failed to apply migration", zap.String("file", filename), zap.Error(err))
		}
		logger.Info("applied migration", zap.String("file", filename))
	}
}

func rollback(database *sqlx.DB, dir string, logger *zap.Logger) error {
	var filename string
	err := database.Get(&filename, `SELECT filename FROM schema_migrations ORDER BY filename DESC LIMIT 1`)
	if err != nil {
		return err
	}
	_, downSQL, err := readSections(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	if err := applyInTx(database, downSQL, `DELETE FROM schema_migrations WHERE filename = $1`, filename); err != nil {
		return err
	}
	logger.Info("rolled back migration", zap.String("file", filename))
	return nil
}

// applyInTx runs every statement plus the bookkeeping statement in one
// transaction so a failed migration leaves no partial schema behind.
func applyInTx(database *sqlx.DB, sqlText, bookkeeping, filename string) error {
	tx, err := database.Beginx()
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(sqlText) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(bookkeeping, filename); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func readSections(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	up, down, _ := strings.Cut(string(content), downMarker)
	return up, down, nil
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
