package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tahcohcat/monument-narrator/internal/logger"
)

type DB struct {
	*sqlx.DB
}

// NewDB opens the sqlite database and makes sure the schema exists.
func NewDB(path string) (*DB, error) {
	if path == "" {
		path = "narrator.db"
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dbWrapper := &DB{DB: db}

	if err := dbWrapper.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.New().WithField("path", path).Debug("database ready")
	return dbWrapper, nil
}

func (db *DB) createTables() error {
	audioTable := `
	CREATE TABLE IF NOT EXISTS narration_audio_cache (
		cache_key TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		voice_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		audio BLOB NOT NULL,
		text_length INTEGER NOT NULL,
		hits INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_audio_cache_last_used ON narration_audio_cache(last_used_at);`,
		`CREATE INDEX IF NOT EXISTS idx_audio_cache_voice ON narration_audio_cache(provider, voice_id);`,
	}

	if _, err := db.Exec(audioTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
