package db

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const schemaName = "orglogo"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection. An empty dsn is built from the
// environment.
func NewDB(dsn string) (*DB, error) {
	connStr := ConnString(dsn, os.Getenv)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// ConnString picks the connection string: the configured one, then
// DATABASE_URL, then a key/value string from the DB_* variables
func ConnString(configured string, getenv func(string) string) string {
	if configured != "" {
		return configured
	}
	if url := getenv("DATABASE_URL"); url != "" {
		return url
	}

	env := func(key, defaultValue string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return defaultValue
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		env("DB_HOST", "localhost"),
		env("DB_PORT", "5432"),
		env("DB_USER", "orglogo"),
		env("DB_PASSWORD", ""),
		env("DB_NAME", "orglogo"),
		env("DB_SSLMODE", "disable"),
		schemaName,
	)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema() error {
	// The schema may be provisioned by an admin; lacking CREATE is fine
	if _, err := db.conn.Exec(`CREATE SCHEMA IF NOT EXISTS ` + schemaName); err != nil {
		log.Warn().Err(err).Msg("could not create schema (may already exist)")
	}

	if _, err := db.conn.Exec(`SET search_path TO ` + schemaName); err != nil {
		return fmt.Errorf("failed to set search path: %w", err)
	}

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS requests (
			id SERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			telegram_message_id INTEGER NOT NULL,
			website TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'created',
			logo TEXT,
			error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT valid_status CHECK (status IN ('created', 'in_progress', 'done', 'failed'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create requests table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS organizations (
			website TEXT PRIMARY KEY,
			name TEXT,
			logo TEXT,
			confidence DOUBLE PRECISION,
			strategy VARCHAR(20),
			resolved_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create organizations table: %w", err)
	}

	indexes := map[string]string{
		"idx_requests_status":  `CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status)`,
		"idx_requests_user_id": `CREATE INDEX IF NOT EXISTS idx_requests_user_id ON requests(user_id)`,
	}
	for name, stmt := range indexes {
		if _, err := db.conn.Exec(stmt); err != nil {
			log.Warn().Err(err).Str("index", name).Msg("failed to create index")
		}
	}

	log.Info().Msg("database schema initialized")
	return nil
}
