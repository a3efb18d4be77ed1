package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"orglogo-scraper/models"
)

// Request statuses
const (
	StatusCreated    = "created"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Request represents a logo lookup queued from Telegram
type Request struct {
	ID                int
	UserID            int64
	TelegramMessageID int
	Website           string
	Status            string // "created", "in_progress", "done", "failed"
	Logo              sql.NullString
	Error             sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const requestColumns = `id, user_id, telegram_message_id, website, status, logo, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.UserID, &req.TelegramMessageID, &req.Website, &req.Status,
		&req.Logo, &req.Error, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequest queues a new lookup
func (db *DB) CreateRequest(userID int64, telegramMessageID int, website string) (*Request, error) {
	row := db.conn.QueryRow(`
		INSERT INTO requests (user_id, telegram_message_id, website, status)
		VALUES ($1, $2, $3, 'created')
		RETURNING `+requestColumns,
		userID, telegramMessageID, website)
	req, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

// ClaimNextRequest moves the oldest 'created' request to 'in_progress' and
// returns it, or nil when the queue is empty. Concurrent pollers never
// claim the same row.
func (db *DB) ClaimNextRequest() (*Request, error) {
	row := db.conn.QueryRow(`
		UPDATE requests
		SET status = 'in_progress', updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM requests
			WHERE status = 'created'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + requestColumns)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim request: %w", err)
	}
	return req, nil
}

// FinishRequest stores the outcome of a request. An empty logo with an
// empty errMsg means nothing was found.
func (db *DB) FinishRequest(requestID int, status, logo, errMsg string) error {
	_, err := db.conn.Exec(`
		UPDATE requests
		SET status = $1, logo = $2, error = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`, status, nullString(logo), nullString(errMsg), requestID)
	return err
}

// SaveOrganization upserts the logo of an organization website
func (db *DB) SaveOrganization(org models.Organization) error {
	if org.ResolvedAt.IsZero() {
		org.ResolvedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO organizations (website, name, logo, confidence, strategy, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (website) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, organizations.name),
			logo = EXCLUDED.logo,
			confidence = EXCLUDED.confidence,
			strategy = EXCLUDED.strategy,
			resolved_at = EXCLUDED.resolved_at
	`, WebsiteKey(org.Website), nullString(org.Name), nullString(org.Logo), org.Confidence, nullString(org.Strategy), org.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}
	return nil
}

// GetOrganization returns the stored organization for website, or nil
func (db *DB) GetOrganization(website string) (*models.Organization, error) {
	var org models.Organization
	var name, logo, strategy sql.NullString
	var confidence sql.NullFloat64

	err := db.conn.QueryRow(`
		SELECT website, name, logo, confidence, strategy, resolved_at
		FROM organizations
		WHERE website = $1
	`, WebsiteKey(website)).Scan(&org.Website, &name, &logo, &confidence, &strategy, &org.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	org.Name = name.String
	org.Logo = logo.String
	org.Confidence = confidence.Float64
	org.Strategy = strategy.String
	return &org, nil
}

// WebsiteKey normalizes a website for use as a primary key: lowercase host,
// no scheme, no www., no trailing slash
func WebsiteKey(website string) string {
	k := strings.ToLower(strings.TrimSpace(website))
	k = strings.TrimPrefix(k, "https://")
	k = strings.TrimPrefix(k, "http://")
	k = strings.TrimPrefix(k, "www.")
	return strings.TrimRight(k, "/")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
