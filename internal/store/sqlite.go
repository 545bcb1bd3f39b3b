package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/carelane/carelane/internal/domain"
	"github.com/carelane/carelane/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	recordMu sync.Mutex // Mutex for call record writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		full_name TEXT,
		date_of_birth TEXT,
		conditions TEXT,
		preferred_clinic TEXT,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS call_records (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		session_id TEXT,
		clinic_name TEXT NOT NULL,
		reason TEXT NOT NULL,
		phone TEXT NOT NULL,
		final_state TEXT NOT NULL,
		transcript_json TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_call_records_user ON call_records(user_id, ended_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, full_name, date_of_birth, conditions,
		       preferred_clinic, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var fullName, dateOfBirth, conditions, preferredClinic sql.NullString
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &user.Username, &fullName, &dateOfBirth, &conditions,
		&preferredClinic, &lastSeen, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.FullName = fullName.String
	user.DateOfBirth = dateOfBirth.String
	user.Conditions = conditions.String
	user.PreferredClinic = preferredClinic.String
	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record, including profile fields.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, full_name, date_of_birth, conditions,
		preferred_clinic, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		full_name = excluded.full_name,
		date_of_birth = excluded.date_of_birth,
		conditions = excluded.conditions,
		preferred_clinic = excluded.preferred_clinic,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, nullable(user.FullName), nullable(user.DateOfBirth),
		nullable(user.Conditions), nullable(user.PreferredClinic),
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// SaveCallRecord persists a finished call with its transcript.
// Retries with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) SaveCallRecord(ctx context.Context, record *domain.CallRecord) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.saveCallRecordOnce(ctx, record)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("SaveCallRecord hit SQLITE_BUSY, retrying",
				"call_id", record.ID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("save call record %s after %d attempts: %w", record.ID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) saveCallRecordOnce(ctx context.Context, record *domain.CallRecord) error {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	transcriptJSON, err := json.Marshal(record.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	query := `
	INSERT INTO call_records (id, user_id, session_id, clinic_name, reason, phone,
		final_state, transcript_json, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		final_state = excluded.final_state,
		transcript_json = excluded.transcript_json,
		ended_at = excluded.ended_at`

	_, err = s.db.ExecContext(ctx, query,
		record.ID, nullable(record.UserID), nullable(record.SessionID), record.ClinicName, record.Reason,
		record.Phone, string(record.FinalState), string(transcriptJSON),
		record.StartedAt.Unix(), record.EndedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

// ListCallRecords returns the most recent finished calls for a user, newest first.
func (s *SQLiteStore) ListCallRecords(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error) {
	query := `
		SELECT id, user_id, session_id, clinic_name, reason, phone, final_state,
		       transcript_json, started_at, ended_at
		FROM call_records WHERE user_id = ?
		ORDER BY ended_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query call records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close call record rows", "error", closeErr)
		}
	}()

	var records []*domain.CallRecord
	for rows.Next() {
		var record domain.CallRecord
		var recordUserID, recordSessionID sql.NullString
		var finalState, transcriptJSON string
		var startedAt, endedAt int64

		if err := rows.Scan(
			&record.ID, &recordUserID, &recordSessionID, &record.ClinicName, &record.Reason,
			&record.Phone, &finalState, &transcriptJSON, &startedAt, &endedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call record row: %w", err)
		}

		record.UserID = recordUserID.String
		record.SessionID = recordSessionID.String
		record.FinalState = domain.CallState(finalState)
		record.StartedAt = time.Unix(startedAt, 0)
		record.EndedAt = time.Unix(endedAt, 0)
		if err := json.Unmarshal([]byte(transcriptJSON), &record.Transcript); err != nil {
			slog.Warn("Skipping corrupted transcript", "call_id", record.ID, "error", err)
			record.Transcript = nil
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call records: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
