// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/carelane/carelane/internal/domain"
)

// Repository defines the interface for persisting users and call records.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record, including profile fields.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// SaveCallRecord persists a finished call with its transcript.
	SaveCallRecord(ctx context.Context, record *domain.CallRecord) error

	// ListCallRecords returns the most recent finished calls for a user,
	// newest first.
	ListCallRecords(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
