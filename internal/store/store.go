// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/botfactory/internal/domain"
)

// ErrNotFound is returned when a creation record does not exist.
var ErrNotFound = errors.New("creation record not found")

// Repository defines the interface for persisting the creation ledger.
type Repository interface {
	// RecordCreation inserts a creation record. An existing id is updated.
	RecordCreation(ctx context.Context, rec *domain.CreationRecord) error

	// UpdateAvatarStatus sets the avatar outcome of a record.
	UpdateAvatarStatus(ctx context.Context, id string, status domain.AvatarStatus) error

	// GetCreation retrieves a record by id.
	GetCreation(ctx context.Context, id string) (*domain.CreationRecord, error)

	// ListCreations returns the newest records first, at most limit.
	ListCreations(ctx context.Context, limit int) ([]*domain.CreationRecord, error)

	// CountCreations returns the number of recorded creations.
	CountCreations(ctx context.Context) (int, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
