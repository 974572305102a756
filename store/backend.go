// ABOUTME: Backend contract and error taxonomy for the contact store
// ABOUTME: A backend is chosen once at startup and injected into the Store
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/cardsync/models"
)

var (
	// ErrBackendUnavailable means credentials or configuration for the
	// backend are missing. List degrades to an empty set on it.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrRevisionConflict means a write was based on a stale revision.
	ErrRevisionConflict = errors.New("revision conflict")
	// ErrInvalidContact rejects records with neither a name nor a company.
	ErrInvalidContact = errors.New("contact needs a name or a company")
	// ErrRowMissing means the backend has no record for an id it was asked
	// to replace.
	ErrRowMissing = errors.New("record missing from backend")
)

// ConflictError reports the revision a write expected and the one stored.
type ConflictError struct {
	ID               string
	ExpectedRevision int64
	CurrentRevision  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("revision conflict on %s: expected %d, current %d", e.ID, e.ExpectedRevision, e.CurrentRevision)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrRevisionConflict
}

// Backend is the physical home of the canonical record set. Implementations
// need not be safe for concurrent writers; the Store serializes writes.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Load returns every stored record.
	Load(ctx context.Context) ([]models.Contact, error)
	// Insert appends a new record.
	Insert(ctx context.Context, c models.Contact) error
	// Replace overwrites the record with c.ID, or returns ErrRowMissing.
	Replace(ctx context.Context, c models.Contact) error
	// Remove deletes the record with id. A missing id is not an error.
	Remove(ctx context.Context, id string) error
	// ReplaceAll rewrites the whole record set.
	ReplaceAll(ctx context.Context, contacts []models.Contact) error
}

// Unavailable is a Backend for a store that has not been configured. Every
// operation fails with ErrBackendUnavailable and the reason.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) err() error {
	return fmt.Errorf("%w: %s", ErrBackendUnavailable, u.Reason)
}

func (u Unavailable) Load(context.Context) ([]models.Contact, error) { return nil, u.err() }
func (u Unavailable) Insert(context.Context, models.Contact) error { return u.err() }
func (u Unavailable) Replace(context.Context, models.Contact) error { return u.err() }
func (u Unavailable) Remove(context.Context, string) error { return u.err() }
func (u Unavailable) ReplaceAll(context.Context, []models.Contact) error { return u.err() }
