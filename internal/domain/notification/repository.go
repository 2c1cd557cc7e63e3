// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines data access for planned messages and the settlement ledger.
// No business rules live behind it.
type Repository interface {
	// FindPending returns the message only while it is still pending, ErrNotFound otherwise.
	FindPending(ctx context.Context, id uuid.UUID) (*PlannedMessage, error)
	FindByCase(ctx context.Context, fnr string, startDate time.Time) ([]*PlannedMessage, error)
	FindByPerson(ctx context.Context, fnr string) ([]*PlannedMessage, error)
	CaseExists(ctx context.Context, fnr string, startDate time.Time) (bool, error)
	// NewerCaseExists reports whether the person has a case starting after startDate.
	NewerCaseExists(ctx context.Context, fnr string, startDate time.Time) (bool, error)
	LatestEvent(ctx context.Context, fnr string, startDate time.Time) (*SettlementEvent, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	InsertCase(ctx context.Context, event *SettlementEvent, msgs []*PlannedMessage) error
	InsertEventOnly(ctx context.Context, event *SettlementEvent) error
	Postpone(ctx context.Context, id uuid.UUID, sendAt time.Time) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time, correlationID string) error
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error
	// Reopen clears the cancellation and sets a new due date.
	Reopen(ctx context.Context, id uuid.UUID, sendAt time.Time) error
	// CancelAllPendingForPersons cancels every pending message of the given persons
	// and returns how many rows changed.
	CancelAllPendingForPersons(ctx context.Context, fnrs []string, at time.Time) (int64, error)
}

// Transactor runs fn inside one datastore transaction. The repository passed to fn is
// bound to that transaction; returning an error rolls everything back.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(repo Repository) error) error
}
