// internal/domain/notification/settlement.go
package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementEvent is one row of the append-only settlement ledger ('utbetalt_event').
// Always inserted, even when no planned message is created from it.
type SettlementEvent struct {
	ID            uuid.UUID
	EventType     string
	PaymentID     string
	Fnr           string
	OrgNumber     string
	StartDate     time.Time // case start date
	Fom           time.Time
	Tom           time.Time // last paid day
	ConsumedDays  int
	RemainingDays int
	MaxDate       time.Time
	Amount        decimal.Decimal
	Created       time.Time
	Payload       []byte // full event as received, for audit
}
