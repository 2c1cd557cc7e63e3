// internal/domain/notification/planned.go
package notification

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a planned message. Exactly one of
// Pending, Sent or Cancelled.
type State interface {
	isState()
}

// Pending messages still wait for activation.
type Pending struct{}

// Sent is terminal. CorrelationID links the message to its receipt.
type Sent struct {
	At            time.Time
	CorrelationID string
}

// Cancelled is terminal unless reconciliation reopens the message.
type Cancelled struct {
	At time.Time
}

func (Pending) isState()   {}
func (Sent) isState()      {}
func (Cancelled) isState() {}

// PlannedMessage is one scheduled notification for a case (Fnr + StartDate) and type.
// Corresponds to the 'planlagt_melding' table.
type PlannedMessage struct {
	ID        uuid.UUID
	Fnr       string
	StartDate time.Time // civil date, midnight UTC
	Type      Type
	Created   time.Time
	SendAt    time.Time
	State     State
}

// NewPlannedMessage creates a pending message with a fresh id.
func NewPlannedMessage(fnr string, startDate time.Time, t Type, sendAt, now time.Time) PlannedMessage {
	return PlannedMessage{
		ID:        uuid.New(),
		Fnr:       fnr,
		StartDate: startDate,
		Type:      t,
		Created:   now,
		SendAt:    sendAt,
		State:     Pending{},
	}
}

func (m PlannedMessage) IsPending() bool {
	_, ok := m.State.(Pending)
	return ok
}

func (m PlannedMessage) IsCancelled() bool {
	_, ok := m.State.(Cancelled)
	return ok
}

func (m PlannedMessage) IsSent() bool {
	_, ok := m.State.(Sent)
	return ok
}

// SameCase reports whether two messages belong to the same sick-leave case.
func (m PlannedMessage) SameCase(fnr string, startDate time.Time) bool {
	return m.Fnr == fnr && SameDate(m.StartDate, startDate)
}

// SameDate compares the civil date parts only.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
