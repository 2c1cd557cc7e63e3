// Package memstore is an in-memory notification.Repository with the same state rules
// as the Postgres repository. Used by service and scheduler tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sickleave_notifier/internal/domain/notification"
)

var (
	_ notification.Repository = (*Store)(nil)
	_ notification.Transactor = (*Store)(nil)
)

type Store struct {
	mu       sync.Mutex
	messages map[uuid.UUID]notification.PlannedMessage
	events   []notification.SettlementEvent
	// FailNext, when set, is returned by the next write and then cleared.
	FailNext error
}

func New() *Store {
	return &Store{messages: make(map[uuid.UUID]notification.PlannedMessage)}
}

// RunInTx restores the previous contents when fn fails.
func (s *Store) RunInTx(_ context.Context, fn func(repo notification.Repository) error) error {
	s.mu.Lock()
	snapshot := make(map[uuid.UUID]notification.PlannedMessage, len(s.messages))
	for k, v := range s.messages {
		snapshot[k] = v
	}
	events := append([]notification.SettlementEvent(nil), s.events...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.messages, s.events = snapshot, events
		s.mu.Unlock()
		return err
	}
	return nil
}

// Put stores m as is. Test setup only.
func (s *Store) Put(msgs ...notification.PlannedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.messages[m.ID] = m
	}
}

// Get returns a copy of the message regardless of state.
func (s *Store) Get(id uuid.UUID) (notification.PlannedMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	return m, ok
}

// All returns every message ordered by start date and type.
func (s *Store) All() []notification.PlannedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(notification.PlannedMessage) bool { return true })
}

func (s *Store) Events() []notification.SettlementEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.SettlementEvent(nil), s.events...)
}

func (s *Store) FindPending(_ context.Context, id uuid.UUID) (*notification.PlannedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || !m.IsPending() {
		return nil, notification.ErrNotFound
	}
	return &m, nil
}

func (s *Store) FindByCase(_ context.Context, fnr string, startDate time.Time) ([]*notification.PlannedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pointers(s.sorted(func(m notification.PlannedMessage) bool { return m.SameCase(fnr, startDate) })), nil
}

func (s *Store) FindByPerson(_ context.Context, fnr string) ([]*notification.PlannedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pointers(s.sorted(func(m notification.PlannedMessage) bool { return m.Fnr == fnr })), nil
}

func (s *Store) CaseExists(_ context.Context, fnr string, startDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.SameCase(fnr, startDate) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) NewerCaseExists(_ context.Context, fnr string, startDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Fnr == fnr && m.StartDate.After(startDate) && !notification.SameDate(m.StartDate, startDate) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) LatestEvent(_ context.Context, fnr string, startDate time.Time) (*notification.SettlementEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *notification.SettlementEvent
	for i := range s.events {
		e := s.events[i]
		if e.Fnr != fnr || !notification.SameDate(e.StartDate, startDate) {
			continue
		}
		if latest == nil || !e.Created.Before(latest.Created) {
			latest = &e
		}
	}
	if latest == nil {
		return nil, notification.ErrEventNotFound
	}
	return latest, nil
}

func (s *Store) ListDue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := s.sorted(func(m notification.PlannedMessage) bool { return m.IsPending() && !m.SendAt.After(now) })
	sort.SliceStable(due, func(i, j int) bool { return due[i].SendAt.Before(due[j].SendAt) })
	ids := make([]uuid.UUID, 0, len(due))
	for _, m := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *Store) InsertCase(_ context.Context, event *notification.SettlementEvent, msgs []*notification.PlannedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	for _, m := range msgs {
		for _, existing := range s.messages {
			if existing.SameCase(m.Fnr, m.StartDate) && existing.Type == m.Type {
				return fmt.Errorf("duplicate planned message %s for case", m.Type)
			}
		}
	}
	s.events = append(s.events, *event)
	for _, m := range msgs {
		s.messages[m.ID] = *m
	}
	return nil
}

func (s *Store) InsertEventOnly(_ context.Context, event *notification.SettlementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *Store) Postpone(_ context.Context, id uuid.UUID, sendAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	m, ok := s.messages[id]
	if ok && m.IsPending() && m.SendAt.Before(sendAt) {
		m.SendAt = sendAt
		s.messages[id] = m
	}
	return nil
}

func (s *Store) MarkSent(_ context.Context, id uuid.UUID, at time.Time, correlationID string) error {
	return s.transition(id, func(m notification.PlannedMessage) bool { return m.IsPending() },
		func(m *notification.PlannedMessage) { m.State = notification.Sent{At: at, CorrelationID: correlationID} })
}

func (s *Store) MarkCancelled(_ context.Context, id uuid.UUID, at time.Time) error {
	return s.transition(id, func(m notification.PlannedMessage) bool { return m.IsPending() },
		func(m *notification.PlannedMessage) { m.State = notification.Cancelled{At: at} })
}

func (s *Store) Reopen(_ context.Context, id uuid.UUID, sendAt time.Time) error {
	return s.transition(id, func(m notification.PlannedMessage) bool { return m.IsCancelled() },
		func(m *notification.PlannedMessage) {
			m.State = notification.Pending{}
			m.SendAt = sendAt
		})
}

func (s *Store) CancelAllPendingForPersons(_ context.Context, fnrs []string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	wanted := make(map[string]bool, len(fnrs))
	for _, f := range fnrs {
		wanted[f] = true
	}
	var n int64
	for id, m := range s.messages {
		if wanted[m.Fnr] && m.IsPending() {
			m.State = notification.Cancelled{At: at}
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (s *Store) transition(id uuid.UUID, allowed func(notification.PlannedMessage) bool, apply func(*notification.PlannedMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	m, ok := s.messages[id]
	if !ok || !allowed(m) {
		return notification.ErrNotFound
	}
	apply(&m)
	s.messages[id] = m
	return nil
}

func (s *Store) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

var typeOrder = map[notification.Type]int{
	notification.Type4Week:  0,
	notification.Type8Week:  1,
	notification.Type39Week: 2,
	notification.TypeStop:   3,
}

func (s *Store) sorted(keep func(notification.PlannedMessage) bool) []notification.PlannedMessage {
	out := make([]notification.PlannedMessage, 0)
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return typeOrder[out[i].Type] < typeOrder[out[j].Type]
	})
	return out
}

func pointers(msgs []notification.PlannedMessage) []*notification.PlannedMessage {
	out := make([]*notification.PlannedMessage, len(msgs))
	for i := range msgs {
		out[i] = &msgs[i]
	}
	return out
}
