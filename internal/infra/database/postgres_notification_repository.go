// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array

	"sickleave_notifier/internal/domain/notification"
)

const plannedColumns = `id, fnr, startdato, type, opprettet, sendes, avbrutt, sendt, jmscorrelationid`

const eventColumns = `id, event_type, utbetaling_id, fnr, orgnummer, startdato, fom, tom,
               forbrukte_sykedager, gjenstaende_sykedager, maksdato, belop, opprettet, payload`

type PostgresNotificationRepository struct {
	db dbtx
}

func NewPostgresNotificationRepository(db dbtx) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlannedMessage(row rowScanner) (*notification.PlannedMessage, error) {
	var (
		m             notification.PlannedMessage
		typ           string
		cancelled     sql.NullTime
		sent          sql.NullTime
		correlationID sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Fnr, &m.StartDate, &typ, &m.Created, &m.SendAt, &cancelled, &sent, &correlationID); err != nil {
		return nil, err
	}
	t, err := notification.ParseType(typ)
	if err != nil {
		return nil, err
	}
	m.Type = t
	m.StartDate = civil(m.StartDate)

	switch {
	case cancelled.Valid && sent.Valid:
		return nil, fmt.Errorf("planned message %s: %w", m.ID, notification.ErrInconsistentState)
	case sent.Valid:
		m.State = notification.Sent{At: sent.Time, CorrelationID: correlationID.String}
	case cancelled.Valid:
		m.State = notification.Cancelled{At: cancelled.Time}
	default:
		m.State = notification.Pending{}
	}
	return &m, nil
}

func scanPlannedMessages(rows *sql.Rows) ([]*notification.PlannedMessage, error) {
	msgs := make([]*notification.PlannedMessage, 0)
	for rows.Next() {
		m, err := scanPlannedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning planned message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating planned message rows: %w", err)
	}
	return msgs, nil
}

func (r *PostgresNotificationRepository) FindPending(ctx context.Context, id uuid.UUID) (*notification.PlannedMessage, error) {
	query := `SELECT ` + plannedColumns + `
               FROM planlagt_melding
               WHERE id = $1 AND avbrutt IS NULL AND sendt IS NULL
               FOR UPDATE`
	m, err := scanPlannedMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, fmt.Errorf("error getting pending planned message %s: %w", id, err)
	}
	return m, nil
}

func (r *PostgresNotificationRepository) FindByCase(ctx context.Context, fnr string, startDate time.Time) ([]*notification.PlannedMessage, error) {
	query := `SELECT ` + plannedColumns + `
               FROM planlagt_melding
               WHERE fnr = $1 AND startdato = $2
               ORDER BY opprettet, type`
	rows, err := r.db.QueryContext(ctx, query, fnr, dateParam(startDate))
	if err != nil {
		return nil, fmt.Errorf("error querying planned messages by case: %w", err)
	}
	defer rows.Close()
	return scanPlannedMessages(rows)
}

func (r *PostgresNotificationRepository) FindByPerson(ctx context.Context, fnr string) ([]*notification.PlannedMessage, error) {
	query := `SELECT ` + plannedColumns + `
               FROM planlagt_melding
               WHERE fnr = $1
               ORDER BY startdato, type`
	rows, err := r.db.QueryContext(ctx, query, fnr)
	if err != nil {
		return nil, fmt.Errorf("error querying planned messages by person: %w", err)
	}
	defer rows.Close()
	return scanPlannedMessages(rows)
}

func (r *PostgresNotificationRepository) CaseExists(ctx context.Context, fnr string, startDate time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM planlagt_melding WHERE fnr = $1 AND startdato = $2)`
	if err := r.db.QueryRowContext(ctx, query, fnr, dateParam(startDate)).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking case existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) NewerCaseExists(ctx context.Context, fnr string, startDate time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM planlagt_melding WHERE fnr = $1 AND startdato > $2)`
	if err := r.db.QueryRowContext(ctx, query, fnr, dateParam(startDate)).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking newer case: %w", err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) LatestEvent(ctx context.Context, fnr string, startDate time.Time) (*notification.SettlementEvent, error) {
	query := `SELECT ` + eventColumns + `
               FROM utbetalt_event
               WHERE fnr = $1 AND startdato = $2
               ORDER BY opprettet DESC
               LIMIT 1`
	var e notification.SettlementEvent
	err := r.db.QueryRowContext(ctx, query, fnr, dateParam(startDate)).Scan(
		&e.ID, &e.EventType, &e.PaymentID, &e.Fnr, &e.OrgNumber, &e.StartDate, &e.Fom, &e.Tom,
		&e.ConsumedDays, &e.RemainingDays, &e.MaxDate, &e.Amount, &e.Created, &e.Payload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrEventNotFound
		}
		return nil, fmt.Errorf("error getting latest settlement event: %w", err)
	}
	e.StartDate, e.Fom, e.Tom, e.MaxDate = civil(e.StartDate), civil(e.Fom), civil(e.Tom), civil(e.MaxDate)
	return &e, nil
}

func (r *PostgresNotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM planlagt_melding
               WHERE avbrutt IS NULL AND sendt IS NULL AND sendes <= $1
               ORDER BY sendes
               LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying due planned messages: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning due id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due ids: %w", err)
	}
	return ids, nil
}

func (r *PostgresNotificationRepository) insertEvent(ctx context.Context, db dbtx, e *notification.SettlementEvent) error {
	query := `INSERT INTO utbetalt_event (` + eventColumns + `)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := db.ExecContext(ctx, query,
		e.ID, e.EventType, e.PaymentID, e.Fnr, e.OrgNumber, dateParam(e.StartDate), dateParam(e.Fom), dateParam(e.Tom),
		e.ConsumedDays, e.RemainingDays, dateParam(e.MaxDate), e.Amount, e.Created, string(e.Payload),
	)
	if err != nil {
		return fmt.Errorf("error inserting settlement event: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) InsertEventOnly(ctx context.Context, event *notification.SettlementEvent) error {
	return r.insertEvent(ctx, r.db, event)
}

// InsertCase writes the ledger row and all planned messages in one transaction.
// When the repository already runs inside a transaction, that one is used.
func (r *PostgresNotificationRepository) InsertCase(ctx context.Context, event *notification.SettlementEvent, msgs []*notification.PlannedMessage) error {
	return r.atomic(ctx, func(db dbtx) error {
		if err := r.insertEvent(ctx, db, event); err != nil {
			return err
		}

		stmt, err := db.PrepareContext(ctx, `INSERT INTO planlagt_melding (id, fnr, startdato, type, opprettet, sendes)
                                         VALUES ($1, $2, $3, $4, $5, $6)`)
		if err != nil {
			return fmt.Errorf("failed to prepare planned message insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			if _, err := stmt.ExecContext(ctx, m.ID, m.Fnr, dateParam(m.StartDate), string(m.Type), m.Created, m.SendAt); err != nil {
				return fmt.Errorf("error inserting planned message (fnr case %s, type %s): %w", dateParam(m.StartDate), m.Type, err)
			}
		}
		return nil
	})
}

// Postpone moves the due date of a pending message. It never moves it earlier.
func (r *PostgresNotificationRepository) Postpone(ctx context.Context, id uuid.UUID, sendAt time.Time) error {
	query := `UPDATE planlagt_melding SET sendes = $2
               WHERE id = $1 AND avbrutt IS NULL AND sendt IS NULL AND sendes < $2`
	if _, err := r.db.ExecContext(ctx, query, id, sendAt); err != nil {
		return fmt.Errorf("error postponing planned message %s: %w", id, err)
	}
	return nil
}

func (r *PostgresNotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time, correlationID string) error {
	query := `UPDATE planlagt_melding SET sendt = $2, jmscorrelationid = $3
               WHERE id = $1 AND avbrutt IS NULL AND sendt IS NULL`
	return r.execOne(ctx, "marking planned message sent", query, id, at, correlationID)
}

func (r *PostgresNotificationRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE planlagt_melding SET avbrutt = $2
               WHERE id = $1 AND avbrutt IS NULL AND sendt IS NULL`
	return r.execOne(ctx, "cancelling planned message", query, id, at)
}

func (r *PostgresNotificationRepository) Reopen(ctx context.Context, id uuid.UUID, sendAt time.Time) error {
	query := `UPDATE planlagt_melding SET avbrutt = NULL, sendes = $2
               WHERE id = $1 AND avbrutt IS NOT NULL`
	return r.execOne(ctx, "reopening planned message", query, id, sendAt)
}

func (r *PostgresNotificationRepository) CancelAllPendingForPersons(ctx context.Context, fnrs []string, at time.Time) (int64, error) {
	if len(fnrs) == 0 {
		return 0, nil
	}
	query := `UPDATE planlagt_melding SET avbrutt = $2
               WHERE fnr = ANY($1::varchar[]) AND avbrutt IS NULL AND sendt IS NULL`
	res, err := r.db.ExecContext(ctx, query, pq.Array(fnrs), at)
	if err != nil {
		return 0, fmt.Errorf("error cancelling pending planned messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading cancelled row count: %w", err)
	}
	return n, nil
}

// execOne runs an update that must touch exactly one row; zero rows is ErrNotFound.
func (r *PostgresNotificationRepository) execOne(ctx context.Context, what, query string, id uuid.UUID, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("error %s %s: %w", what, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error %s %s: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, notification.ErrNotFound)
	}
	return nil
}

func (r *PostgresNotificationRepository) atomic(ctx context.Context, fn func(db dbtx) error) error {
	sqlDB, ok := r.db.(*sql.DB)
	if !ok {
		return fn(r.db)
	}
	txn, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// dateParam renders a civil date for DATE columns so the session time zone cannot shift it.
func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

func civil(t time.Time) time.Time {
	return notification.Date(t.Year(), t.Month(), t.Day())
}
