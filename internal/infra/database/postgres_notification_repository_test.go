package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sickleave_notifier/internal/domain/notification"
)

var plannedRowColumns = []string{"id", "fnr", "startdato", "type", "opprettet", "sendes", "avbrutt", "sendt", "jmscorrelationid"}

func newMockRepo(t *testing.T) (*PostgresNotificationRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresNotificationRepository(db), mock, db
}

func TestFindPending_MapsPendingRow(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	id := uuid.New()
	created := time.Date(2020, 5, 20, 10, 0, 0, 0, time.UTC)
	sendes := time.Date(2020, 5, 29, 22, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM planlagt_melding")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(plannedRowColumns).
			AddRow(id.String(), "12345678910", time.Date(2020, 5, 2, 0, 0, 0, 0, time.Local), "4WEEK", created, sendes, nil, nil, nil))

	m, err := repo.FindPending(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, notification.Type4Week, m.Type)
	assert.Equal(t, notification.Date(2020, 5, 2), m.StartDate)
	assert.True(t, m.IsPending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPending_NoRowsIsNotFound(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM planlagt_melding")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(plannedRowColumns))

	_, err := repo.FindPending(context.Background(), id)
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestFindByCase_MapsStates(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Date(2020, 7, 2, 15, 20, 0, 0, time.UTC)
	start := notification.Date(2020, 5, 2)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE fnr = $1 AND startdato = $2")).
		WithArgs("12345678910", "2020-05-02").
		WillReturnRows(sqlmock.NewRows(plannedRowColumns).
			AddRow(uuid.New().String(), "12345678910", start, "8WEEK", now, now, now, nil, nil).
			AddRow(uuid.New().String(), "12345678910", start, "39WEEK", now, now, nil, now, "corr-1"))

	msgs, err := repo.FindByCase(context.Background(), "12345678910", start)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, notification.Cancelled{At: now}, msgs[0].State)
	assert.Equal(t, notification.Sent{At: now, CorrelationID: "corr-1"}, msgs[1].State)
}

func TestFindByPerson_RejectsSentAndCancelled(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE fnr = $1")).
		WithArgs("12345678910").
		WillReturnRows(sqlmock.NewRows(plannedRowColumns).
			AddRow(uuid.New().String(), "12345678910", now, "STOP", now, now, now, now, "corr-1"))

	_, err := repo.FindByPerson(context.Background(), "12345678910")
	assert.ErrorIs(t, err, notification.ErrInconsistentState)
}

func TestInsertCase_WritesEventAndMessagesAtomically(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now().UTC()
	start := notification.Date(2020, 5, 2)
	event := &notification.SettlementEvent{
		ID: uuid.New(), EventType: "UTBETALING", PaymentID: "u-1", Fnr: "12345678910", OrgNumber: "999999999",
		StartDate: start, Fom: start, Tom: notification.Date(2020, 5, 30), ConsumedDays: 20, RemainingDays: 228,
		MaxDate: notification.Date(2021, 4, 1), Amount: decimal.RequireFromString("12345.50"), Created: now,
		Payload: []byte(`{"id":"u-1"}`),
	}
	a := notification.NewPlannedMessage("12345678910", start, notification.Type4Week, now, now)
	b := notification.NewPlannedMessage("12345678910", start, notification.TypeStop, now, now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO utbetalt_event")).
		WithArgs(event.ID, "UTBETALING", "u-1", "12345678910", "999999999", "2020-05-02", "2020-05-02", "2020-05-30",
			20, 228, "2021-04-01", event.Amount, now, `{"id":"u-1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO planlagt_melding"))
	prep.ExpectExec().WithArgs(a.ID, a.Fnr, "2020-05-02", "4WEEK", now, now).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(b.ID, b.Fnr, "2020-05-02", "STOP", now, now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertCase(context.Background(), event, []*notification.PlannedMessage{&a, &b})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCase_RollsBackOnMessageFailure(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now().UTC()
	event := &notification.SettlementEvent{ID: uuid.New(), Fnr: "12345678910", Created: now}
	a := notification.NewPlannedMessage("12345678910", notification.Date(2020, 5, 2), notification.Type4Week, now, now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO utbetalt_event")).WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO planlagt_melding"))
	prep.ExpectExec().WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := repo.InsertCase(context.Background(), event, []*notification.PlannedMessage{&a})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostpone_OnlyMovesLater(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	id := uuid.New()
	sendAt := time.Date(2020, 6, 16, 22, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("AND sendes < $2")).
		WithArgs(id, sendAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Postpone(context.Background(), id, sendAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent_RequiresPendingRow(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	id := uuid.New()
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET sendt = $2, jmscorrelationid = $3")).
		WithArgs(id, at, "corr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkSent(context.Background(), id, at, "corr-1"))

	mock.ExpectExec(regexp.QuoteMeta("SET sendt = $2, jmscorrelationid = $3")).
		WithArgs(id, at, "corr-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkSent(context.Background(), id, at, "corr-2")
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestReopen_RequiresCancelledRow(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	id := uuid.New()
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET avbrutt = NULL, sendes = $2")).
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Reopen(context.Background(), id, at), notification.ErrNotFound)
}

func TestCancelAllPendingForPersons(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	at := time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC)
	fnrs := []string{"11111111111", "22222222222"}

	mock.ExpectExec(regexp.QuoteMeta("fnr = ANY($1::varchar[])")).
		WithArgs(pq.Array(fnrs), at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.CancelAllPendingForPersons(context.Background(), fnrs, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CancelAllPendingForPersons(context.Background(), nil, at)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDue(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now()
	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("sendes <= $1")).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a.String()).AddRow(b.String()))

	ids, err := repo.ListDue(context.Background(), now, 50)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
}

func TestLatestEvent_NotFound(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM utbetalt_event")).
		WithArgs("12345678910", "2020-05-02").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestEvent(context.Background(), "12345678910", notification.Date(2020, 5, 2))
	assert.ErrorIs(t, err, notification.ErrEventNotFound)
}

func TestTransactor_CommitsAndRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	tx := NewPostgresTransactor(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET avbrutt = $2")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err = tx.RunInTx(context.Background(), func(repo notification.Repository) error {
		return repo.MarkCancelled(context.Background(), id, time.Now())
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = tx.RunInTx(context.Background(), func(repo notification.Repository) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
