package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/consumer"
	"sickleave_notifier/internal/infra/wire"
)

func receiptMessage(t *testing.T, status, code, text string) *consumer.Message {
	t.Helper()
	record, err := wire.EncodeReceipt(wire.Receipt{
		Date:         "02072020",
		Time:         "152000",
		Fnr:          testFnr,
		StatusOK:     status,
		ErrorCode:    code,
		ErrorMessage: text,
	})
	require.NoError(t, err)
	return &consumer.Message{Source: "receipts", Key: []byte("corr-1"), Value: []byte(record)}
}

func TestClassify_BusinessFailureIsDistinctFromParseError(t *testing.T) {
	msg := receiptMessage(t, "N", "XXXXXXXX", "Feilmelding")

	r, err := Classify("corr-1", string(msg.Value))
	var business *BusinessFailureError
	require.ErrorAs(t, err, &business)
	assert.Equal(t, "N", r.StatusOK)
	assert.Equal(t, "XXXXXXXX", business.Code)
	assert.Equal(t, "Feilmelding", business.Message)

	var parse *wire.ParseError
	assert.False(t, errors.As(err, &parse))

	_, err = Classify("corr-2", "too short")
	assert.ErrorAs(t, err, &parse)
}

func TestReceiptService_OK(t *testing.T) {
	backout, alerter, recorder := &mockBackouter{}, &mockAlerter{}, newCountingRecorder()
	s := NewReceiptService(backout, alerter, recorder)

	require.NoError(t, s.Handle(context.Background(), receiptMessage(t, wire.StatusOK, "", "")))
	assert.Equal(t, 1, recorder.Count(metrics.ReceiptOK))
	backout.AssertNotCalled(t, "Backout", mock.Anything, mock.Anything)
	alerter.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
}

func TestReceiptService_BusinessFailureAlertsAndIsNotRetried(t *testing.T) {
	backout, alerter, recorder := &mockBackouter{}, &mockAlerter{}, newCountingRecorder()
	alerter.On("Alert", mock.Anything, mock.MatchedBy(func(text string) bool {
		return containsAll(text, "corr-1", "XXXXXXXX", "Feilmelding")
	})).Return(errors.New("telegram down")).Once()
	s := NewReceiptService(backout, alerter, recorder)

	err := s.Handle(context.Background(), receiptMessage(t, "N", "XXXXXXXX", "Feilmelding"))
	require.Error(t, err)
	assert.Equal(t, notification.KindBusiness, notification.KindOf(err))
	assert.Equal(t, 1, recorder.Count(metrics.ReceiptBusinessFailure))
	alerter.AssertExpectations(t)
}

func TestReceiptService_UnclassifiableGoesToBackout(t *testing.T) {
	backout, alerter, recorder := &mockBackouter{}, &mockAlerter{}, newCountingRecorder()
	msg := &consumer.Message{Source: "receipts", Key: []byte("corr-9"), Value: []byte("garbage")}
	backout.On("Backout", mock.Anything, msg).Return(nil).Once()
	s := NewReceiptService(backout, alerter, recorder)

	require.NoError(t, s.Handle(context.Background(), msg))
	assert.Equal(t, 1, recorder.Count(metrics.ReceiptBackout))
	backout.AssertExpectations(t)
}

func TestReceiptService_FailedBackoutIsRetried(t *testing.T) {
	backout, alerter, recorder := &mockBackouter{}, &mockAlerter{}, newCountingRecorder()
	backout.On("Backout", mock.Anything, mock.Anything).Return(errors.New("channel closed"))
	s := NewReceiptService(backout, alerter, recorder)

	err := s.Handle(context.Background(), &consumer.Message{Value: []byte("garbage")})
	require.Error(t, err)
	assert.Equal(t, notification.KindTransient, notification.KindOf(err))
	assert.Zero(t, recorder.Count(metrics.ReceiptBackout))
}
