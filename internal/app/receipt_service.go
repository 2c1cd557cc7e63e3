package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/infra/consumer"
	"sickleave_notifier/internal/infra/logger"
	"sickleave_notifier/internal/infra/wire"
)

const receiptSource = "receipts"

// BusinessFailureError is a receipt in which the legacy system rejected a message.
type BusinessFailureError struct {
	CorrelationID string
	Code          string
	Message       string
}

func (e *BusinessFailureError) Error() string {
	return fmt.Sprintf("legacy system rejected message %s: %s %s", e.CorrelationID, e.Code, e.Message)
}

// Backouter diverts a receipt that could not be classified.
type Backouter interface {
	Backout(ctx context.Context, msg *consumer.Message) error
}

// Alerter notifies operators.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// ReceiptService classifies receipts from the legacy system. Every receipt ends up
// acknowledged: ok, business failure, or forwarded to the backout queue.
type ReceiptService struct {
	backout Backouter
	alerter Alerter
	metrics metrics.Recorder
	log     *logrus.Entry
}

func NewReceiptService(backout Backouter, alerter Alerter, recorder metrics.Recorder) *ReceiptService {
	return &ReceiptService{backout: backout, alerter: alerter, metrics: recorder, log: logger.Component("receipts")}
}

// Classify decodes a receipt record. A rejected message yields *BusinessFailureError;
// a malformed record yields *wire.ParseError.
func Classify(correlationID, record string) (wire.Receipt, error) {
	r, err := wire.ParseReceipt(record)
	if err != nil {
		return r, err
	}
	if !r.OK() {
		return r, &BusinessFailureError{
			CorrelationID: correlationID,
			Code:          strings.TrimSpace(r.ErrorCode),
			Message:       strings.TrimSpace(r.ErrorMessage),
		}
	}
	return r, nil
}

// Handle returns a business-kind error for rejected messages so the loop logs and
// acknowledges them without retrying. Only a failed backout publish is retried.
func (s *ReceiptService) Handle(ctx context.Context, msg *consumer.Message) error {
	correlationID := string(msg.Key)
	log := s.log.WithField("correlation_id", correlationID)

	_, err := Classify(correlationID, string(msg.Value))
	switch e := err.(type) {
	case nil:
		s.metrics.Incr(ctx, metrics.ReceiptOK, receiptSource)
		log.Info("legacy system accepted message")
		return nil
	case *BusinessFailureError:
		s.metrics.Incr(ctx, metrics.ReceiptBusinessFailure, receiptSource)
		log.WithFields(logrus.Fields{"error_code": e.Code, "error_message": e.Message}).Error("legacy system rejected message")
		if aerr := s.alerter.Alert(ctx, e.Error()); aerr != nil {
			log.WithError(aerr).Warn("operator alert failed")
		}
		return notification.Business("receipt", e)
	default:
		log.WithError(err).Warn("unclassifiable receipt, forwarding to backout queue")
		if berr := s.backout.Backout(ctx, msg); berr != nil {
			return fmt.Errorf("backout failed: %w", berr)
		}
		s.metrics.Incr(ctx, metrics.ReceiptBackout, receiptSource)
		return nil
	}
}
