package metrics

import "context"

// Metric names emitted by the consumption loops and the receipt listener.
const (
	EventProcessed         = "EventProcessed"
	EventFailed            = "EventFailed"
	MessageSent            = "MessageSent"
	MessageCancelled       = "MessageCancelled"
	MessagePostponed       = "MessagePostponed"
	ReceiptOK              = "ReceiptOK"
	ReceiptBusinessFailure = "ReceiptBusinessFailure"
	ReceiptBackout         = "ReceiptBackout"
)

// Recorder counts occurrences of a metric for one source (a loop name or a message type).
// Implementations must not fail the caller; emission errors are logged and dropped.
type Recorder interface {
	Incr(ctx context.Context, metric, source string)
}
