package legacy

import "context"

// Sender hands an encoded fixed-width record to the legacy system's inbound queue.
type Sender interface {
	// Send returns the correlation id assigned by the transport.
	Send(ctx context.Context, record string) (string, error)
}
