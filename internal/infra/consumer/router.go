package consumer

import (
	"context"
	"fmt"

	"sickleave_notifier/internal/domain/notification"
)

// Router dispatches by Message.Source. A record from an unregistered source is a
// configuration error and stops the loop.
type Router map[string]Handler

func (r Router) Handle(ctx context.Context, msg *Message) error {
	h, ok := r[msg.Source]
	if !ok {
		return notification.Fatal("route "+msg.Source, fmt.Errorf("%w: %q", notification.ErrUnknownTopic, msg.Source))
	}
	return h.Handle(ctx, msg)
}
