package webhook_handlers

import "context"

// Handler processes one webhook topic family. Handlers are registered
// with the dispatcher, which picks the first one whose CanHandle
// matches the delivery's topic.
type Handler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, shopID string, topic string, payload []byte) error
}
