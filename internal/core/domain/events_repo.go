package domain

import "context"

type EventRepository interface {
	Save(ctx context.Context, topic, id string, events []RoundEvent) error
	RegisterEventsHandler(topic string, handler func(events []RoundEvent))
	ClearRegisteredHandlers(topic ...string)
	Close()
}
