package bus

import "time"

// Event kinds published by the daemon.
const (
	KindStateChanged  = "bot.state_changed"
	KindOrderAccepted = "order.accepted"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
