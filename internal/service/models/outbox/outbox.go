package outbox

import (
	"time"
)

// Message is a notification waiting to be published to RabbitMQ. Rows
// are inserted inside the checkout transaction so a committed checkout
// is always eventually announced, and never announced before commit.
type Message struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
