package push

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	KindVisit  = "visit"
	KindReview = "review_request"
)

// Message is a notification handed to the delivery service.
// Delivery itself happens outside this process.
type Message struct {
	ID         uuid.UUID         `json:"id"`
	Kind       string            `json:"kind"`
	CustomerID uuid.UUID         `json:"customer_id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	TenantSlug string            `json:"tenant_slug"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Publisher enqueues push messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NopPublisher drops messages. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, msg Message) error {
	log.Debug().
		Str("kind", msg.Kind).
		Str("customer_id", msg.CustomerID.String()).
		Str("title", msg.Title).
		Msg("Push queue not configured, dropping message")
	return nil
}

func (NopPublisher) Close() error { return nil }
