package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"

	"github.com/fidely/fidely-api/internal/pkg/push"
)

const dispatchBatch = 100

// DueStore is the subset of Repository used by Dispatcher
type DueStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]DueRequest, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Dispatcher publishes review requests once they are due
type Dispatcher struct {
	store     DueStore
	publisher push.Publisher
	now       func() time.Time
}

func NewDispatcher(store DueStore, publisher push.Publisher) *Dispatcher {
	return &Dispatcher{store: store, publisher: publisher, now: time.Now}
}

// Run publishes one batch of due requests and returns how many were sent.
// A request that fails to publish stays pending for the next run.
func (d *Dispatcher) Run(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.store.ListDue(ctx, now, dispatchBatch)
	if err != nil {
		return 0, fmt.Errorf("list due review requests: %w", err)
	}

	sent := 0
	for _, req := range due {
		msg := reviewMessage(req, now)
		if err := d.publisher.Publish(ctx, msg); err != nil {
			log.Error().Err(err).Str("review_request_id", req.ID.String()).Msg("Failed to publish review request")
			continue
		}
		if err := d.store.MarkSent(ctx, req.ID, now); err != nil {
			log.Error().Err(err).Str("review_request_id", req.ID.String()).Msg("Failed to mark review request sent")
			continue
		}
		sent++
	}
	return sent, nil
}

func reviewMessage(req DueRequest, now time.Time) push.Message {
	tenantSlug := req.TenantSlug
	if tenantSlug == "" {
		tenantSlug = slug.Make(req.TenantName)
	}
	return push.Message{
		ID:         req.ID,
		Kind:       push.KindReview,
		CustomerID: req.CustomerID,
		TenantID:   req.TenantID,
		TenantSlug: tenantSlug,
		Title:      fmt.Sprintf("¿Cómo te fue en %s?", req.TenantName),
		Body:       "Cuéntanos tu experiencia, nos ayuda a mejorar.",
		CreatedAt:  now,
	}
}
