package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fidely/fidely-api/internal/domain/review"
	"github.com/fidely/fidely-api/internal/pkg/push"
)

const defaultTimeout = 10 * time.Second

// ReviewScheduler stores deferred review requests
type ReviewScheduler interface {
	Schedule(ctx context.Context, req *review.Request) error
}

// Notifier fires the side effects of an accepted visit: a push message and
// a deferred review request. It never reports failures to the caller.
type Notifier struct {
	publisher   push.Publisher
	reviews     ReviewScheduler
	dedupe      Deduper
	reviewDelay time.Duration
	timeout     time.Duration
	now         func() time.Time

	wg sync.WaitGroup
}

// NewNotifier creates a notifier. dedupe may be nil.
func NewNotifier(publisher push.Publisher, reviews ReviewScheduler, dedupe Deduper, reviewDelay time.Duration) *Notifier {
	return &Notifier{
		publisher:   publisher,
		reviews:     reviews,
		dedupe:      dedupe,
		reviewDelay: reviewDelay,
		timeout:     defaultTimeout,
		now:         time.Now,
	}
}

// VisitRegistered dispatches the side effects in the background and
// returns immediately.
func (n *Notifier) VisitRegistered(ctx context.Context, ev Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("customer_id", ev.CustomerID.String()).Msg("Notifier panic recovered")
			}
		}()

		sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		n.dispatch(sideCtx, ev)
	}()
}

// Wait blocks until in-flight side effects finish
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, ev Event) {
	logger := log.With().
		Str("tenant_id", ev.TenantID.String()).
		Str("customer_id", ev.CustomerID.String()).
		Str("program_type", string(ev.ProgramType)).
		Logger()

	if ev.StampID != uuid.Nil && n.dedupe != nil {
		claimed, err := n.dedupe.Claim(ctx, "notify:visit:"+ev.StampID.String())
		if err != nil {
			logger.Warn().Err(err).Msg("Notification dedupe unavailable, sending anyway")
		} else if !claimed {
			logger.Debug().Str("stamp_id", ev.StampID.String()).Msg("Visit already notified")
			return
		}
	}

	title, body := Compose(ev)
	msg := push.Message{
		ID:         uuid.New(),
		Kind:       push.KindVisit,
		CustomerID: ev.CustomerID,
		TenantID:   ev.TenantID,
		TenantSlug: ev.TenantSlug,
		Title:      title,
		Body:       body,
		Data:       map[string]string{"program_type": string(ev.ProgramType)},
		CreatedAt:  n.now(),
	}
	if ev.RewardCode != "" {
		msg.Data["reward_code"] = ev.RewardCode
	}
	if err := n.publisher.Publish(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("Failed to enqueue visit push")
	}

	// Review requests follow first visits of the day only.
	if ev.StampID == uuid.Nil || n.reviews == nil {
		return
	}
	req := &review.Request{
		CustomerID: ev.CustomerID,
		TenantID:   ev.TenantID,
		StampID:    uuid.NullUUID{UUID: ev.StampID, Valid: true},
		SendAt:     n.now().Add(n.reviewDelay),
	}
	if err := n.reviews.Schedule(ctx, req); err != nil {
		logger.Error().Err(err).Msg("Failed to schedule review request")
	}
}
