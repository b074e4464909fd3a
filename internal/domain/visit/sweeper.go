package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/domain/program"
	"github.com/fidely/fidely-api/internal/domain/stamp"
)

const sweepBatch = 200

// PendingStampStore lists and flags visit rows left unapplied
type PendingStampStore interface {
	ListUnapplied(ctx context.Context, olderThan time.Time, limit int) ([]stamp.Stamp, error)
	MarkOrphaned(ctx context.Context, id uuid.UUID) error
}

// CustomerLoader loads a customer by ID
type CustomerLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	ApplyVisit(ctx context.Context, stampID, customerID uuid.UUID, u customer.VisitUpdate) error
}

// SweepResult counts what one sweep did
type SweepResult struct {
	Replayed int
	Orphaned int
	Failed   int
}

// Sweeper reconciles visit rows whose counter update never happened.
// Attendance programs get the lifetime increment replayed. Value programs
// are flagged orphaned: the caller saw an error and may have retried, so
// replaying the transfer could apply it twice.
type Sweeper struct {
	stamps    PendingStampStore
	customers CustomerLoader
	grace     time.Duration
	now       func() time.Time
}

func NewSweeper(stamps PendingStampStore, customers CustomerLoader, grace time.Duration) *Sweeper {
	return &Sweeper{stamps: stamps, customers: customers, grace: grace, now: time.Now}
}

// lifetimeDelta returns the replayed lifetime increment for a program type
// and whether the row can be replayed at all
func lifetimeDelta(t program.Type) (int, bool) {
	switch t {
	case program.TypeTieredDiscount, program.TypeMembership, program.TypeAffiliation:
		return 1, true
	}
	return 0, false
}

// Run processes one batch of pending rows older than the grace period
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	pending, err := s.stamps.ListUnapplied(ctx, s.now().Add(-s.grace), sweepBatch)
	if err != nil {
		return result, fmt.Errorf("list unapplied visits: %w", err)
	}

	for _, st := range pending {
		logger := log.With().
			Str("stamp_id", st.ID.String()).
			Str("program_type", string(st.ProgramType)).
			Logger()

		delta, replay := lifetimeDelta(st.ProgramType)
		if !replay {
			if err := s.stamps.MarkOrphaned(ctx, st.ID); err != nil {
				logger.Error().Err(err).Msg("Failed to mark visit orphaned")
				result.Failed++
				continue
			}
			logger.Warn().Msg("Visit row orphaned")
			result.Orphaned++
			continue
		}

		c, err := s.customers.GetByID(ctx, st.CustomerID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load customer for replay")
			result.Failed++
			continue
		}
		u := customer.NewVisitUpdate(c, delta, st.CreatedAt)
		if last := c.LastVisit(); last != nil && last.After(st.CreatedAt) {
			// a later visit already moved the streak on
			u.Streak, u.VisitedAt = c.Streak, *last
		}
		if err := s.customers.ApplyVisit(ctx, st.ID, c.ID, u); err != nil {
			logger.Error().Err(err).Msg("Failed to replay visit")
			result.Failed++
			continue
		}
		logger.Info().Msg("Visit replayed")
		result.Replayed++
	}

	return result, nil
}
