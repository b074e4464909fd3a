package reward

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxCodeAttempts = 5

// Store is the persistence used by Issuer
type Store interface {
	InsertConsumingMembership(ctx context.Context, rw *Reward, membershipID uuid.UUID) error
}

// Issuer creates rewards with unique codes, retrying on code collisions
type Issuer struct {
	store    Store
	generate func(prefix string) (string, error)
	now      func() time.Time
}

func NewIssuer(store Store) *Issuer {
	return &Issuer{store: store, generate: GenerateCode, now: time.Now}
}

// IssueCoupon creates a coupon reward and marks the membership used
func (i *Issuer) IssueCoupon(ctx context.Context, membershipID uuid.UUID, target Target, description string) (*Reward, error) {
	return i.issue(ctx, target, PrefixCoupon, description, func(rw *Reward) error {
		return i.store.InsertConsumingMembership(ctx, rw, membershipID)
	})
}

func (i *Issuer) issue(ctx context.Context, target Target, prefix, description string, insert func(*Reward) error) (*Reward, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := i.generate(prefix)
		if err != nil {
			return nil, err
		}

		rw := &Reward{
			ID:          uuid.New(),
			CustomerID:  target.CustomerID,
			TenantID:    target.TenantID,
			ProgramID:   target.ProgramID,
			Code:        code,
			Description: description,
			CreatedAt:   i.now(),
		}
		err = insert(rw)
		if err == nil {
			return rw, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return nil, err
		}

		log.Warn().Int("attempt", attempt).Str("prefix", prefix).Msg("reward code collision, retrying")
	}
	return nil, ErrCodeSpaceExceeded
}
