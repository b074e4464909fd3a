// Package gamification computes streaks and tiers from customer counters.
package gamification

import "time"

// Tier is a customer's loyalty level
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

const (
	StreakWindow    = 7 * 24 * time.Hour
	SilverThreshold = 10
	GoldThreshold   = 25
)

// Streak returns the streak after a visit at now. The streak continues when
// the previous visit is within StreakWindow, otherwise it restarts at 1.
func Streak(lastVisitAt *time.Time, current int, now time.Time) int {
	if lastVisitAt == nil || current <= 0 {
		return 1
	}
	gap := now.Sub(*lastVisitAt)
	if gap < 0 || gap > StreakWindow {
		return 1
	}
	return current + 1
}

// TierFor classifies a lifetime visit total
func TierFor(lifetime int) Tier {
	switch {
	case lifetime >= GoldThreshold:
		return TierGold
	case lifetime >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}
