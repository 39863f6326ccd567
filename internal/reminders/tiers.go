package reminders

import "time"

// DefaultMaxDelay is the longest single timer the scheduler arms. Longer waits
// are bridged by overflow timers that only re-evaluate.
const DefaultMaxDelay = 360 * time.Hour

const overflowLabel = "overflow"

// Tier is a reminder sent Offset before the speaker slot ends.
type Tier struct {
	Name   string
	Offset time.Duration
}

// Tiers are ordered from the earliest reminder to the last one.
var Tiers = []Tier{
	{Name: "12h", Offset: 12 * time.Hour},
	{Name: "6h", Offset: 6 * time.Hour},
	{Name: "1h", Offset: time.Hour},
}

// State is the per-community scheduler state.
type State int

const (
	StateIdle State = iota
	StateNearTermArmed
	StateOverflowArmed
)

func (s State) String() string {
	switch s {
	case StateNearTermArmed:
		return "near-term-armed"
	case StateOverflowArmed:
		return "overflow-armed"
	default:
		return "idle"
	}
}

// selectTier returns the largest tier whose offset fits in remaining and that
// has not fired yet for the current slot.
func selectTier(remaining time.Duration, fired map[string]bool) (Tier, bool) {
	for _, tier := range Tiers {
		if tier.Offset <= remaining && !fired[tier.Name] {
			return tier, true
		}
	}
	return Tier{}, false
}
