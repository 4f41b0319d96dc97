package orchestrator

import (
	"math"
	"math/rand"
	"time"
)

// TurnPolicy configures the poll loop for a single turn.
type TurnPolicy struct {
	// MaxWallClock bounds the total elapsed time of the turn, independent of
	// the retry budget.
	MaxWallClock time.Duration
	// MaxRetries bounds the number of suspected-stall waits. Short waits for
	// queued/in_progress/empty-action states do not consume this budget.
	MaxRetries int
	// BaseBackoff is the unit of the exponential backoff schedule.
	BaseBackoff time.Duration
	// MaxBackoff caps a single backoff wait.
	MaxBackoff time.Duration
	// PollInterval is the fixed short wait used while the run is making
	// expected progress.
	PollInterval time.Duration
	// SettleDelay is the brief wait after submitting tool outputs, before the
	// next poll.
	SettleDelay time.Duration
	// Rand supplies backoff jitter. Nil uses the shared source. A non-nil Rand
	// must not be shared across concurrent turns.
	Rand *rand.Rand
}

func (p TurnPolicy) normalized() TurnPolicy {
	if p.MaxWallClock <= 0 {
		p.MaxWallClock = 5 * time.Minute
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 10
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 32 * time.Second
	}
	if p.PollInterval <= 0 {
		p.PollInterval = time.Second
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = 2 * time.Second
	}
	return p
}

// backoffWait computes min(MaxBackoff, (2^retry + uniform(0,1)) * BaseBackoff).
func (p TurnPolicy) backoffWait(retry int) time.Duration {
	jitter := rand.Float64()
	if p.Rand != nil {
		jitter = p.Rand.Float64()
	}
	scaled := (math.Pow(2, float64(retry)) + jitter) * float64(p.BaseBackoff)
	wait := time.Duration(scaled)
	if wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}
