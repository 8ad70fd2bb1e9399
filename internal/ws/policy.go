package ws

import (
	"math"
	"time"
)

// ReconnectPolicy decides whether and when to redial after a connection is lost.
// attempt starts at 0 for the first retry after a failure and resets after
// every successful handshake.
type ReconnectPolicy interface {
	Next(attempt int) (time.Duration, bool)
}

// NoReconnect never redials; the caller must Open the scope again.
type NoReconnect struct{}

func (NoReconnect) Next(int) (time.Duration, bool) { return 0, false }

// ExponentialBackoff redials up to MaxAttempts times with delays
// Initial, Initial*Multiplier, ... capped at Max.
type ExponentialBackoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

func (p ExponentialBackoff) Next(attempt int) (time.Duration, bool) {
	if attempt < 0 || attempt >= p.MaxAttempts {
		return 0, false
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := time.Duration(float64(p.Initial) * math.Pow(mult, float64(attempt)))
	if p.Max > 0 && (delay > p.Max || delay < 0) {
		delay = p.Max
	}
	return delay, true
}
