package backoff

import (
	"math/rand/v2"
	"time"
)

// Policy describes capped exponential backoff with jitter.
// Attempt n (1-based) waits roughly Base*2^(n-1), never more than Max.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
	// Jitter returns a random duration in [0, n). Defaults to math/rand.
	Jitter func(n time.Duration) time.Duration
}

// Default mirrors the aggregation upstream's throttling guidance.
func Default() Policy {
	return Policy{
		Base:        900 * time.Millisecond,
		Max:         15 * time.Second,
		MaxAttempts: 8,
	}
}

// Delay returns the wait before retrying after the given failed attempt:
// the exponential step plus up to half of it again as jitter, capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			d = p.Max
			break
		}
	}

	if half := d / 2; half > 0 {
		d += p.jitter(half)
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// Hinted prefers a server supplied retry hint, capped at Max.
func (p Policy) Hinted(attempt int, hint time.Duration) time.Duration {
	if hint <= 0 {
		return p.Delay(attempt)
	}
	if p.Max > 0 && hint > p.Max {
		return p.Max
	}
	return hint
}

func (p Policy) jitter(n time.Duration) time.Duration {
	if p.Jitter != nil {
		return p.Jitter(n)
	}
	return time.Duration(rand.Int64N(int64(n)))
}
