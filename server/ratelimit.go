package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// InputLimiter bounds input submissions per connection. Inputs collapse to
// the latest value each tick anyway, so anything far beyond the tick rate
// is noise worth shedding.
type InputLimiter struct {
	limiters sync.Map // conn id -> *rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewInputLimiter(perSec float64, burst int) *InputLimiter {
	return &InputLimiter{
		limit: rate.Limit(perSec),
		burst: burst,
	}
}

// Allow reports whether an input from the given connection passes.
func (l *InputLimiter) Allow(connID string) bool {
	if v, ok := l.limiters.Load(connID); ok {
		return v.(*rate.Limiter).Allow()
	}
	v, _ := l.limiters.LoadOrStore(connID, rate.NewLimiter(l.limit, l.burst))
	return v.(*rate.Limiter).Allow()
}

// Forget drops the limiter state for a closed connection.
func (l *InputLimiter) Forget(connID string) {
	l.limiters.Delete(connID)
}
