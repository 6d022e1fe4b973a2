package zone

import "time"

// backoffSteps are the fixed per-zone re-attempt delays named in the
// rejection-storm guard: 1s, 5s, 30s, then holding at 30s.
var backoffSteps = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}

// Backoff gates how soon a zone may re-attempt order placement after an
// on_order_failed callback, without blocking the caller the way
// pkg/retry.Do does for a single in-flight request — a zone's backoff spans
// many engine ticks, so it is modeled as explicit state checked each tick.
type Backoff struct {
	failures  int
	until     time.Time
	armed     bool
}

// Trip records a failure and arms the backoff window starting at now.
func (b *Backoff) Trip(now time.Time) {
	step := backoffSteps[len(backoffSteps)-1]
	if b.failures < len(backoffSteps) {
		step = backoffSteps[b.failures]
	}
	b.failures++
	b.until = now.Add(step)
	b.armed = true
}

// Ready reports whether the zone may attempt placement again at now.
func (b *Backoff) Ready(now time.Time) bool {
	if !b.armed {
		return true
	}
	return !now.Before(b.until)
}

// Reset clears the backoff state, called after a successful fill.
func (b *Backoff) Reset() {
	b.failures = 0
	b.armed = false
	b.until = time.Time{}
}
