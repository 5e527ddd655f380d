// Package breaker implements a per-upstream circuit breaker with a
// time-bucketed sliding window of call outcomes.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fathy2028/marketco/internal/config"
	"github.com/fathy2028/marketco/internal/logging"
)

// ErrOpen is returned when the breaker short-circuits a call.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker phase.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Outcome classifies a finished upstream call.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Slow
)

const numBuckets = 10

type bucketCounts struct {
	stamp    int64 // bucket start, in bucket units since epoch
	total    int
	failures int
	slow     int
}

// Breaker guards one upstream. All state lives behind a single mutex so
// every request observes transitions immediately.
type Breaker struct {
	name string
	cfg  config.Breaker
	now  func() time.Time
	log  *logrus.Logger

	mu             sync.Mutex
	state          State
	buckets        [numBuckets]bucketCounts
	openedAt       time.Time
	probesInFlight int
	probeSuccesses int
}

// New builds a breaker for the named upstream.
func New(name string, cfg config.Breaker) *Breaker {
	b := &Breaker{
		name: name,
		cfg:  cfg,
		now:  time.Now,
		log:  logging.Logger(),
	}
	return b
}

// Allow asks to admit one call. On admission it returns a record callback
// the caller must invoke exactly once with the call's outcome. When the
// breaker short-circuits, it returns ErrOpen.
func (b *Breaker) Allow() (func(Outcome), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == Open {
		if now.Sub(b.openedAt) < b.cfg.WaitOpen {
			return nil, ErrOpen
		}
		b.transition(HalfOpen, "wait elapsed")
	}

	switch b.state {
	case HalfOpen:
		if b.probesInFlight >= b.cfg.HalfOpenPermits {
			return nil, ErrOpen
		}
		b.probesInFlight++
		return func(o Outcome) { b.recordProbe(o) }, nil
	default: // Closed
		return func(o Outcome) { b.record(o) }, nil
	}
}

// State returns the current phase.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// record accounts a call admitted while closed.
func (b *Breaker) record(o Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Closed {
		// the breaker tripped while this call was in flight; its outcome no
		// longer influences the window
		return
	}

	bk := b.currentBucket()
	bk.total++
	switch o {
	case Failure:
		bk.failures++
	case Slow:
		bk.slow++
	}

	total, failures, slow := b.windowTotals()
	if total < b.cfg.MinimumCalls {
		return
	}
	failRate := float64(failures) / float64(total)
	slowRate := float64(slow) / float64(total)
	switch {
	case failRate >= b.cfg.FailureThreshold:
		b.toOpen("failure rate", failRate)
	case slowRate >= b.cfg.SlowThreshold:
		b.toOpen("slow rate", slowRate)
	}
}

// recordProbe accounts a half-open probe result.
func (b *Breaker) recordProbe(o Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.probesInFlight > 0 {
		b.probesInFlight--
	}
	if b.state != HalfOpen {
		return
	}
	if o != Success {
		b.toOpen("probe "+outcomeLabel(o), 1)
		return
	}
	b.probeSuccesses++
	if b.probeSuccesses >= b.cfg.HalfOpenPermits {
		b.resetWindow()
		b.transition(Closed, "probes succeeded")
	}
}

func (b *Breaker) toOpen(trigger string, rate float64) {
	b.openedAt = b.now()
	b.probesInFlight = 0
	b.probeSuccesses = 0
	b.log.WithFields(logrus.Fields{
		"breaker": b.name,
		"trigger": trigger,
		"rate":    rate,
	}).Warnf("breaker %s: %s -> OPEN", b.name, b.state)
	b.state = Open
}

func (b *Breaker) transition(to State, reason string) {
	b.log.WithFields(logrus.Fields{
		"breaker": b.name,
		"reason":  reason,
	}).Infof("breaker %s: %s -> %s", b.name, b.state, to)
	b.state = to
	b.probesInFlight = 0
	b.probeSuccesses = 0
}

func (b *Breaker) bucketDur() time.Duration {
	return b.cfg.Window / numBuckets
}

// currentBucket returns the live ring slot, clearing it first when it
// still holds counts from a previous rotation.
func (b *Breaker) currentBucket() *bucketCounts {
	stamp := b.now().UnixNano() / int64(b.bucketDur())
	bk := &b.buckets[stamp%numBuckets]
	if bk.stamp != stamp {
		*bk = bucketCounts{stamp: stamp}
	}
	return bk
}

// windowTotals sums slots still inside the window.
func (b *Breaker) windowTotals() (total, failures, slow int) {
	stamp := b.now().UnixNano() / int64(b.bucketDur())
	for i := range b.buckets {
		bk := &b.buckets[i]
		if bk.stamp > stamp-numBuckets && bk.stamp <= stamp {
			total += bk.total
			failures += bk.failures
			slow += bk.slow
		}
	}
	return
}

func (b *Breaker) resetWindow() {
	b.buckets = [numBuckets]bucketCounts{}
}

func outcomeLabel(o Outcome) string {
	switch o {
	case Failure:
		return "failure"
	case Slow:
		return "slow"
	default:
		return "success"
	}
}
