package serialio

import (
	"context"
	"time"
)

// Timeout is a monotonic deadline helper. A nil duration means infinite (no
// deadline); a zero duration means non-blocking (already expired); a
// positive duration targets now+duration, defending against clock jumps the
// same way the source implementation does: if the observed remaining time
// ever exceeds the configured duration, the target is rebased from now.
type Timeout struct {
	infinite    bool
	nonBlocking bool
	duration    time.Duration
	target      time.Time
}

// NewTimeout builds a Timeout from an optional duration. Pass nil for
// infinite, a zero duration for non-blocking, and a positive duration for a
// deadline of now+d.
func NewTimeout(d *time.Duration) Timeout {
	if d == nil {
		return Timeout{infinite: true}
	}
	t := Timeout{duration: *d}
	if *d == 0 {
		t.nonBlocking = true
		return t
	}
	t.target = time.Now().Add(*d)
	return t
}

// NewTimeoutDuration is a convenience constructor for a finite duration
// (the common case at call sites that already know they are not infinite).
// A zero duration yields a non-blocking, already expired timeout.
func NewTimeoutDuration(d time.Duration) Timeout {
	return NewTimeout(&d)
}

// Expired reports whether the timeout is finite and has no time left.
func (t *Timeout) Expired() bool {
	return !t.infinite && t.TimeLeft() <= 0
}

// TimeLeft returns how much time remains. For an infinite timeout it
// returns the largest representable duration; callers that need to
// distinguish infinite should check IsInfinite first.
func (t *Timeout) TimeLeft() time.Duration {
	if t.nonBlocking {
		return 0
	}
	if t.infinite {
		return time.Duration(1<<63 - 1)
	}
	delta := time.Until(t.target)
	if delta > t.duration {
		// clock jumped forward unexpectedly; rebase
		t.target = time.Now().Add(t.duration)
		return t.duration
	}
	if delta < 0 {
		return 0
	}
	return delta
}

// Restart rebases the timeout to now+d, turning it finite if it was not
// already; d == 0 makes it non-blocking, any other d makes it blocking.
func (t *Timeout) Restart(d time.Duration) {
	t.infinite = false
	t.nonBlocking = d == 0
	t.duration = d
	t.target = time.Now().Add(d)
}

// IsInfinite reports whether this timeout never expires.
func (t *Timeout) IsInfinite() bool { return t.infinite }

// IsNonBlocking reports whether this timeout is already expired by
// construction.
func (t *Timeout) IsNonBlocking() bool { return t.nonBlocking }

// Context derives a context.Context carrying this timeout as a deadline,
// along with its cancel function. Callers must always call cancel.
func (t *Timeout) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if t.infinite {
		return context.WithCancel(parent)
	}
	if t.nonBlocking {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, cancel
	}
	return context.WithDeadline(parent, t.target)
}
