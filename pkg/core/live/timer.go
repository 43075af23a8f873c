package live

import (
	"sort"
)

// TimerSignalKind distinguishes the outcomes of one timer tick.
type TimerSignalKind int

const (
	// TimerWarning fires once per configured remaining-time threshold.
	TimerWarning TimerSignalKind = iota
	// TimerExpired fires once when the budget reaches zero.
	TimerExpired
)

// TimerSignal is one threshold crossing produced by SessionTimer.Tick.
type TimerSignal struct {
	Kind      TimerSignalKind
	Remaining int
}

// SessionTimer tracks the interview time budget. It does not count down until
// armed; arming happens after the interviewer's first completed turn so that
// connection setup time is not charged against the candidate.
//
// The controller only calls Tick while the session is connected, which gives
// the pause-on-reconnect behavior for free: remaining seconds and the armed
// flag survive, the countdown simply stops until ticks resume.
type SessionTimer struct {
	remaining int
	armed     bool
	expired   bool
	warnAt    []int
	warned    map[int]bool
}

// NewSessionTimer creates a timer with the given budget and warning thresholds.
func NewSessionTimer(budgetSeconds int, warnAt []int) *SessionTimer {
	thresholds := make([]int, 0, len(warnAt))
	for _, w := range warnAt {
		if w > 0 && w < budgetSeconds {
			thresholds = append(thresholds, w)
		}
	}
	// Deliver warnings in descending order when one tick crosses several.
	sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))

	return &SessionTimer{
		remaining: budgetSeconds,
		warnAt:    thresholds,
		warned:    make(map[int]bool, len(thresholds)),
	}
}

// Arm starts the countdown. Arming an armed timer is a no-op.
func (t *SessionTimer) Arm() {
	t.armed = true
}

// Armed reports whether the countdown has started.
func (t *SessionTimer) Armed() bool {
	return t.armed
}

// Remaining returns the remaining seconds, floored at zero.
func (t *SessionTimer) Remaining() int {
	return t.remaining
}

// Expired reports whether the budget has run out.
func (t *SessionTimer) Expired() bool {
	return t.expired
}

// Tick counts one second down and returns any threshold signals. Warnings and
// expiry each fire at most once per session, regardless of how often the
// boundary value is observed. Ticks before arming or after expiry do nothing.
func (t *SessionTimer) Tick() []TimerSignal {
	if !t.armed || t.expired {
		return nil
	}
	if t.remaining > 0 {
		t.remaining--
	}

	var signals []TimerSignal
	for _, w := range t.warnAt {
		if t.remaining <= w && !t.warned[w] {
			t.warned[w] = true
			signals = append(signals, TimerSignal{Kind: TimerWarning, Remaining: w})
		}
	}
	if t.remaining <= 0 && !t.expired {
		t.expired = true
		signals = append(signals, TimerSignal{Kind: TimerExpired, Remaining: 0})
	}
	return signals
}
