package live

// Status is the single authoritative health value for an interview session.
// All components branch on it rather than keeping private "is it over" flags.
type Status int

const (
	// StatusConnecting is the initial state while a connection attempt is in flight.
	StatusConnecting Status = iota
	// StatusConnected is when the realtime socket is open and the interview is live.
	StatusConnected
	// StatusReconnecting is when an unexpected close is being recovered; a new
	// attempt is auto-scheduled after backoff.
	StatusReconnecting
	// StatusAnalyzing is when the session has ended and the report is being produced.
	StatusAnalyzing
	// StatusError is terminal: retries exhausted, setup failed, or report
	// generation failed.
	StatusError
	// StatusDisconnected is the idle/cleanup state after teardown without an end.
	StatusDisconnected
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusReconnecting:
		return "RECONNECTING"
	case StatusAnalyzing:
		return "ANALYZING"
	case StatusError:
		return "ERROR"
	case StatusDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further live activity can happen in s.
func (s Status) Terminal() bool {
	return s == StatusError || s == StatusAnalyzing
}
