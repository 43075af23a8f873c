package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// fakeConn is a scripted realtime connection. Tests push inbound events with
// push and inspect what the controller transmitted.
type fakeConn struct {
	mu        sync.Mutex
	events    chan ConnEvent
	sentAudio [][]byte
	sentMime  []string
	sentText  []sentText
	closed    bool
}

type sentText struct {
	text         string
	turnComplete bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan ConnEvent, 64)}
}

func (c *fakeConn) SendAudio(pcm []byte, mimeType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	c.sentAudio = append(c.sentAudio, buf)
	c.sentMime = append(c.sentMime, mimeType)
	return nil
}

func (c *fakeConn) SendText(text string, turnComplete bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentText = append(c.sentText, sentText{text: text, turnComplete: turnComplete})
	return nil
}

func (c *fakeConn) Events() <-chan ConnEvent { return c.events }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// push delivers an inbound event unless the connection is closed.
func (c *fakeConn) push(ev ConnEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.events <- ev
	}
}

// remoteClose simulates an unexpected close from the remote side: delivers
// ClosedEvent and shuts the event channel.
func (c *fakeConn) remoteClose(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.events <- ClosedEvent{Err: err}
		close(c.events)
	}
}

func (c *fakeConn) audioCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sentAudio)
}

func (c *fakeConn) mimes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sentMime))
	copy(out, c.sentMime)
	return out
}

func (c *fakeConn) texts() []sentText {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentText, len(c.sentText))
	copy(out, c.sentText)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeTransport scripts Connect per attempt number (1-based).
type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	configs []ConnectConfig
	handler func(call int, cfg ConnectConfig) (Conn, error)
}

func (t *fakeTransport) Connect(ctx context.Context, cfg ConnectConfig) (Conn, error) {
	t.mu.Lock()
	t.calls++
	call := t.calls
	t.configs = append(t.configs, cfg)
	h := t.handler
	t.mu.Unlock()
	return h(call, cfg)
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// fakeMic produces frames pushed by the test.
type fakeMic struct {
	mu      sync.Mutex
	frames  chan []float32
	enabled []bool
	started bool
	closed  bool
	err     error
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 64)}
}

func (m *fakeMic) Start(ctx context.Context) (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.started = true
	return m.frames, nil
}

func (m *fakeMic) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = append(m.enabled, enabled)
}

func (m *fakeMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started && !m.closed {
		m.closed = true
		close(m.frames)
	}
	return nil
}

func (m *fakeMic) push(frame []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && m.started {
		m.frames <- frame
	}
}

// fakeSink records scheduled segments against a manually advanced clock.
type fakeSink struct {
	mu   sync.Mutex
	now  float64
	segs []*fakeSegment
}

type fakeSegment struct {
	sink    *fakeSink
	samples []float32
	startAt float64
	onDone  func()
	stopped bool
	done    bool
}

func (s *fakeSegment) Stop() {
	s.sink.mu.Lock()
	s.stopped = true
	s.sink.mu.Unlock()
}

func newFakeSink() *fakeSink { return &fakeSink{} }

func (s *fakeSink) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeSink) setNow(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

func (s *fakeSink) PlayAt(samples []float32, startAt float64, onDone func()) (PlaybackHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg := &fakeSegment{sink: s, samples: samples, startAt: startAt, onDone: onDone}
	s.segs = append(s.segs, seg)
	return seg, nil
}

func (s *fakeSink) Close() error { return nil }

// completeNext finishes the oldest unfinished, unstopped segment.
func (s *fakeSink) completeNext() bool {
	s.mu.Lock()
	var seg *fakeSegment
	for _, candidate := range s.segs {
		if !candidate.done && !candidate.stopped {
			seg = candidate
			break
		}
	}
	if seg == nil {
		s.mu.Unlock()
		return false
	}
	seg.done = true
	onDone := seg.onDone
	s.mu.Unlock()
	onDone()
	return true
}

func (s *fakeSink) segments() []*fakeSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*fakeSegment, len(s.segs))
	copy(out, s.segs)
	return out
}

func (s *fakeSink) stoppedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, seg := range s.segs {
		if seg.stopped {
			n++
		}
	}
	return n
}

// fakeBackend records collaborator calls in arrival order.
type fakeBackend struct {
	mu          sync.Mutex
	cred        types.Credential
	credErr     error
	postErr     error
	reportErr   error
	postDelay   time.Duration
	ops         []string
	turns       []types.TranscriptTurn
	credCalls   int
	reportCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{cred: types.Credential{Token: "tok-1"}}
}

func (b *fakeBackend) FetchSessionCredential(ctx context.Context, sessionID string) (types.Credential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credCalls++
	b.ops = append(b.ops, "credential")
	if b.credErr != nil {
		return types.Credential{}, b.credErr
	}
	return b.cred, nil
}

func (b *fakeBackend) PostTranscriptTurn(ctx context.Context, sessionID string, speaker types.Speaker, text string) error {
	b.mu.Lock()
	delay := b.postDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, "post:"+string(speaker))
	b.turns = append(b.turns, types.TranscriptTurn{SessionID: sessionID, Speaker: speaker, Text: text})
	return b.postErr
}

func (b *fakeBackend) GenerateReport(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reportCalls++
	b.ops = append(b.ops, "report")
	return b.reportErr
}

func (b *fakeBackend) credCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.credCalls
}

func (b *fakeBackend) reportCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reportCalls
}

func (b *fakeBackend) opList() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.ops))
	copy(out, b.ops)
	return out
}

func (b *fakeBackend) turnList() []types.TranscriptTurn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.TranscriptTurn, len(b.turns))
	copy(out, b.turns)
	return out
}

// eventLog drains a controller's event channel in the background.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func collectEvents(c *Controller) *eventLog {
	log := &eventLog{}
	go func() {
		for ev := range c.Events() {
			log.mu.Lock()
			log.events = append(log.events, ev)
			log.mu.Unlock()
		}
	}()
	return log
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// statuses returns the status transition targets observed so far.
func (l *eventLog) statuses() []Status {
	var out []Status
	for _, ev := range l.snapshot() {
		if sc, ok := ev.(*StatusChangedEvent); ok {
			out = append(out, sc.To)
		}
	}
	return out
}

func (l *eventLog) count(eventType string) int {
	n := 0
	for _, ev := range l.snapshot() {
		if ev.EventType() == eventType {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// testConfig returns a config with timings compressed for tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconnectBackoff = 2 * time.Millisecond
	cfg.GreetingDelay = time.Millisecond
	cfg.WarningDisplay = 5 * time.Millisecond
	cfg.TickInterval = time.Hour // ticks are driven manually
	return cfg
}

func testSession() types.Session {
	return types.Session{
		ID: "sess-1",
		Topic: types.Topic{
			Title:         "Backend Engineer",
			Persona:       "You are a rigorous but friendly technical interviewer.",
			OpeningPrompt: "Please greet the candidate and begin.",
		},
		CandidateName: "Jordan",
	}
}
