package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/observe"
)

// internalEvent is one input to the controller's transition loop. Every
// mutation of session state happens inside the loop, one event at a time.
type internalEvent interface {
	internalEventType() string
}

type evSetupFailed struct{ err error }
type evConnOpened struct {
	seq  int
	conn Conn
}
type evConnFailed struct {
	seq int
	err error
}
type evConnEvent struct {
	seq int
	ev  ConnEvent
}
type evReconnect struct{ seq int }
type evSendGreeting struct{ seq int }
type evMicFrame struct{ frame []float32 }
type evTick struct{}
type evToggleMute struct{}
type evEndRequested struct{ reason string }
type evReportDone struct{ err error }
type evAISpeaking struct{ speaking bool }
type evWarningDismiss struct{}

func (evSetupFailed) internalEventType() string    { return "setup_failed" }
func (evConnOpened) internalEventType() string     { return "conn_opened" }
func (evConnFailed) internalEventType() string     { return "conn_failed" }
func (evConnEvent) internalEventType() string      { return "conn_event" }
func (evReconnect) internalEventType() string      { return "reconnect" }
func (evSendGreeting) internalEventType() string   { return "send_greeting" }
func (evMicFrame) internalEventType() string       { return "mic_frame" }
func (evTick) internalEventType() string           { return "tick" }
func (evToggleMute) internalEventType() string     { return "toggle_mute" }
func (evEndRequested) internalEventType() string   { return "end_requested" }
func (evReportDone) internalEventType() string     { return "report_done" }
func (evAISpeaking) internalEventType() string     { return "ai_speaking" }
func (evWarningDismiss) internalEventType() string { return "warning_dismiss" }

// sessionState is the single mutable record for one session. It is owned
// exclusively by the controller loop; nothing outside the loop writes it.
type sessionState struct {
	status       Status
	errMessage   string
	attemptSeq   int
	retries      int
	conn         Conn
	micActive    bool
	muted        bool
	userSpeaking bool
	aiSpeaking   bool
	greeted      bool
	ending       bool
}

// Controller owns the entire lifecycle of one interview session from connect
// to report-ready. It coordinates transport (with sequence-guarded
// reconnection), the capture and playback pipelines, transcript
// accumulation, and the budget timer, and it drives the final transcript
// flush and report handoff.
type Controller struct {
	cfg     Config
	session types.Session

	transport RealtimeVoiceTransport
	backend   Backend
	mic       MicrophoneSource
	sink      AudioSink

	logger  *slog.Logger
	metrics *observe.Metrics

	capture    *CapturePipeline
	playback   *PlaybackQueue
	timer      *SessionTimer
	transcript *TurnAccumulator

	onReportReady func(sessionID string)

	events chan Event
	intern chan internalEvent
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	startedAt time.Time

	// status mirrors st.status for lock-free reads outside the loop. The
	// loop is the only writer.
	status atomic.Int32

	st sessionState
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics instance. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithReportReadyFunc registers the report-ready notification invoked once
// report generation succeeds.
func WithReportReadyFunc(fn func(sessionID string)) Option {
	return func(c *Controller) { c.onReportReady = fn }
}

// NewController creates a controller for one interview session. The injected
// capabilities are exclusively owned by the controller: the microphone
// stream and audio sink are acquired once and released on final teardown.
func NewController(
	cfg Config,
	session types.Session,
	transport RealtimeVoiceTransport,
	backend Backend,
	mic MicrophoneSource,
	sink AudioSink,
	opts ...Option,
) *Controller {
	cfg = cfg.withDefaults()

	c := &Controller{
		cfg:        cfg,
		session:    session,
		transport:  transport,
		backend:    backend,
		mic:        mic,
		sink:       sink,
		logger:     slog.Default(),
		metrics:    observe.DefaultMetrics(),
		capture:    NewCapturePipeline(cfg.CaptureSampleRate, cfg.SilenceRMS),
		playback:   NewPlaybackQueue(sink, cfg.PlaybackSampleRate),
		timer:      NewSessionTimer(cfg.BudgetSeconds, cfg.WarningSeconds),
		transcript: NewTurnAccumulator(),
		events:     make(chan Event, cfg.EventBuffer),
		intern:     make(chan internalEvent, 256),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.st.status = StatusConnecting
	c.status.Store(int32(StatusConnecting))
	c.playback.SetSpeakingFunc(func(speaking bool) {
		c.post(evAISpeaking{speaking: speaking})
	})
	return c
}

// Events returns the channel of consumer-facing session events.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	return Status(c.status.Load())
}

// Start acquires the microphone, begins the transition loop, and launches the
// first connection attempt. A microphone failure is a setup failure: the
// session lands in the terminal error status and the error is returned.
func (c *Controller) Start(ctx context.Context) error {
	var startErr error
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.startedAt = time.Now()

		frames, err := c.mic.Start(c.ctx)
		if err != nil {
			startErr = fmt.Errorf("microphone unavailable: %w", err)
			c.started.Store(true)
			go c.run()
			c.post(evSetupFailed{err: startErr})
			return
		}
		// micActive is written before the loop goroutine exists, so the
		// loop-ownership discipline holds from here on.
		c.st.micActive = true
		c.started.Store(true)

		go c.run()
		go c.micPump(frames)

		c.metrics.SessionsStarted.Add(c.ctx, 1)
		c.metrics.ActiveSessions.Add(c.ctx, 1)

		c.post(evReconnect{seq: 1})
	})
	return startErr
}

// End requests an explicit end of the session. Idempotent: a second request
// while already analyzing is a no-op.
func (c *Controller) End() {
	c.post(evEndRequested{reason: "user"})
}

// ToggleMute flips the mute flag and the underlying track enablement. It has
// no effect if no microphone stream is active.
func (c *Controller) ToggleMute() {
	c.post(evToggleMute{})
}

// Close tears everything down and waits for the loop to exit. Safe to call
// multiple times and from any state.
func (c *Controller) Close() error {
	if !c.started.Load() {
		return nil
	}
	c.closeOnce.Do(func() {
		c.cancel()
	})
	<-c.done
	return nil
}

// post delivers an event to the loop unless the controller is already done.
func (c *Controller) post(ev internalEvent) {
	select {
	case c.intern <- ev:
	case <-c.done:
	}
}

// emit delivers a consumer event without ever blocking the loop. A lagging
// consumer loses events rather than stalling the interview.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Debug("event dropped, consumer lagging", "event", ev.EventType())
	}
}

// micPump forwards capture frames into the loop.
func (c *Controller) micPump(frames <-chan []float32) {
	for frame := range frames {
		c.post(evMicFrame{frame: frame})
	}
}

// readPump forwards connection events into the loop tagged with the attempt
// sequence so stale attempts can be discarded.
func (c *Controller) readPump(seq int, conn Conn) {
	for ev := range conn.Events() {
		c.post(evConnEvent{seq: seq, ev: ev})
	}
}

// run is the transition loop. It owns all session state.
func (c *Controller) run() {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	defer c.finalize()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.handleTick()
		case ev := <-c.intern:
			c.apply(ev)
		}
	}
}

// apply is the single transition function: one event in, one state update out.
func (c *Controller) apply(ev internalEvent) {
	switch e := ev.(type) {
	case evSetupFailed:
		c.fail(e.err.Error())
	case evConnOpened:
		c.handleConnOpened(e)
	case evConnFailed:
		c.handleDisconnect(e.seq, e.err)
	case evConnEvent:
		c.handleConnEvent(e)
	case evReconnect:
		c.handleReconnect(e)
	case evSendGreeting:
		c.handleSendGreeting(e)
	case evMicFrame:
		c.handleMicFrame(e.frame)
	case evTick:
		c.handleTick()
	case evToggleMute:
		c.handleToggleMute()
	case evEndRequested:
		c.endSession(e.reason)
	case evReportDone:
		c.handleReportDone(e.err)
	case evAISpeaking:
		c.setAISpeaking(e.speaking)
	case evWarningDismiss:
		c.emit(&TimeWarningDismissedEvent{})
	}
}

// handleReconnect starts connection attempt seq. Stale or superseded
// attempts are ignored.
func (c *Controller) handleReconnect(e evReconnect) {
	if c.st.ending || c.st.status == StatusError {
		return
	}
	if e.seq < c.st.attemptSeq {
		return
	}
	c.st.attemptSeq = e.seq
	c.setStatus(StatusConnecting)
	go c.dial(e.seq)
}

// dial fetches a fresh credential and opens the streaming socket. Runs off
// the loop; results come back as events tagged with seq.
func (c *Controller) dial(seq int) {
	cred, err := c.backend.FetchSessionCredential(c.ctx, c.session.ID)
	if err != nil {
		c.post(evConnFailed{seq: seq, err: fmt.Errorf("fetch session credential: %w", err)})
		return
	}

	model := cred.Model
	if model == "" {
		model = DefaultModel
	}
	voice := c.session.Topic.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	conn, err := c.transport.Connect(c.ctx, ConnectConfig{
		Token:             cred.Token,
		Model:             model,
		SystemInstruction: c.session.Topic.Persona,
		Voice:             voice,
	})
	if err != nil {
		c.post(evConnFailed{seq: seq, err: err})
		return
	}
	c.post(evConnOpened{seq: seq, conn: conn})
}

func (c *Controller) handleConnOpened(e evConnOpened) {
	if e.seq != c.st.attemptSeq || c.st.ending || c.st.status == StatusError {
		// A superseded attempt resolved late; its socket must not survive.
		_ = e.conn.Close()
		return
	}

	c.st.conn = e.conn
	c.st.retries = 0
	c.setStatus(StatusConnected)
	go c.readPump(e.seq, e.conn)

	if !c.st.greeted && c.session.Topic.OpeningPrompt != "" {
		c.st.greeted = true
		seq := e.seq
		time.AfterFunc(c.cfg.GreetingDelay, func() {
			c.post(evSendGreeting{seq: seq})
		})
	}
}

// handleSendGreeting sends the synthetic opening prompt as a completed user
// turn to elicit the interviewer's greeting.
func (c *Controller) handleSendGreeting(e evSendGreeting) {
	if e.seq != c.st.attemptSeq || c.st.conn == nil || c.st.ending {
		return
	}
	if err := c.st.conn.SendText(c.session.Topic.OpeningPrompt, true); err != nil {
		c.nonFatal("send_opening_prompt", err)
	}
}

func (c *Controller) handleConnEvent(e evConnEvent) {
	if e.seq != c.st.attemptSeq {
		return
	}

	switch ev := e.ev.(type) {
	case AudioChunkEvent:
		if err := c.playback.Enqueue(ev.Data); err != nil {
			c.nonFatal("playback_enqueue", err)
		}
	case InputTranscriptEvent:
		c.transcript.Append(types.SpeakerUser, ev.Text)
		c.emit(&TranscriptDeltaEvent{Speaker: types.SpeakerUser, Text: ev.Text})
	case OutputTranscriptEvent:
		c.transcript.Append(types.SpeakerAI, ev.Text)
		c.emit(&TranscriptDeltaEvent{Speaker: types.SpeakerAI, Text: ev.Text})
	case TurnCompleteEvent:
		c.flushTurn(types.SpeakerUser)
		c.flushTurn(types.SpeakerAI)
		if !c.timer.Armed() && c.st.status == StatusConnected {
			c.timer.Arm()
		}
	case InterruptedEvent:
		c.playback.Interrupt()
	case ClosedEvent:
		c.handleDisconnect(e.seq, ev.Err)
	}
}

// handleDisconnect applies the bounded-retry policy to an unexpected close,
// a transport error, or a failed connection attempt.
func (c *Controller) handleDisconnect(seq int, err error) {
	if seq != c.st.attemptSeq {
		return
	}
	if c.st.ending || c.st.status == StatusAnalyzing || c.st.status == StatusError {
		return
	}

	if c.st.conn != nil {
		_ = c.st.conn.Close()
		c.st.conn = nil
	}

	c.st.retries++
	if c.st.retries > c.cfg.MaxReconnectAttempts {
		msg := "connection lost"
		if err != nil {
			msg = fmt.Sprintf("connection lost: %v", err)
		}
		c.fail(msg)
		return
	}

	// Transcript buffers and timer state survive recovery untouched.
	c.setStatus(StatusReconnecting)
	c.metrics.Reconnects.Add(c.ctx, 1, metric.WithAttributes(attribute.Int("attempt", c.st.retries)))
	if err != nil {
		c.logger.Warn("transport lost, reconnecting",
			"session_id", c.session.ID, "attempt", c.st.retries, "error", err)
	}

	c.st.attemptSeq++
	seqNext := c.st.attemptSeq
	delay := time.Duration(c.st.retries) * c.cfg.ReconnectBackoff
	time.AfterFunc(delay, func() {
		c.post(evReconnect{seq: seqNext})
	})
}

func (c *Controller) handleMicFrame(frame []float32) {
	speaking, pcm := c.capture.ProcessFrame(frame, c.st.muted)
	c.setUserSpeaking(speaking)

	if pcm == nil || c.st.conn == nil || c.st.status != StatusConnected {
		return
	}
	if err := c.st.conn.SendAudio(pcm, c.capture.MimeType()); err != nil {
		// Best-effort; a dropped frame never crashes the capture loop.
		c.nonFatal("send_audio", err)
	}
}

// handleTick counts the budget down while the timer is armed and the session
// is connected. Leaving the connected status pauses the countdown; remaining
// seconds and the armed flag are preserved for resume.
func (c *Controller) handleTick() {
	if c.st.status != StatusConnected || !c.timer.Armed() {
		return
	}

	signals := c.timer.Tick()
	c.emit(&TimerTickEvent{RemainingSeconds: c.timer.Remaining()})

	for _, sig := range signals {
		switch sig.Kind {
		case TimerWarning:
			c.emit(&TimeWarningEvent{
				RemainingSeconds: sig.Remaining,
				Message:          fmt.Sprintf("%d minutes remaining", sig.Remaining/60),
			})
			time.AfterFunc(c.cfg.WarningDisplay, func() {
				c.post(evWarningDismiss{})
			})
		case TimerExpired:
			c.endSession("time budget exhausted")
		}
	}
}

func (c *Controller) handleToggleMute() {
	if !c.st.micActive {
		return
	}
	c.st.muted = !c.st.muted
	c.mic.SetEnabled(!c.st.muted)
	c.emit(&MutedEvent{Muted: c.st.muted})
	if c.st.muted {
		c.setUserSpeaking(false)
	}
}

// flushTurn posts the speaker's buffered turn to the backend. Mid-session
// flushes are fire-and-forget; failures never change the session status.
func (c *Controller) flushTurn(speaker types.Speaker) {
	text := c.transcript.Take(speaker)
	if text == "" {
		return
	}
	go func() {
		if err := c.backend.PostTranscriptTurn(c.ctx, c.session.ID, speaker, text); err != nil {
			c.nonFatal("post_transcript", err)
			c.metrics.TranscriptTurns.Add(c.ctx, 1, metric.WithAttributes(
				attribute.String("speaker", string(speaker)), attribute.String("status", "error")))
			return
		}
		c.metrics.TranscriptTurns.Add(c.ctx, 1, metric.WithAttributes(
			attribute.String("speaker", string(speaker)), attribute.String("status", "ok")))
	}()
}

// endSession runs the end-of-session procedure: suppress reconnects, move to
// analyzing, tear the media stack down, flush pending transcript, then
// request the report. Idempotent.
func (c *Controller) endSession(reason string) {
	if c.st.ending || c.st.status == StatusError {
		return
	}
	c.st.ending = true
	c.logger.Info("ending session", "session_id", c.session.ID, "reason", reason)

	c.setStatus(StatusAnalyzing)
	c.teardownMedia()

	userText := c.transcript.Take(types.SpeakerUser)
	aiText := c.transcript.Take(types.SpeakerAI)
	go c.finishReport(userText, aiText)
}

// teardownMedia closes the socket, releases the microphone, clears scheduled
// playback (cursor back to zero), and closes the output device. Safe to run
// from any state and more than once.
func (c *Controller) teardownMedia() {
	if c.st.conn != nil {
		_ = c.st.conn.Close()
		c.st.conn = nil
	}
	c.playback.Interrupt()
	if c.st.micActive {
		c.st.micActive = false
		_ = c.mic.Close()
	}
	_ = c.sink.Close()
	c.setUserSpeaking(false)
}

// finishReport flushes both speakers' pending turns concurrently, waits for
// both, then requests report generation. Flush failures stay non-fatal; the
// report is requested regardless, but never before both flushes finish.
func (c *Controller) finishReport(userText, aiText string) {
	var g errgroup.Group
	for _, turn := range []struct {
		speaker types.Speaker
		text    string
	}{
		{types.SpeakerUser, userText},
		{types.SpeakerAI, aiText},
	} {
		if turn.text == "" {
			continue
		}
		speaker, text := turn.speaker, turn.text
		g.Go(func() error {
			if err := c.backend.PostTranscriptTurn(c.ctx, c.session.ID, speaker, text); err != nil {
				c.nonFatal("final_transcript_flush", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	start := time.Now()
	err := c.backend.GenerateReport(c.ctx, c.session.ID)
	c.metrics.ReportDuration.Record(c.ctx, time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.ReportRequests.Add(c.ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	c.post(evReportDone{err: err})
}

func (c *Controller) handleReportDone(err error) {
	if err != nil {
		c.fail(fmt.Sprintf("report generation failed: %v", err))
		return
	}
	c.emit(&ReportReadyEvent{SessionID: c.session.ID})
	if c.onReportReady != nil {
		c.onReportReady(c.session.ID)
	}
}

// fail moves the session to the terminal error status with a user-facing
// message.
func (c *Controller) fail(message string) {
	if c.st.status == StatusError {
		return
	}
	c.st.errMessage = message
	c.logger.Error("session failed", "session_id", c.session.ID, "message", message)
	c.setStatusMessage(StatusError, message)
	c.emit(&SessionErrorEvent{Message: message})
	c.teardownMedia()
}

// nonFatal records a best-effort failure: logged and counted, never status.
func (c *Controller) nonFatal(op string, err error) {
	c.logger.Debug("non-fatal failure", "session_id", c.session.ID, "op", op, "error", err)
	c.metrics.NonFatalErrors.Add(c.ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (c *Controller) setStatus(status Status) {
	c.setStatusMessage(status, "")
}

func (c *Controller) setStatusMessage(status Status, message string) {
	if c.st.status == status {
		return
	}
	from := c.st.status
	c.st.status = status
	c.status.Store(int32(status))
	c.emit(&StatusChangedEvent{From: from, To: status, Message: message})
}

func (c *Controller) setUserSpeaking(speaking bool) {
	if c.st.userSpeaking == speaking {
		return
	}
	c.st.userSpeaking = speaking
	c.emit(&UserSpeakingEvent{Speaking: speaking})
}

func (c *Controller) setAISpeaking(speaking bool) {
	if c.st.aiSpeaking == speaking {
		return
	}
	c.st.aiSpeaking = speaking
	c.emit(&AISpeakingEvent{Speaking: speaking})
}

// finalize runs when the loop exits: release everything and settle the
// status for cleanup if the session was still live.
func (c *Controller) finalize() {
	c.teardownMedia()
	if !c.st.status.Terminal() {
		c.setStatus(StatusDisconnected)
	}
	c.metrics.ActiveSessions.Add(context.Background(), -1)
	c.metrics.SessionDuration.Record(context.Background(), time.Since(c.startedAt).Seconds())
	close(c.done)
	close(c.events)
}
