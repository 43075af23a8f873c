// Package genailive implements the realtime voice transport against the
// Gemini Live BidiGenerateContent websocket API, authenticating with the
// single-use ephemeral token minted by the backend.
package genailive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/live"
)

const (
	defaultEndpoint = "wss://generativelanguage.googleapis.com/ws/" +
		"google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"
	defaultConnectTimeout = 15 * time.Second
)

// Transport dials Gemini Live sessions. The zero value is not usable; use
// NewTransport.
type Transport struct {
	endpoint       string
	dialer         *websocket.Dialer
	connectTimeout time.Duration
	logger         *slog.Logger
}

// TransportOption customizes a Transport.
type TransportOption func(*Transport)

// WithEndpoint overrides the websocket endpoint. Used by tests and proxies.
func WithEndpoint(endpoint string) TransportOption {
	return func(t *Transport) {
		if endpoint != "" {
			t.endpoint = endpoint
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) TransportOption {
	return func(t *Transport) {
		if d != nil {
			t.dialer = d
		}
	}
}

// WithConnectTimeout bounds the dial-plus-handshake phase.
func WithConnectTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d > 0 {
			t.connectTimeout = d
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransport creates a Gemini Live transport.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		endpoint:       defaultEndpoint,
		dialer:         websocket.DefaultDialer,
		connectTimeout: defaultConnectTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the endpoint, performs the setup handshake, and returns a
// connection once the server acknowledges with setupComplete. The returned
// connection owns the socket; closing it is idempotent.
func (t *Transport) Connect(ctx context.Context, cfg live.ConnectConfig) (live.Conn, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("live connect: token is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("live connect: model is required")
	}

	wsURL, err := t.sessionURL(cfg.Token)
	if err != nil {
		return nil, err
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.connectTimeout)
		defer cancel()
	}

	sock, resp, err := t.dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("live dial failed: %w", err)
	}

	if err := sock.WriteJSON(clientFrame{Setup: buildSetup(cfg)}); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	_ = sock.SetReadDeadline(time.Now().Add(t.connectTimeout))
	var first serverFrame
	if err := sock.ReadJSON(&first); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("read setup ack: %w", err)
	}
	_ = sock.SetReadDeadline(time.Time{})
	if first.SetupComplete == nil {
		_ = sock.Close()
		return nil, fmt.Errorf("unexpected first live frame, want setupComplete")
	}

	c := &liveConn{
		sock:   sock,
		logger: t.logger,
		events: make(chan live.ConnEvent, 256),
	}
	go c.readLoop()
	return c, nil
}

func (t *Transport) sessionURL(token string) (string, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse live endpoint: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func buildSetup(cfg live.ConnectConfig) *setupPayload {
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	setup := &setupPayload{
		Model: model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: &voiceConfig{
					PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
		// Transcription of both audio directions drives the transcript
		// accumulation downstream.
		InputTranscription: &struct{}{},
		OutputTranscript:   &struct{}{},
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &content{
			Parts: []part{{Text: cfg.SystemInstruction}},
		}
	}
	return setup
}

// liveConn is one established Gemini Live session.
type liveConn struct {
	sock   *websocket.Conn
	logger *slog.Logger

	events chan live.ConnEvent

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

func (c *liveConn) SendAudio(pcm []byte, mimeType string) error {
	return c.sendJSON(clientFrame{
		RealtimeInput: &realtimeInputPayload{
			Audio: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(pcm),
			},
		},
	})
}

func (c *liveConn) SendText(text string, turnComplete bool) error {
	return c.sendJSON(clientFrame{
		ClientContent: &clientContentPayload{
			Turns: []content{{
				Role:  "user",
				Parts: []part{{Text: text}},
			}},
			TurnComplete: turnComplete,
		},
	})
}

func (c *liveConn) Events() <-chan live.ConnEvent {
	return c.events
}

func (c *liveConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.sock.Close()
	})
	return nil
}

func (c *liveConn) sendJSON(frame clientFrame) error {
	if c.closed.Load() {
		return fmt.Errorf("live connection is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteJSON(frame)
}

// readLoop decodes inbound frames into transport events until the socket
// dies. The consumer always drains the channel, so sends may block.
func (c *liveConn) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if c.closed.Load() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- live.ClosedEvent{}
				return
			}
			c.events <- live.ClosedEvent{Err: err}
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Debug("skipping undecodable live frame", "error", err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *liveConn) dispatch(frame serverFrame) {
	if frame.GoAway != nil {
		c.logger.Warn("live server going away", "time_left", frame.GoAway.TimeLeft)
		return
	}
	sc := frame.ServerContent
	if sc == nil {
		return
	}

	// Interruption first: stale audio parts in the same frame must not be
	// scheduled after the flush.
	if sc.Interrupted {
		c.events <- live.InterruptedEvent{}
		return
	}

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		c.events <- live.InputTranscriptEvent{Text: sc.InputTranscription.Text}
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		c.events <- live.OutputTranscriptEvent{Text: sc.OutputTranscription.Text}
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				c.logger.Debug("skipping undecodable audio part", "error", err)
				continue
			}
			c.events <- live.AudioChunkEvent{Data: pcm}
		}
	}
	if sc.TurnComplete {
		c.events <- live.TurnCompleteEvent{}
	}
}
