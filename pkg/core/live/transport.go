package live

import (
	"context"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// PCMMimeType returns the mime metadata tag for raw little-endian 16-bit PCM
// at the given sample rate, as expected by the realtime voice endpoint.
func PCMMimeType(sampleRate int) string {
	switch sampleRate {
	case 16000:
		return "audio/pcm;rate=16000"
	case 24000:
		return "audio/pcm;rate=24000"
	default:
		return "audio/pcm"
	}
}

// ConnectConfig carries everything the transport needs to open one streaming
// connection to the realtime voice endpoint.
type ConnectConfig struct {
	// Token is the single-use session credential.
	Token string

	// Model is the realtime model identifier to connect to.
	Model string

	// SystemInstruction is the interviewer persona prompt.
	SystemInstruction string

	// Voice names the synthesis voice.
	Voice string
}

// ConnEvent is an event produced by an open realtime connection. The
// callback-shaped remote API is mapped to this enum so the controller can
// consume everything through one transition function.
type ConnEvent interface {
	connEventType() string
}

// AudioChunkEvent carries a chunk of synthesized speech as little-endian
// 16-bit PCM at the playback sample rate.
type AudioChunkEvent struct {
	Data []byte
}

func (AudioChunkEvent) connEventType() string { return "audio_chunk" }

// InputTranscriptEvent carries partial transcript text of the candidate's speech.
type InputTranscriptEvent struct {
	Text string
}

func (InputTranscriptEvent) connEventType() string { return "input_transcript" }

// OutputTranscriptEvent carries partial transcript text of the model's speech.
type OutputTranscriptEvent struct {
	Text string
}

func (OutputTranscriptEvent) connEventType() string { return "output_transcript" }

// TurnCompleteEvent marks a turn boundary: the model finished its turn.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) connEventType() string { return "turn_complete" }

// InterruptedEvent signals that the candidate barged in while the model was
// speaking; all scheduled playback must be dropped immediately.
type InterruptedEvent struct{}

func (InterruptedEvent) connEventType() string { return "interrupted" }

// ClosedEvent is the final event on a connection's event channel. Err is nil
// for an orderly close.
type ClosedEvent struct {
	Err error
}

func (ClosedEvent) connEventType() string { return "closed" }

// Conn is one open realtime connection.
type Conn interface {
	// SendAudio transmits one encoded microphone frame tagged with PCM mime
	// metadata. Best-effort: the capture loop swallows failures.
	SendAudio(pcm []byte, mimeType string) error

	// SendText submits a text turn (used once, for the synthetic opening prompt).
	SendText(text string, turnComplete bool) error

	// Events yields inbound events. The channel is closed after ClosedEvent.
	Events() <-chan ConnEvent

	// Close tears the connection down. Idempotent; already-closed errors are
	// swallowed.
	Close() error
}

// RealtimeVoiceTransport opens streaming connections to the voice model
// endpoint. Injected so the controller is testable without network access.
type RealtimeVoiceTransport interface {
	Connect(ctx context.Context, cfg ConnectConfig) (Conn, error)
}

// MicrophoneSource is the injected capture capability. One stream is acquired
// per session lifetime and reused across reconnects.
type MicrophoneSource interface {
	// Start begins capture and returns the frame channel. Frames are float
	// samples in [-1, 1] at the capture sample rate. The channel is closed
	// when the source is closed or ctx is done.
	Start(ctx context.Context) (<-chan []float32, error)

	// SetEnabled toggles the underlying track(s); disabled tracks still
	// produce frames but the pipeline drops them. No-op before Start.
	SetEnabled(enabled bool)

	// Close releases the stream. Idempotent.
	Close() error
}

// PlaybackHandle refers to one scheduled audio segment.
type PlaybackHandle interface {
	// Stop cancels the segment, scheduled or playing. Its completion callback
	// must not fire afterwards.
	Stop()
}

// AudioSink is the injected playback capability: an output clock plus
// schedule-at semantics.
type AudioSink interface {
	// Now returns the sink clock position in seconds.
	Now() float64

	// PlayAt schedules samples to start at startAt seconds on the sink clock,
	// invoking onDone exactly once when the segment finishes naturally.
	PlayAt(samples []float32, startAt float64, onDone func()) (PlaybackHandle, error)

	// Close releases the output device. Idempotent.
	Close() error
}

// Backend is the collaborator contract consumed by the controller. The
// production implementation is the sdk HTTP client; tests use a fake.
type Backend interface {
	// FetchSessionCredential returns a fresh single-use credential for sessionID.
	FetchSessionCredential(ctx context.Context, sessionID string) (types.Credential, error)

	// PostTranscriptTurn appends one completed turn. Best-effort: the
	// controller neither retries nor aborts the session on failure.
	PostTranscriptTurn(ctx context.Context, sessionID string, speaker types.Speaker, text string) error

	// GenerateReport triggers backend-side scoring and waits for completion.
	GenerateReport(ctx context.Context, sessionID string) error
}
