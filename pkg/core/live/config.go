package live

import (
	"time"
)

const (
	// DefaultModel is used when the credential does not name a model.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

	// DefaultVoice is the synthesis voice used when the topic does not pick one.
	DefaultVoice = "Aoede"
)

// Config holds all tunables for a live interview session. The numeric
// defaults are empirically chosen values carried over from production; they
// are exposed as configuration rather than hard-coded so tests and future
// tuning can adjust them.
type Config struct {
	// CaptureSampleRate is the microphone capture rate in Hz. Default: 16000.
	CaptureSampleRate int `json:"capture_sample_rate"`

	// PlaybackSampleRate is the synthesized speech output rate in Hz. Default: 24000.
	PlaybackSampleRate int `json:"playback_sample_rate"`

	// FrameSamples is the number of samples per capture frame. Default: 4096.
	FrameSamples int `json:"frame_samples"`

	// SilenceRMS is the RMS amplitude below which a capture frame counts as
	// silence for the userSpeaking indicator. Default: 0.02.
	SilenceRMS float64 `json:"silence_rms"`

	// BudgetSeconds is the total interview time budget. Default: 900 (15 min).
	BudgetSeconds int `json:"budget_seconds"`

	// WarningSeconds are the remaining-time thresholds at which a one-shot
	// warning fires. Default: 300 and 120.
	WarningSeconds []int `json:"warning_seconds"`

	// WarningDisplay is how long a warning stays visible before it is
	// auto-dismissed. Default: 5s.
	WarningDisplay time.Duration `json:"warning_display"`

	// MaxReconnectAttempts bounds automatic recovery from transport failures.
	// Default: 3.
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`

	// ReconnectBackoff is the base backoff; attempt n waits n×ReconnectBackoff.
	// Default: 1s.
	ReconnectBackoff time.Duration `json:"reconnect_backoff"`

	// GreetingDelay is how long after the socket opens the synthetic opening
	// prompt is sent, letting the socket stabilize. Default: 60ms.
	GreetingDelay time.Duration `json:"greeting_delay"`

	// TickInterval is how often the budget timer counts down one unit.
	// Default: 1s. Tests shorten or inflate it to control the countdown.
	TickInterval time.Duration `json:"tick_interval"`

	// EventBuffer is the capacity of the consumer event channel. Default: 100.
	EventBuffer int `json:"event_buffer"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		CaptureSampleRate:    16000,
		PlaybackSampleRate:   24000,
		FrameSamples:         4096,
		SilenceRMS:           0.02,
		BudgetSeconds:        900,
		WarningSeconds:       []int{300, 120},
		WarningDisplay:       5 * time.Second,
		MaxReconnectAttempts: 3,
		ReconnectBackoff:     time.Second,
		GreetingDelay:        60 * time.Millisecond,
		TickInterval:         time.Second,
		EventBuffer:          100,
	}
}

// withDefaults fills zero fields with the production defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CaptureSampleRate <= 0 {
		c.CaptureSampleRate = d.CaptureSampleRate
	}
	if c.PlaybackSampleRate <= 0 {
		c.PlaybackSampleRate = d.PlaybackSampleRate
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = d.FrameSamples
	}
	if c.SilenceRMS <= 0 {
		c.SilenceRMS = d.SilenceRMS
	}
	if c.BudgetSeconds <= 0 {
		c.BudgetSeconds = d.BudgetSeconds
	}
	if c.WarningSeconds == nil {
		c.WarningSeconds = d.WarningSeconds
	}
	if c.WarningDisplay <= 0 {
		c.WarningDisplay = d.WarningDisplay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = d.ReconnectBackoff
	}
	if c.GreetingDelay <= 0 {
		c.GreetingDelay = d.GreetingDelay
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}
