package live

import (
	"testing"
)

func loudFrame(n int) []float32 {
	frame := make([]float32, n)
	for i := range frame {
		frame[i] = 0.3
	}
	return frame
}

func TestCapturePipeline_SilenceBelowThreshold(t *testing.T) {
	p := NewCapturePipeline(16000, 0.02)

	quiet := make([]float32, 4096)
	for i := range quiet {
		quiet[i] = 0.01
	}
	speaking, pcm := p.ProcessFrame(quiet, false)
	if speaking {
		t.Error("frame below RMS threshold must not report speaking")
	}
	if pcm == nil {
		t.Error("quiet frames are still transmitted")
	}
}

func TestCapturePipeline_SpeechAboveThreshold(t *testing.T) {
	p := NewCapturePipeline(16000, 0.02)

	speaking, pcm := p.ProcessFrame(loudFrame(4096), false)
	if !speaking {
		t.Error("frame above RMS threshold must report speaking")
	}
	if len(pcm) != 4096*2 {
		t.Errorf("expected %d PCM bytes, got %d", 4096*2, len(pcm))
	}
}

func TestCapturePipeline_MutedDropsFrame(t *testing.T) {
	p := NewCapturePipeline(16000, 0.02)

	speaking, pcm := p.ProcessFrame(loudFrame(4096), true)
	if speaking {
		t.Error("muted frames must report speaking=false regardless of amplitude")
	}
	if pcm != nil {
		t.Error("muted frames must not be transmitted")
	}
}

func TestCapturePipeline_MimeType(t *testing.T) {
	if got := NewCapturePipeline(16000, 0.02).MimeType(); got != "audio/pcm;rate=16000" {
		t.Errorf("unexpected mime type %q", got)
	}
	if got := NewCapturePipeline(44100, 0.02).MimeType(); got != "audio/pcm" {
		t.Errorf("unexpected mime type for unusual rate: %q", got)
	}
}
