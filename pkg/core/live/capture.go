package live

// CapturePipeline turns raw microphone frames into outbound PCM while
// respecting mute state and computing the speech-activity indicator.
type CapturePipeline struct {
	silenceRMS float64
	mimeType   string
}

// NewCapturePipeline creates a pipeline for frames at sampleRate Hz using the
// given silence threshold.
func NewCapturePipeline(sampleRate int, silenceRMS float64) *CapturePipeline {
	return &CapturePipeline{
		silenceRMS: silenceRMS,
		mimeType:   PCMMimeType(sampleRate),
	}
}

// MimeType returns the PCM metadata tag attached to transmitted frames.
func (p *CapturePipeline) MimeType() string {
	return p.mimeType
}

// ProcessFrame evaluates one frame. Muted frames report speaking=false and
// produce nothing to transmit. Otherwise speaking reflects whether the RMS
// amplitude exceeds the silence threshold and pcm is the frame encoded as
// little-endian 16-bit PCM.
func (p *CapturePipeline) ProcessFrame(frame []float32, muted bool) (speaking bool, pcm []byte) {
	if muted || len(frame) == 0 {
		return false, nil
	}
	speaking = CalculateRMS(frame) > p.silenceRMS
	return speaking, FloatToPCM16(frame)
}
