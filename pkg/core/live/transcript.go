package live

import (
	"strings"
	"sync"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// TurnAccumulator buffers streaming partial transcript text per speaker.
// Each buffer holds at most one logical turn: a turn-complete boundary takes
// the buffered text out for flushing and clears it.
type TurnAccumulator struct {
	mu   sync.Mutex
	bufs map[types.Speaker]*strings.Builder
}

// NewTurnAccumulator creates an accumulator with empty buffers for both speakers.
func NewTurnAccumulator() *TurnAccumulator {
	return &TurnAccumulator{
		bufs: map[types.Speaker]*strings.Builder{
			types.SpeakerUser: {},
			types.SpeakerAI:   {},
		},
	}
}

// Append adds partial text to the speaker's current turn.
func (a *TurnAccumulator) Append(speaker types.Speaker, text string) {
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.bufs[speaker]; ok {
		b.WriteString(text)
	}
}

// Take returns the speaker's buffered turn and clears the buffer. Returns ""
// when nothing is buffered.
func (a *TurnAccumulator) Take(speaker types.Speaker) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bufs[speaker]
	if !ok {
		return ""
	}
	text := b.String()
	b.Reset()
	return text
}

// Pending reports whether the speaker has buffered text awaiting a boundary.
func (a *TurnAccumulator) Pending(speaker types.Speaker) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bufs[speaker]
	return ok && b.Len() > 0
}
