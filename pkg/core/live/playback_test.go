package live

import (
	"math"
	"testing"
)

// pcmOfDuration builds silent 16-bit PCM lasting seconds at rate Hz.
func pcmOfDuration(seconds float64, rate int) []byte {
	return make([]byte, int(seconds*float64(rate))*2)
}

func TestPlaybackQueue_ContiguousScheduling(t *testing.T) {
	sink := newFakeSink()
	q := NewPlaybackQueue(sink, 24000)

	durations := []float64{0.5, 0.25, 1.0}
	for _, d := range durations {
		if err := q.Enqueue(pcmOfDuration(d, 24000)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	segs := sink.segments()
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	// Arrivals kept pace with the cursor, so each start equals the previous
	// start plus the previous duration.
	expectedStart := 0.0
	for i, seg := range segs {
		if math.Abs(seg.startAt-expectedStart) > 1e-9 {
			t.Errorf("segment %d: expected start %f, got %f", i, expectedStart, seg.startAt)
		}
		expectedStart += durations[i]
	}
}

func TestPlaybackQueue_LateArrivalStartsNow(t *testing.T) {
	sink := newFakeSink()
	q := NewPlaybackQueue(sink, 24000)

	q.Enqueue(pcmOfDuration(0.1, 24000))

	// The clock has moved past the cursor: the next segment must start at
	// "now", never in the past, and the cursor must not go backward.
	sink.setNow(5.0)
	q.Enqueue(pcmOfDuration(0.2, 24000))

	segs := sink.segments()
	if got := segs[1].startAt; math.Abs(got-5.0) > 1e-9 {
		t.Errorf("late segment should start at now=5.0, got %f", got)
	}
	if got := q.NextStart(); math.Abs(got-5.2) > 1e-9 {
		t.Errorf("cursor should advance to 5.2, got %f", got)
	}
}

func TestPlaybackQueue_SpeakingTracksPendingSet(t *testing.T) {
	sink := newFakeSink()
	q := NewPlaybackQueue(sink, 24000)

	var transitions []bool
	q.SetSpeakingFunc(func(speaking bool) { transitions = append(transitions, speaking) })

	q.Enqueue(pcmOfDuration(0.1, 24000))
	q.Enqueue(pcmOfDuration(0.1, 24000))
	if !q.Speaking() {
		t.Fatal("expected speaking while segments pending")
	}

	sink.completeNext()
	if !q.Speaking() {
		t.Fatal("still one segment pending, should remain speaking")
	}
	sink.completeNext()
	if q.Speaking() {
		t.Fatal("all segments done, should not be speaking")
	}

	want := []bool{true, false}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

func TestPlaybackQueue_InterruptClearsEverything(t *testing.T) {
	sink := newFakeSink()
	q := NewPlaybackQueue(sink, 24000)

	for i := 0; i < 3; i++ {
		q.Enqueue(pcmOfDuration(0.5, 24000))
	}

	q.Interrupt()

	if q.Speaking() {
		t.Error("speaking must be false immediately after interrupt")
	}
	if got := sink.stoppedCount(); got != 3 {
		t.Errorf("expected all 3 segments stopped, got %d", got)
	}
	if got := q.NextStart(); got != 0 {
		t.Errorf("cursor must reset to zero, got %f", got)
	}
}

func TestPlaybackQueue_CompletionAfterInterruptIsIgnored(t *testing.T) {
	sink := newFakeSink()
	q := NewPlaybackQueue(sink, 24000)

	var transitions []bool
	q.SetSpeakingFunc(func(speaking bool) { transitions = append(transitions, speaking) })

	q.Enqueue(pcmOfDuration(0.1, 24000))
	segs := sink.segments()
	q.Interrupt()

	// A straggling completion callback for a cleared segment must not
	// produce a second "stopped speaking" notification.
	segs[0].onDone()

	falseCount := 0
	for _, tr := range transitions {
		if !tr {
			falseCount++
		}
	}
	if falseCount != 1 {
		t.Errorf("expected one speaking=false transition, got %d", falseCount)
	}
}

func TestPlaybackQueue_EmptyChunkIsNoop(t *testing.T) {
	sink := newFakeSink()
	q := NewPlaybackQueue(sink, 24000)

	if err := q.Enqueue(nil); err != nil {
		t.Fatalf("enqueue nil: %v", err)
	}
	if len(sink.segments()) != 0 {
		t.Error("empty chunk should not schedule a segment")
	}
}
