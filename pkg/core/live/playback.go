package live

import (
	"sync"
)

// PlaybackQueue schedules synthesized speech segments back-to-back on the
// sink clock. Segments are decoded from 16-bit PCM, scheduled at
// max(cursor, now) so late arrivals start immediately rather than in the
// past, and the cursor advances by each segment's duration so arrivals that
// keep up play gaplessly.
type PlaybackQueue struct {
	sink       AudioSink
	sampleRate int

	mu         sync.Mutex
	nextStart  float64
	nextID     int
	pending    map[int]PlaybackHandle
	onSpeaking func(bool)
}

// NewPlaybackQueue creates a queue playing through sink at sampleRate Hz.
func NewPlaybackQueue(sink AudioSink, sampleRate int) *PlaybackQueue {
	return &PlaybackQueue{
		sink:       sink,
		sampleRate: sampleRate,
		pending:    make(map[int]PlaybackHandle),
	}
}

// SetSpeakingFunc registers a callback invoked on aiSpeaking transitions:
// true when the pending set becomes non-empty, false exactly when it drains.
func (q *PlaybackQueue) SetSpeakingFunc(fn func(bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onSpeaking = fn
}

// Enqueue decodes one PCM chunk and schedules it contiguously after whatever
// is already queued.
func (q *PlaybackQueue) Enqueue(pcm []byte) error {
	samples := PCM16ToFloat(pcm)
	if len(samples) == 0 {
		return nil
	}
	duration := float64(len(samples)) / float64(q.sampleRate)

	q.mu.Lock()
	startAt := q.nextStart
	if now := q.sink.Now(); now > startAt {
		startAt = now
	}
	id := q.nextID
	q.nextID++
	wasEmpty := len(q.pending) == 0
	onSpeaking := q.onSpeaking
	q.mu.Unlock()

	handle, err := q.sink.PlayAt(samples, startAt, func() { q.complete(id) })
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.pending[id] = handle
	q.nextStart = startAt + duration
	q.mu.Unlock()

	if wasEmpty && onSpeaking != nil {
		onSpeaking(true)
	}
	return nil
}

// complete is each segment's natural-completion callback.
func (q *PlaybackQueue) complete(id int) {
	q.mu.Lock()
	if _, ok := q.pending[id]; !ok {
		// Already cleared by an interruption; nothing to report.
		q.mu.Unlock()
		return
	}
	delete(q.pending, id)
	drained := len(q.pending) == 0
	onSpeaking := q.onSpeaking
	q.mu.Unlock()

	if drained && onSpeaking != nil {
		onSpeaking(false)
	}
}

// Interrupt stops every scheduled segment, clears the set, and resets the
// cursor to zero. Used for barge-in and session teardown; it wins over any
// in-flight completion bookkeeping.
func (q *PlaybackQueue) Interrupt() {
	q.mu.Lock()
	handles := make([]PlaybackHandle, 0, len(q.pending))
	for _, h := range q.pending {
		handles = append(handles, h)
	}
	hadPending := len(q.pending) > 0
	q.pending = make(map[int]PlaybackHandle)
	q.nextStart = 0
	onSpeaking := q.onSpeaking
	q.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	if hadPending && onSpeaking != nil {
		onSpeaking(false)
	}
}

// Speaking reports whether any segment is scheduled or playing.
func (q *PlaybackQueue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}

// NextStart exposes the cursor for contiguity checks.
func (q *PlaybackQueue) NextStart() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextStart
}
