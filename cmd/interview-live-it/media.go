package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/live"
)

// ffmpegMic captures the microphone through an ffmpeg child process emitting
// raw s16le mono PCM on stdout. It implements live.MicrophoneSource.
type ffmpegMic struct {
	cmdOverride  string
	device       string
	sampleRate   int
	frameSamples int

	enabled atomic.Bool

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	closed bool
}

func newFFmpegMic(cmdOverride, device string, sampleRate, frameSamples int) *ffmpegMic {
	m := &ffmpegMic{
		cmdOverride:  cmdOverride,
		device:       device,
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
	}
	m.enabled.Store(true)
	return m
}

func (m *ffmpegMic) Start(ctx context.Context) (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("microphone already closed")
	}

	ctx, cancel := context.WithCancel(ctx)
	var cmd *exec.Cmd
	if m.cmdOverride != "" {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-lc", m.cmdOverride)
	} else {
		cmd = exec.CommandContext(ctx, "ffmpeg", m.captureArgs()...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mic stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start mic capture: %w", err)
	}
	m.cmd = cmd
	m.cancel = cancel

	frames := make(chan []float32, 16)
	go m.pump(stdout, frames)
	return frames, nil
}

func (m *ffmpegMic) captureArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	switch runtime.GOOS {
	case "darwin":
		// none:<index> avoids opening a camera device.
		args = append(args, "-f", "avfoundation", "-i", "none:"+m.device)
	default:
		args = append(args, "-f", "alsa", "-i", m.device)
	}
	return append(args,
		"-ac", "1",
		"-ar", fmt.Sprint(m.sampleRate),
		"-f", "s16le",
		"-")
}

func (m *ffmpegMic) pump(stdout io.Reader, frames chan<- []float32) {
	defer close(frames)

	frameBytes := m.frameSamples * 2
	reader := bufio.NewReaderSize(stdout, frameBytes*4)
	buf := make([]byte, frameBytes)
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return
		}
		frame := live.PCM16ToFloat(buf)
		if !m.enabled.Load() {
			// Keep the cadence, drop the content.
			frame = make([]float32, len(frame))
		}
		frames <- frame
	}
}

func (m *ffmpegMic) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

func (m *ffmpegMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_, _ = m.cmd.Process.Wait()
	}
	return nil
}

// ffplaySink plays scheduled PCM through an ffplay child process fed on
// stdin. It implements live.AudioSink: the clock starts at zero when the sink
// is created and segments write their samples when their start time arrives.
type ffplaySink struct {
	sampleRate int
	startedAt  time.Time

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
}

func newFFplaySink(ffplayPath string, sampleRate, volume int) (*ffplaySink, error) {
	cmd := exec.Command(ffplayPath,
		"-hide_banner",
		"-loglevel", "error",
		"-nodisp",
		"-f", "s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ch_layout", "mono",
		"-volume", fmt.Sprint(volume),
		"-i", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}
	return &ffplaySink{
		sampleRate: sampleRate,
		startedAt:  time.Now(),
		cmd:        cmd,
		stdin:      stdin,
	}, nil
}

func (s *ffplaySink) Now() float64 {
	return time.Since(s.startedAt).Seconds()
}

func (s *ffplaySink) PlayAt(samples []float32, startAt float64, onDone func()) (live.PlaybackHandle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("audio sink is closed")
	}
	s.mu.Unlock()

	seg := &ffplaySegment{sink: s}
	delay := time.Duration((startAt - s.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	duration := time.Duration(float64(len(samples)) / float64(s.sampleRate) * float64(time.Second))

	seg.startTimer = time.AfterFunc(delay, func() {
		if seg.stopped.Load() {
			return
		}
		s.write(live.FloatToPCM16(samples))
		seg.doneTimer = time.AfterFunc(duration, func() {
			if !seg.stopped.Load() {
				onDone()
			}
		})
	})
	return seg, nil
}

func (s *ffplaySink) write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	_, _ = s.stdin.Write(pcm)
}

func (s *ffplaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_, _ = s.cmd.Process.Wait()
	}
	return nil
}

type ffplaySegment struct {
	sink       *ffplaySink
	stopped    atomic.Bool
	startTimer *time.Timer
	doneTimer  *time.Timer
}

func (seg *ffplaySegment) Stop() {
	seg.stopped.Store(true)
	if seg.startTimer != nil {
		seg.startTimer.Stop()
	}
	if seg.doneTimer != nil {
		seg.doneTimer.Stop()
	}
}
