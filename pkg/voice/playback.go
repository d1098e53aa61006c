package voice

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Speaker renders one decoded chunk and returns when playback of that chunk
// completes. Cancelling the context aborts the in-flight chunk.
type Speaker interface {
	Play(ctx context.Context, samples []float32) error
}

// PlaybackQueue plays synthesized speech chunks strictly FIFO. Exactly one
// drain loop runs at a time: Enqueue during playback only appends.
// Interrupt stops the in-flight chunk and discards everything pending.
type PlaybackQueue struct {
	speaker    Speaker
	sampleRate int

	mu       sync.Mutex
	pending  [][]float32
	draining bool
	cancel   context.CancelFunc
}

func NewPlaybackQueue(speaker Speaker, sampleRateHz int) *PlaybackQueue {
	if sampleRateHz <= 0 {
		sampleRateHz = DefaultSampleRate
	}
	return &PlaybackQueue{
		speaker:    speaker,
		sampleRate: sampleRateHz,
	}
}

// Enqueue queues one raw PCM16LE chunk. Starts the drain loop only when
// none is running.
func (q *PlaybackQueue) Enqueue(pcm []byte) {
	samples := DecodePCM16LE(pcm)
	if len(samples) == 0 {
		return
	}

	q.mu.Lock()
	q.pending = append(q.pending, samples)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.mu.Unlock()

	go q.drain(ctx)
}

// Interrupt stops in-flight playback, drops all pending chunks and resets
// to idle.
func (q *PlaybackQueue) Interrupt() {
	q.mu.Lock()
	q.pending = nil
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Playing reports whether a drain loop is active.
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

func (q *PlaybackQueue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || ctx.Err() != nil {
			q.pending = nil
			q.draining = false
			q.cancel = nil
			q.mu.Unlock()
			return
		}
		chunk := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		// Next chunk only begins after this one completes.
		_ = q.speaker.Play(ctx, chunk)
	}
}

// NoopSpeaker consumes chunks without audio output, for headless runs.
type NoopSpeaker struct{}

func (NoopSpeaker) Play(ctx context.Context, samples []float32) error {
	return ctx.Err()
}

// FFPlaySpeaker pipes PCM into an ffplay child process.
type FFPlaySpeaker struct {
	path       string
	sampleRate int

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func NewFFPlaySpeaker(path string, sampleRateHz int) *FFPlaySpeaker {
	if path == "" {
		path = "ffplay"
	}
	if sampleRateHz <= 0 {
		sampleRateHz = DefaultSampleRate
	}
	return &FFPlaySpeaker{path: path, sampleRate: sampleRateHz}
}

func (s *FFPlaySpeaker) Play(ctx context.Context, samples []float32) error {
	if err := s.ensureRunning(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	pcm := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sv := int16(v * 32767.0)
		pcm[i*2] = byte(sv)
		pcm[i*2+1] = byte(sv >> 8)
	}

	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("ffplay is not running")
	}
	if _, err := stdin.Write(pcm); err != nil {
		return err
	}

	// ffplay buffers internally; approximate completion by chunk duration.
	select {
	case <-ctx.Done():
		s.restart() // flush whatever ffplay buffered
		return ctx.Err()
	case <-time.After(PCMDuration(len(pcm), s.sampleRate)):
		return nil
	}
}

func (s *FFPlaySpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *FFPlaySpeaker) ensureRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}

	// ffplay takes -ch_layout, not ffmpeg's -ac.
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", s.sampleRate),
		"-i", "-",
	}
	cmd := exec.Command(s.path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return err
	}
	s.cmd = cmd
	s.stdin = stdin

	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

func (s *FFPlaySpeaker) restart() {
	s.mu.Lock()
	_ = s.closeLocked()
	s.mu.Unlock()
}

func (s *FFPlaySpeaker) closeLocked() error {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
	return nil
}
