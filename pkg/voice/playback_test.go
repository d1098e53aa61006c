package voice

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"
)

// recordSpeaker records played chunks; optional gate blocks each Play until
// released or the context is cancelled.
type recordSpeaker struct {
	mu          sync.Mutex
	played      [][]float32
	inFlight    int
	maxInFlight int
	gate        chan struct{}
}

func (s *recordSpeaker) Play(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.played = append(s.played, samples)
	s.inFlight--
	s.mu.Unlock()
	return nil
}

func (s *recordSpeaker) playedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

func pcmChunk(values ...int16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDecodePCM16LE(t *testing.T) {
	samples := DecodePCM16LE(pcmChunk(0, 16384, -16384, 32767, -32768))
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1.0}
	if len(samples) != len(want) {
		t.Fatalf("len = %d, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestDecodePCM16LEIgnoresTrailingOddByte(t *testing.T) {
	data := append(pcmChunk(100), 0x7f)
	if got := len(DecodePCM16LE(data)); got != 1 {
		t.Errorf("len = %d, want 1", got)
	}
}

func TestPCMDuration(t *testing.T) {
	// 24000 samples of mono 16-bit at 24kHz is one second.
	if got := PCMDuration(48000, 24000); got != time.Second {
		t.Errorf("duration = %v, want 1s", got)
	}
	if got := PCMDuration(0, 24000); got != 0 {
		t.Errorf("duration = %v, want 0", got)
	}
}

func TestPlaybackIsFIFO(t *testing.T) {
	speaker := &recordSpeaker{}
	q := NewPlaybackQueue(speaker, DefaultSampleRate)

	q.Enqueue(pcmChunk(1))
	q.Enqueue(pcmChunk(2))
	q.Enqueue(pcmChunk(3))

	waitUntil(t, time.Second, func() bool { return speaker.playedCount() == 3 })
	waitUntil(t, time.Second, func() bool { return !q.Playing() })

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	for i, chunk := range speaker.played {
		wantSample := float32(int16(i+1)) / 32768.0
		if chunk[0] != wantSample {
			t.Errorf("chunk %d = %v, want %v", i, chunk[0], wantSample)
		}
	}
}

func TestEnqueueWhilePlayingDoesNotSpawnSecondLoop(t *testing.T) {
	speaker := &recordSpeaker{gate: make(chan struct{})}
	q := NewPlaybackQueue(speaker, DefaultSampleRate)

	q.Enqueue(pcmChunk(1))
	q.Enqueue(pcmChunk(2))
	q.Enqueue(pcmChunk(3))

	close(speaker.gate)
	waitUntil(t, time.Second, func() bool { return speaker.playedCount() == 3 })

	speaker.mu.Lock()
	maxInFlight := speaker.maxInFlight
	speaker.mu.Unlock()
	if maxInFlight > 1 {
		t.Errorf("maxInFlight = %d, drain must be single-flight", maxInFlight)
	}
}

func TestInterruptDiscardsPendingAndStopsInFlight(t *testing.T) {
	speaker := &recordSpeaker{gate: make(chan struct{})} // never released
	q := NewPlaybackQueue(speaker, DefaultSampleRate)

	q.Enqueue(pcmChunk(1))
	q.Enqueue(pcmChunk(2))
	q.Enqueue(pcmChunk(3))

	waitUntil(t, time.Second, func() bool { return q.Playing() })
	q.Interrupt()

	waitUntil(t, time.Second, func() bool { return !q.Playing() })
	if got := speaker.playedCount(); got != 0 {
		t.Errorf("played = %d chunks, want 0 after interrupt", got)
	}

	// The queue is reusable after an interrupt.
	speaker.mu.Lock()
	speaker.gate = nil
	speaker.mu.Unlock()
	q.Enqueue(pcmChunk(4))
	waitUntil(t, time.Second, func() bool { return speaker.playedCount() == 1 })
}

func TestEnqueueEmptyChunkIsIgnored(t *testing.T) {
	speaker := &recordSpeaker{}
	q := NewPlaybackQueue(speaker, DefaultSampleRate)

	q.Enqueue(nil)
	q.Enqueue([]byte{0x01}) // below one sample

	time.Sleep(20 * time.Millisecond)
	if q.Playing() {
		t.Error("empty chunks must not start a drain loop")
	}
	if speaker.playedCount() != 0 {
		t.Error("nothing should have played")
	}
}
