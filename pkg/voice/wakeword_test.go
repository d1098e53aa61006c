package voice

import (
	"sync"
	"testing"
	"time"
)

// fakeRecognizer drives the state machine from tests.
type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	onResult func(Result)
	onError  func(string)
	onEnd    func()
}

func (r *fakeRecognizer) Start() error {
	r.mu.Lock()
	r.starts++
	r.mu.Unlock()
	return nil
}

func (r *fakeRecognizer) Stop() {
	r.mu.Lock()
	r.stops++
	fn := r.onEnd
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *fakeRecognizer) OnResult(fn func(Result)) { r.onResult = fn }
func (r *fakeRecognizer) OnError(fn func(string))  { r.onError = fn }
func (r *fakeRecognizer) OnEnd(fn func())          { r.onEnd = fn }

func (r *fakeRecognizer) emit(text string) {
	r.onResult(Result{Text: text, IsFinal: true})
}

func (r *fakeRecognizer) emitInterim(text string) {
	r.onResult(Result{Text: text, IsFinal: false})
}

func (r *fakeRecognizer) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

type commandSink struct {
	mu       sync.Mutex
	commands []string
}

func (s *commandSink) dispatch(command string) {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()
}

func (s *commandSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *commandSink) waitForCount(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(s.all()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d commands, got %v", n, s.all())
}

func fastConfig() CaptureConfig {
	return CaptureConfig{
		SilenceThreshold: 60 * time.Millisecond,
		Tick:             10 * time.Millisecond,
		HoldSettleDelay:  10 * time.Millisecond,
	}
}

func TestIsNoiseLabel(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"[silence]", true},
		{"[typing]", true},
		{"  [MUSIC]  ", true},
		{"[some unseen label]", true},
		{"hello there", false},
		{"[weird] trailing", false},
		{"", false},
		{"not [bracketed] fully", false},
	}

	for _, tt := range tests {
		if got := IsNoiseLabel(tt.text); got != tt.want {
			t.Errorf("IsNoiseLabel(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestWakeWordArmsAndTrailingTextSeedsBuffer(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	rec.emit("Hey Eva, summarize the discussion")
	if !c.Active() {
		t.Fatal("wake word must arm the machine")
	}

	sink.waitForCount(t, 1, time.Second)
	got := sink.all()[0]
	if got != "summarize the discussion" {
		t.Errorf("command = %q, want trailing text", got)
	}
	if c.Active() {
		t.Error("machine must return to idle after dispatch")
	}
}

func TestActiveUtterancesAccumulateSpaceJoined(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	_ = c.Start()
	defer c.Stop()

	rec.emit("eva")
	rec.emit("create an action item")
	rec.emit("for the retro")

	sink.waitForCount(t, 1, time.Second)
	if got := sink.all()[0]; got != "create an action item for the retro" {
		t.Errorf("command = %q", got)
	}
}

func TestNoiseLabelsNeverExtendBufferOrResetTimer(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	_ = c.Start()
	defer c.Stop()

	rec.emit("eva note this down")
	rec.emit("[typing]")
	rec.emit("[some unseen label]")

	sink.waitForCount(t, 1, time.Second)
	if got := sink.all()[0]; got != "note this down" {
		t.Errorf("command = %q, noise must not leak into the buffer", got)
	}
}

func TestWakeWordWithNoiseTrailerDoesNotSeed(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	_ = c.Start()
	defer c.Stop()

	rec.emit("eva [silence]")
	if !c.Active() {
		t.Fatal("wake word alone still arms")
	}

	// Nothing but noise: silence expiry finds a sub-minimum buffer.
	time.Sleep(150 * time.Millisecond)
	if got := sink.all(); len(got) != 0 {
		t.Errorf("expected no dispatch, got %v", got)
	}
	if c.Active() {
		t.Error("machine must disarm after silence")
	}
}

func TestShortCommandsDiscarded(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	_ = c.Start()
	defer c.Stop()

	rec.emit("eva ok")
	time.Sleep(150 * time.Millisecond)

	if got := sink.all(); len(got) != 0 {
		t.Errorf("expected no dispatch for a 2-rune command, got %v", got)
	}
}

func TestInterimResultsIgnored(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	_ = c.Start()
	defer c.Stop()

	rec.emitInterim("eva do the thing")
	if c.Active() {
		t.Error("interim results must not arm the machine")
	}
}

func TestHoldToTalkDispatchesExactlyOnce(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	_ = c.Start()
	defer c.Stop()

	c.BeginHold()
	time.Sleep(30 * time.Millisecond) // settle; recognition restarted
	rec.emit("push the release notes")

	c.EndHold()
	c.EndHold() // release race: second release must not re-dispatch

	sink.waitForCount(t, 1, time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := sink.all(); len(got) != 1 || got[0] != "push the release notes" {
		t.Errorf("commands = %v, want exactly one", got)
	}
}

func TestHoldToTalkBypassesWakeWord(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &commandSink{}
	c := NewCapture(fastConfig(), rec, sink.dispatch)
	_ = c.Start()
	defer c.Stop()

	c.BeginHold()
	time.Sleep(30 * time.Millisecond)
	rec.emit("no wake word here at all")
	c.EndHold()

	sink.waitForCount(t, 1, time.Second)
	if got := sink.all()[0]; got != "no wake word here at all" {
		t.Errorf("command = %q", got)
	}
}

func TestBenignErrorsRestartRecognition(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(fastConfig(), rec, (&commandSink{}).dispatch)
	_ = c.Start()
	defer c.Stop()

	before := rec.startCount()
	rec.onError(ErrNoSpeech)
	rec.onEnd() // transport end follows the benign error

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rec.startCount() > before {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("recognition must auto-restart after a benign error")
}

func TestUnrecognizedErrorsReachTheErrorHandler(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(fastConfig(), rec, (&commandSink{}).dispatch)

	var mu sync.Mutex
	var codes []string
	c.SetErrorHandler(func(code string) {
		mu.Lock()
		codes = append(codes, code)
		mu.Unlock()
	})
	_ = c.Start()
	defer c.Stop()

	rec.onError("network")
	rec.onEnd()

	mu.Lock()
	got := append([]string(nil), codes...)
	mu.Unlock()
	if len(got) != 1 || got[0] != "network" {
		t.Fatalf("codes = %v, want the surfaced error", got)
	}

	// Unlike permission denial, these do not disable capture: recognition
	// restarts and the machine stays usable.
	if c.Disabled() {
		t.Error("non-permission errors must not disable capture")
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rec.startCount() > 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("recognition must auto-restart after a surfaced error")
}

func TestBenignErrorsSkipTheErrorHandler(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(fastConfig(), rec, (&commandSink{}).dispatch)

	var mu sync.Mutex
	calls := 0
	c.SetErrorHandler(func(string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	_ = c.Start()
	defer c.Stop()

	rec.onError(ErrNoSpeech)
	rec.onError(ErrAborted)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("handler called %d times for benign errors", calls)
	}
}

func TestPermissionDeniedDisablesCapture(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(fastConfig(), rec, (&commandSink{}).dispatch)

	disabled := make(chan struct{})
	c.SetDisabledHandler(func() { close(disabled) })
	_ = c.Start()

	rec.onError(ErrNotAllowed)
	rec.onEnd()

	select {
	case <-disabled:
	case <-time.After(time.Second):
		t.Fatal("disabled handler not invoked")
	}

	if !c.Disabled() {
		t.Error("capture must report disabled")
	}
	before := rec.startCount()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if rec.startCount() != before {
		t.Error("disabled capture must not restart recognition")
	}
}

func TestIntentionalStopSuppressesRestart(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(fastConfig(), rec, (&commandSink{}).dispatch)
	_ = c.Start()

	before := rec.startCount()
	c.Stop() // fires onEnd through the recognizer

	time.Sleep(50 * time.Millisecond)
	if rec.startCount() != before {
		t.Error("intentional stop must not auto-restart")
	}
}
