package voice

import (
	"strings"
	"sync"
	"time"
)

// Capture states.
const (
	stateIdleListening = iota
	stateActive
)

// CaptureConfig tunes the wake-word state machine. Zero values fall back to
// the defaults below.
type CaptureConfig struct {
	WakeVariants     []string
	SilenceThreshold time.Duration // silence before the buffer is dispatched
	Tick             time.Duration // silence check cadence
	MinCommandRunes  int           // shorter trimmed commands are discarded
	HoldSettleDelay  time.Duration // recognizer restart delay on mode changes
}

var defaultWakeVariants = []string{"hey eva", "hey, eva", "eva", "ava", "eve"}

// noiseLabels are recognizer artifacts for ambient sound. They never seed
// or extend the command buffer and never reset the silence timer.
var noiseLabels = map[string]struct{}{
	"[silence]":  {},
	"[typing]":   {},
	"[music]":    {},
	"[noise]":    {},
	"[laughter]": {},
	"[applause]": {},
}

// IsNoiseLabel reports whether an utterance is an environmental noise label:
// one of the known labels, or any single bracketed token (unseen labels
// follow the same shape).
func IsNoiseLabel(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if _, ok := noiseLabels[t]; ok {
		return true
	}
	return strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]") && strings.Count(t, "[") == 1 && !strings.Contains(strings.TrimSuffix(t, "]"), "]")
}

// Capture is the wake-word voice activation state machine. It listens
// continuously, arms on a wake word, buffers the command that follows and
// dispatches it after a silence window. Hold-to-talk suspends wake-word
// logic and dispatches exactly once on release.
type Capture struct {
	cfg        CaptureConfig
	recognizer Recognizer
	dispatch   func(command string)
	onDisabled func()            // voice capture permanently disabled (permission denied)
	onError    func(code string) // non-benign recognizer errors (network, device)

	mu sync.Mutex

	running  bool // continuous loop wanted
	stopping bool // intentional stop in progress; suppress auto-restart
	disabled bool

	state         int
	commandBuffer []string
	lastSpeechAt  time.Time

	holdToTalk    bool
	holdBuffer    []string
	holdDispatched bool // one-shot guard for release vs onend race

	tickerStop chan struct{}
}

func NewCapture(cfg CaptureConfig, recognizer Recognizer, dispatch func(command string)) *Capture {
	if len(cfg.WakeVariants) == 0 {
		cfg.WakeVariants = defaultWakeVariants
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = 4000 * time.Millisecond
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 500 * time.Millisecond
	}
	if cfg.MinCommandRunes <= 0 {
		cfg.MinCommandRunes = 3
	}
	if cfg.HoldSettleDelay <= 0 {
		cfg.HoldSettleDelay = 300 * time.Millisecond
	}

	c := &Capture{
		cfg:        cfg,
		recognizer: recognizer,
		dispatch:   dispatch,
		state:      stateIdleListening,
	}
	recognizer.OnResult(c.handleResult)
	recognizer.OnError(c.handleError)
	recognizer.OnEnd(c.handleEnd)
	return c
}

// SetDisabledHandler registers a callback for the permission-denied path.
func (c *Capture) SetDisabledHandler(fn func()) {
	c.mu.Lock()
	c.onDisabled = fn
	c.mu.Unlock()
}

// SetErrorHandler registers a callback for recognizer errors that are
// neither benign (no-speech, aborted) nor permission denials. Recognition
// still auto-restarts after them.
func (c *Capture) SetErrorHandler(fn func(code string)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Start begins continuous wake-word listening. Idempotent while running.
func (c *Capture) Start() error {
	c.mu.Lock()
	if c.running || c.disabled {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopping = false
	c.state = stateIdleListening
	c.commandBuffer = nil
	stop := make(chan struct{})
	c.tickerStop = stop
	c.mu.Unlock()

	go c.silenceLoop(stop)
	return c.recognizer.Start()
}

// Stop intentionally halts listening: no auto-restart follows.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.stopping = true
	c.state = stateIdleListening
	c.commandBuffer = nil
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
	c.mu.Unlock()

	c.recognizer.Stop()
}

// Active reports whether the machine is armed (post wake word).
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateActive
}

// Disabled reports whether capture was shut off by a permission error.
func (c *Capture) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// BeginHold enters hold-to-talk: wake-word logic is suspended and
// recognition restarts in non-wake mode after a settle delay.
func (c *Capture) BeginHold() {
	c.mu.Lock()
	if c.holdToTalk || c.disabled {
		c.mu.Unlock()
		return
	}
	c.holdToTalk = true
	c.holdBuffer = nil
	c.holdDispatched = false
	c.state = stateIdleListening
	c.commandBuffer = nil
	c.stopping = true // the stop below is intentional
	c.mu.Unlock()

	c.recognizer.Stop()

	time.AfterFunc(c.cfg.HoldSettleDelay, func() {
		c.mu.Lock()
		stillHolding := c.holdToTalk
		if stillHolding {
			c.stopping = false
		}
		c.mu.Unlock()
		if stillHolding {
			_ = c.recognizer.Start()
		}
	})
}

// EndHold releases hold-to-talk, dispatching the captured transcript at
// most once, then resumes idle wake-word listening after a brief delay.
func (c *Capture) EndHold() {
	c.mu.Lock()
	if !c.holdToTalk {
		c.mu.Unlock()
		return
	}
	c.holdToTalk = false
	c.stopping = true
	c.mu.Unlock()

	c.recognizer.Stop()
	c.dispatchHold()

	time.AfterFunc(c.cfg.HoldSettleDelay, func() {
		c.mu.Lock()
		resume := c.running && !c.disabled
		if resume {
			c.stopping = false
		}
		c.mu.Unlock()
		if resume {
			_ = c.recognizer.Start()
		}
	})
}

// dispatchHold emits the hold-to-talk transcript exactly once.
func (c *Capture) dispatchHold() {
	c.mu.Lock()
	if c.holdDispatched {
		c.mu.Unlock()
		return
	}
	c.holdDispatched = true
	command := strings.TrimSpace(strings.Join(c.holdBuffer, " "))
	c.holdBuffer = nil
	c.mu.Unlock()

	if len([]rune(command)) >= c.cfg.MinCommandRunes {
		c.dispatch(command)
	}
}

func (c *Capture) handleResult(r Result) {
	if !r.IsFinal {
		return
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.holdToTalk {
		if !IsNoiseLabel(text) {
			c.holdBuffer = append(c.holdBuffer, text)
		}
		c.mu.Unlock()
		return
	}

	switch c.state {
	case stateIdleListening:
		trailing, matched := c.matchWakeWord(text)
		if matched {
			c.state = stateActive
			c.commandBuffer = nil
			c.lastSpeechAt = time.Now()
			if trailing != "" && !IsNoiseLabel(trailing) {
				c.commandBuffer = append(c.commandBuffer, trailing)
			}
		}
	case stateActive:
		if !IsNoiseLabel(text) {
			c.commandBuffer = append(c.commandBuffer, text)
			c.lastSpeechAt = time.Now()
		}
	}
	c.mu.Unlock()
}

// matchWakeWord scans the utterance for the first wake variant occurrence
// and returns any trailing text after the match.
func (c *Capture) matchWakeWord(text string) (trailing string, matched bool) {
	lower := strings.ToLower(text)
	best := -1
	bestEnd := 0
	for _, variant := range c.cfg.WakeVariants {
		idx := strings.Index(lower, strings.ToLower(variant))
		if idx >= 0 && (best == -1 || idx < best) {
			best = idx
			bestEnd = idx + len(variant)
		}
	}
	if best == -1 {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(text[bestEnd:], " ,.!?")), true
}

func (c *Capture) silenceLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.checkSilence()
		}
	}
}

func (c *Capture) checkSilence() {
	c.mu.Lock()
	if c.state != stateActive || c.holdToTalk {
		c.mu.Unlock()
		return
	}
	if time.Since(c.lastSpeechAt) < c.cfg.SilenceThreshold {
		c.mu.Unlock()
		return
	}
	command := strings.TrimSpace(strings.Join(c.commandBuffer, " "))
	c.commandBuffer = nil
	c.state = stateIdleListening
	c.mu.Unlock()

	if len([]rune(command)) >= c.cfg.MinCommandRunes {
		c.dispatch(command)
	}
}

func (c *Capture) handleError(code string) {
	switch code {
	case ErrNoSpeech, ErrAborted:
		// Expected during normal operation; the end handler restarts.
	case ErrNotAllowed:
		c.mu.Lock()
		c.disabled = true
		c.running = false
		if c.tickerStop != nil {
			close(c.tickerStop)
			c.tickerStop = nil
		}
		onDisabled := c.onDisabled
		c.mu.Unlock()
		if onDisabled != nil {
			onDisabled()
		}
	default:
		c.mu.Lock()
		onError := c.onError
		c.mu.Unlock()
		if onError != nil {
			onError(code)
		}
	}
}

// handleEnd restarts recognition on transport end unless the stop was
// intentional. In hold-to-talk, transport end may race a manual release;
// the one-shot guard in dispatchHold keeps emission single.
func (c *Capture) handleEnd() {
	c.mu.Lock()
	restart := (c.running || c.holdToTalk) && !c.stopping && !c.disabled
	c.mu.Unlock()

	if restart {
		_ = c.recognizer.Start()
	}
}
