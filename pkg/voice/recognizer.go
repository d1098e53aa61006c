package voice

// Result is one utterance from the recognition transport. Interim results
// carry partial text and are advisory; only final results drive state.
type Result struct {
	Text    string
	IsFinal bool
}

// Recognizer error categories surfaced through the error callback.
const (
	ErrNoSpeech   = "no-speech"
	ErrAborted    = "aborted"
	ErrNotAllowed = "not-allowed"
)

// Recognizer is a continuous speech recognition transport. One session at a
// time: Start begins emitting results until Stop is called or the transport
// ends on its own (reported through the end callback).
type Recognizer interface {
	Start() error
	Stop()

	// Callbacks fire from the transport's own goroutine; handlers must not
	// block. Set them before the first Start.
	OnResult(fn func(Result))
	OnError(fn func(code string))
	OnEnd(fn func())
}
