package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"ai-meeting-copilot-be/internal/model"
	"ai-meeting-copilot-be/pkg/client"
	"ai-meeting-copilot-be/pkg/voice"

	"github.com/fatih/color"
)

// Terminal meeting client: joins a meeting's observation channel, runs the
// wake-word machine over typed utterances and plays synthesized audio.
//
// Typed lines act as finalized utterances ("hey eva summarize this" arms
// and buffers). Slash commands bypass the wake machine:
//
//	/start   begin observing
//	/stop    stop observing
//	/quit    leave the meeting
func main() {
	serverURL := flag.String("server", "ws://localhost:3000", "backend websocket base URL")
	meetingID := flag.String("meeting", "", "meeting room id (required)")
	speakerOn := flag.Bool("speaker", false, "play incoming audio through ffplay")
	flag.Parse()

	if *meetingID == "" {
		color.Red("missing -meeting")
		os.Exit(1)
	}

	var speaker voice.Speaker = voice.NoopSpeaker{}
	if *speakerOn {
		speaker = voice.NewFFPlaySpeaker("ffplay", voice.DefaultSampleRate)
	}
	playback := voice.NewPlaybackQueue(speaker, voice.DefaultSampleRate)

	observing := false
	var stateMu sync.Mutex

	url := fmt.Sprintf("%s/ws/observe/%s", strings.TrimRight(*serverURL, "/"), *meetingID)
	supervisor := client.NewSupervisor(url)

	supervisor.OnMessage = func(data []byte) {
		var msg struct {
			Type          string `json:"type"`
			Content       string `json:"content"`
			Data          string `json:"data"`
			CroContent    string `json:"croContent"`
			SopVersion    int    `json:"sopVersion"`
			CroVersion    int    `json:"croVersion"`
			FlowchartCode string `json:"flowchartCode"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}

		switch msg.Type {
		case model.ObsTypeReply:
			color.Green("eva> %s", msg.Content)
		case model.ObsTypeAudio:
			if pcm, err := base64.StdEncoding.DecodeString(msg.Data); err == nil {
				playback.Enqueue(pcm)
			}
		case model.ObsTypeSopUpdate:
			color.Yellow("--- SOP v%d ---\n%s", msg.SopVersion, msg.Content)
			if msg.FlowchartCode != "" {
				color.Yellow("(flowchart)\n%s", msg.FlowchartCode)
			}
		case model.ObsTypeCroUpdate:
			color.Cyan("--- CRO v%d ---\n%s", msg.CroVersion, msg.CroContent)
		case model.ObsTypeSopStatus, model.ObsTypeCroStatus:
			// Heartbeats; keep the terminal quiet.
		case model.ObsTypeError:
			color.Red("error: %s", msg.Content)
		case model.ObsTypeStatus:
			color.White("status: %s", msg.Content)
		}
	}

	// Replay desired state on every (re)connect.
	supervisor.OnConnect = func(s *client.Supervisor) {
		color.White("connected to %s", url)
		stateMu.Lock()
		resume := observing
		stateMu.Unlock()
		if resume {
			sendControl(s, model.ControlStart)
		}
	}

	if err := supervisor.Connect(context.Background()); err != nil {
		color.Red("connect failed: %v", err)
		os.Exit(1)
	}

	// Spoken command path: the wake machine dispatches buffered text as one
	// observation.
	recognizer := newLineRecognizer()
	capture := voice.NewCapture(voice.CaptureConfig{}, recognizer, func(command string) {
		// The agent replies; stop talking over the human.
		playback.Interrupt()
		payload, _ := json.Marshal(model.ObservationInbound{
			Type: model.ObsTypeText,
			Data: command,
		})
		if err := supervisor.Send(payload); err != nil {
			color.Red("send failed: %v", err)
		}
	})
	capture.SetDisabledHandler(func() {
		color.Red("voice capture disabled (permission denied)")
	})
	capture.SetErrorHandler(func(code string) {
		color.Red("recognizer error: %s", code)
	})
	if err := capture.Start(); err != nil {
		color.Red("capture start failed: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/start":
			stateMu.Lock()
			observing = true
			stateMu.Unlock()
			sendControl(supervisor, model.ControlStart)
		case "/stop":
			stateMu.Lock()
			observing = false
			stateMu.Unlock()
			sendControl(supervisor, model.ControlStop)
		case "/quit":
			capture.Stop()
			supervisor.Disconnect()
			return
		default:
			recognizer.Feed(line)
		}
	}

	capture.Stop()
	supervisor.Disconnect()
}

func sendControl(s *client.Supervisor, command string) {
	payload, _ := json.Marshal(model.ObservationInbound{
		Type:    model.ObsTypeControl,
		Command: command,
	})
	if err := s.Send(payload); err != nil {
		color.Red("send failed: %v", err)
	}
}

// lineRecognizer feeds typed lines through the Recognizer contract so the
// wake-word machine drives the terminal exactly like live speech.
type lineRecognizer struct {
	mu       sync.Mutex
	active   bool
	onResult func(voice.Result)
	onError  func(string)
	onEnd    func()
}

func newLineRecognizer() *lineRecognizer {
	return &lineRecognizer{}
}

func (r *lineRecognizer) Start() error {
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
	return nil
}

func (r *lineRecognizer) Stop() {
	r.mu.Lock()
	r.active = false
	fn := r.onEnd
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *lineRecognizer) Feed(text string) {
	r.mu.Lock()
	active := r.active
	fn := r.onResult
	r.mu.Unlock()
	if active && fn != nil {
		fn(voice.Result{Text: text, IsFinal: true})
	}
}

func (r *lineRecognizer) OnResult(fn func(voice.Result)) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

func (r *lineRecognizer) OnError(fn func(string)) {
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
}

func (r *lineRecognizer) OnEnd(fn func()) {
	r.mu.Lock()
	r.onEnd = fn
	r.mu.Unlock()
}
