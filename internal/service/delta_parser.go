package service

import (
	"encoding/json"
	"strings"
)

// observationDelta is the structured reply the model produces for one
// observation. Missing documents mean "no change".
type observationDelta struct {
	Reply string `json:"reply,omitempty"`
	Sop   *struct {
		Content   string `json:"content"`
		Flowchart string `json:"flowchart,omitempty"`
	} `json:"sop,omitempty"`
	Cro *struct {
		Content string `json:"content"`
	} `json:"cro,omitempty"`
}

// analysisSuggestion is one entry of the facilitation analysis array.
type analysisSuggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// stripCodeFence removes a surrounding markdown code fence, if present.
// Models frequently wrap JSON in ```json ... ``` despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseObservationDelta extracts the structured delta out of a model
// response. When the response is not valid JSON, the whole text is treated
// as a directed reply so nothing the model said gets lost.
func parseObservationDelta(response string) observationDelta {
	cleaned := stripCodeFence(response)

	var delta observationDelta
	if err := json.Unmarshal([]byte(cleaned), &delta); err != nil {
		return observationDelta{Reply: strings.TrimSpace(response)}
	}
	return delta
}

// parseAnalysisSuggestions extracts intervention suggestions. A response
// that is not a valid JSON array yields no suggestions; the analysis pass
// is advisory and must never fail the session.
func parseAnalysisSuggestions(response string) []analysisSuggestion {
	cleaned := stripCodeFence(response)

	var suggestions []analysisSuggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestions); err != nil {
		return nil
	}

	out := suggestions[:0]
	for _, s := range suggestions {
		if strings.TrimSpace(s.Message) == "" {
			continue
		}
		switch s.Type {
		case "off_topic", "time_box", "blocker":
			out = append(out, s)
		}
	}
	return out
}
