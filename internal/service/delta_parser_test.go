package service

import (
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no fence",
			input: `{"reply": "hi"}`,
			want:  `{"reply": "hi"}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"reply\": \"hi\"}\n```",
			want:  `{"reply": "hi"}`,
		},
		{
			name:  "bare fence",
			input: "```\n[]\n```",
			want:  "[]",
		},
		{
			name:  "surrounding whitespace",
			input: "  ```json\n{}\n```  ",
			want:  "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.input); got != tt.want {
				t.Errorf("stripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseObservationDelta(t *testing.T) {
	t.Run("full delta", func(t *testing.T) {
		delta := parseObservationDelta(`{"reply": "noted", "sop": {"content": "step 1", "flowchart": "graph TD"}, "cro": {"content": "owner: ana"}}`)
		if delta.Reply != "noted" {
			t.Errorf("Reply = %q, want %q", delta.Reply, "noted")
		}
		if delta.Sop == nil || delta.Sop.Content != "step 1" || delta.Sop.Flowchart != "graph TD" {
			t.Errorf("Sop = %+v, want content/flowchart set", delta.Sop)
		}
		if delta.Cro == nil || delta.Cro.Content != "owner: ana" {
			t.Errorf("Cro = %+v, want content set", delta.Cro)
		}
	})

	t.Run("omitted documents mean no change", func(t *testing.T) {
		delta := parseObservationDelta(`{"reply": "just chatting"}`)
		if delta.Sop != nil || delta.Cro != nil {
			t.Errorf("expected nil documents, got sop=%+v cro=%+v", delta.Sop, delta.Cro)
		}
	})

	t.Run("fenced json", func(t *testing.T) {
		delta := parseObservationDelta("```json\n{\"sop\": {\"content\": \"x\"}}\n```")
		if delta.Sop == nil || delta.Sop.Content != "x" {
			t.Errorf("Sop = %+v, want content x", delta.Sop)
		}
	})

	t.Run("invalid json becomes a directed reply", func(t *testing.T) {
		delta := parseObservationDelta("Sure! Here is my answer.")
		if delta.Reply != "Sure! Here is my answer." {
			t.Errorf("Reply = %q, want raw text", delta.Reply)
		}
		if delta.Sop != nil || delta.Cro != nil {
			t.Error("expected no document deltas for invalid json")
		}
	})
}

func TestParseAnalysisSuggestions(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantTypes []string
	}{
		{
			name:      "valid suggestions",
			input:     `[{"type": "blocker", "message": "flag the db issue"}, {"type": "time_box", "message": "wrap up"}]`,
			wantCount: 2,
			wantTypes: []string{"blocker", "time_box"},
		},
		{
			name:      "empty array",
			input:     `[]`,
			wantCount: 0,
		},
		{
			name:      "unknown types filtered",
			input:     `[{"type": "celebrate", "message": "nice"}, {"type": "off_topic", "message": "back to the goal"}]`,
			wantCount: 1,
			wantTypes: []string{"off_topic"},
		},
		{
			name:      "empty messages filtered",
			input:     `[{"type": "blocker", "message": "  "}]`,
			wantCount: 0,
		},
		{
			name:      "not an array",
			input:     `{"type": "blocker", "message": "x"}`,
			wantCount: 0,
		},
		{
			name:      "prose response",
			input:     "The meeting looks fine to me.",
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAnalysisSuggestions(tt.input)
			if len(got) != tt.wantCount {
				t.Fatalf("len = %d, want %d", len(got), tt.wantCount)
			}
			for i, wantType := range tt.wantTypes {
				if got[i].Type != wantType {
					t.Errorf("suggestion %d type = %q, want %q", i, got[i].Type, wantType)
				}
			}
		})
	}
}
