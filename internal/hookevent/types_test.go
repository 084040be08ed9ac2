package hookevent_test

import (
	"encoding/json"
	"testing"

	"github.com/subluminal/hookmediator/internal/hookevent"
)

func TestHookEnvelopeUnmarshalCapturesRecognizedFields(t *testing.T) {
	raw := `{"hook_event_name":"PreToolUse","session_id":"sess-1","transcript_path":"/tmp/t.jsonl","tool_name":"Bash"}`
	var env hookevent.HookEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.HookName != "PreToolUse" {
		t.Errorf("unexpected HookName: %q", env.HookName)
	}
	if env.SessionID != "sess-1" {
		t.Errorf("unexpected SessionID: %q", env.SessionID)
	}
	if env.TranscriptPath != "/tmp/t.jsonl" {
		t.Errorf("unexpected TranscriptPath: %q", env.TranscriptPath)
	}
	if env.Str("tool_name") != "Bash" {
		t.Errorf("unexpected Str(tool_name): %q", env.Str("tool_name"))
	}
}

func TestHookEnvelopeMapReturnsNilForMissingOrWrongType(t *testing.T) {
	raw := `{"hook_event_name":"PreToolUse","session_id":"s","tool_input":{"a":1},"tool_name":"x"}`
	var env hookevent.HookEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Map("tool_input") == nil {
		t.Errorf("expected tool_input to be present")
	}
	if env.Map("tool_name") != nil {
		t.Errorf("expected Map on a non-object field to return nil")
	}
	if env.Map("missing") != nil {
		t.Errorf("expected Map on an absent key to return nil")
	}
}

func TestVerdictBlockedTreatsRejectedAsBlocked(t *testing.T) {
	cases := []struct {
		result  hookevent.Result
		blocked bool
	}{
		{hookevent.ResultPassed, false},
		{hookevent.ResultBlocked, true},
		{hookevent.ResultRejected, true},
	}
	for _, c := range cases {
		v := hookevent.Verdict{Result: c.result}
		if v.Blocked() != c.blocked {
			t.Errorf("Verdict{Result: %q}.Blocked() = %v, want %v", c.result, v.Blocked(), c.blocked)
		}
	}
}

func TestDecisionConstructors(t *testing.T) {
	if d := hookevent.Allow(); d.DecisionKind != "" || d.PermissionDecision != "" || d.Reason != "" {
		t.Errorf("expected Allow to be the zero Decision, got %+v", d)
	}
	if d := hookevent.Block("bad command"); d.DecisionKind != "block" || d.Reason != "bad command" {
		t.Errorf("unexpected Block decision: %+v", d)
	}
	if d := hookevent.Deny("bad command"); d.DecisionKind != "block" || d.PermissionDecision != "deny" || d.Reason != "bad command" {
		t.Errorf("unexpected Deny decision: %+v", d)
	}
}
