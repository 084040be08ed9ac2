// Package hookevent defines the wire shapes exchanged with the host
// runtime: the inbound HookEnvelope, the EventClass taxonomy, and the
// outbound Decision.
package hookevent

import "encoding/json"

// EventClass is the closed set of semantic classes a hook invocation can
// be classified into.
type EventClass string

const (
	ClassUserAgent EventClass = "user_agt"
	ClassAgentLLM  EventClass = "agt_llm"
	ClassAgentTool EventClass = "agt_tool"
	ClassAgentMem  EventClass = "agt_mem"
	ClassAgentAgt  EventClass = "agt_agt"
)

// HookEnvelope is the input delivered by the host on stdin. Body carries
// the hook-specific payload (prompt text, tool name/input, permission
// request, …) as a free-form map since its shape depends on hook_name.
type HookEnvelope struct {
	HookName       string         `json:"hook_event_name"`
	SessionID      string         `json:"session_id"`
	TranscriptPath string         `json:"transcript_path,omitempty"`
	Body           map[string]any `json:"-"`
}

// UnmarshalJSON captures the recognized envelope fields and retains the
// full object as Body so handlers can reach hook-specific keys.
func (h *HookEnvelope) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Body = raw
	if v, ok := raw["hook_event_name"].(string); ok {
		h.HookName = v
	}
	if v, ok := raw["session_id"].(string); ok {
		h.SessionID = v
	}
	if v, ok := raw["transcript_path"].(string); ok {
		h.TranscriptPath = v
	}
	return nil
}

// Str returns the string value at key, or "" if absent or not a string.
func (h *HookEnvelope) Str(key string) string {
	if h.Body == nil {
		return ""
	}
	v, _ := h.Body[key].(string)
	return v
}

// Map returns the map value at key, or nil if absent or not an object.
func (h *HookEnvelope) Map(key string) map[string]any {
	if h.Body == nil {
		return nil
	}
	v, _ := h.Body[key].(map[string]any)
	return v
}

// Result is the Policy API's verdict for a CREATE or UPDATE request.
type Result string

const (
	ResultPassed   Result = "passed"
	ResultBlocked  Result = "blocked"
	ResultRejected Result = "rejected"
)

// Verdict is returned by the Policy Client for each request. Response
// fields other than event_id/event_result/reason are not kept: decoding
// a response into a Verdict drops them.
type Verdict struct {
	EventID string `json:"event_id,omitempty"`
	Result  Result `json:"event_result"`
	Reason  string `json:"reason,omitempty"`
}

// Blocked reports whether the verdict should be honored as a block.
// Rejected is treated identically to blocked for host decision purposes
// (spec §7), though the two are logged distinctly.
func (v Verdict) Blocked() bool {
	return v.Result == ResultBlocked || v.Result == ResultRejected
}

// Decision is emitted to the host on stdout. The zero value is "allow".
type Decision struct {
	DecisionKind       string `json:"decision,omitempty"`
	PermissionDecision string `json:"permissionDecision,omitempty"`
	Reason             string `json:"reason,omitempty"`
}

// Allow is the empty decision: proceed.
func Allow() Decision { return Decision{} }

// Block constructs a block decision carrying the policy reason.
func Block(reason string) Decision {
	return Decision{DecisionKind: "block", Reason: reason}
}

// Deny constructs a tool-permission-deny decision carrying the policy
// reason, used for PreToolUse and PermissionRequest boundaries.
func Deny(reason string) Decision {
	return Decision{DecisionKind: "block", PermissionDecision: "deny", Reason: reason}
}
