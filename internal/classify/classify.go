// Package classify maps a hook name plus payload to one of the semantic
// event classes the Mediation Engine dispatches on. Classification is a
// pure, deterministic function — no dynamic dispatch beyond the table
// below (spec §9 "hook subclass dispatch" re-architecture note).
package classify

import (
	"strings"

	"github.com/subluminal/hookmediator/internal/hookevent"
)

var memoryPatterns = []string{"memory", "store", "save"}
var subagentPatterns = []string{"task", "agent", "subagent"}

// tinySet is the reduced hook set honored when RunConfig.TinyDebugMode
// is enabled (spec §4.6 step 3).
var tinySet = map[string]bool{
	"UserPromptSubmit":   true,
	"PreToolUse":         true,
	"PostToolUse":        true,
	"PostToolUseFailure": true,
	"Stop":               true,
	"SessionEnd":         true,
}

// blockCapable is the set of hooks whose decision the host will honor as
// block/deny (spec §4.6). PostToolUseFailure is observe-only: the tool
// already failed, so there is nothing left to prevent.
var blockCapable = map[string]bool{
	"UserPromptSubmit":  true,
	"PreToolUse":        true,
	"PostToolUse":       true,
	"PermissionRequest": true,
	"Stop":              true,
	"SubagentStop":      true,
}

// telemetryHooks carry no security content and are logged locally by
// default without calling the Policy API.
var telemetryHooks = map[string]bool{
	"SessionStart":  true,
	"SessionEnd":    true,
	"Setup":         true,
	"Notification":  true,
	"PreCompact":    true,
	"TeammateIdle":  true,
	"TaskCompleted": true,
	"ConfigChange":  true,
}

// InTinySet reports whether hook_name is part of the reduced debug set.
func InTinySet(hookName string) bool {
	return tinySet[hookName]
}

// BlockCapable reports whether the host will honor a block/deny decision
// for this hook.
func BlockCapable(hookName string) bool {
	return blockCapable[hookName]
}

func isWorktreeHook(hookName string) bool {
	return strings.HasPrefix(hookName, "Worktree")
}

func isTelemetryOnly(hookName string) bool {
	return telemetryHooks[hookName] || isWorktreeHook(hookName)
}

// Classification is the result of classifying one hook invocation.
type Classification struct {
	Class     hookevent.EventClass
	Telemetry bool
	LinkKey   string
	// OneShot marks hooks (PermissionRequest) that CREATE and UPDATE in
	// a single dispatch instead of opening a link for a later close.
	OneShot bool
}

// Classify implements the spec §4.3 table. hookName is the raw
// hook_event_name; body carries the hook-specific payload fields needed
// to disambiguate PreToolUse/PermissionRequest tool targets.
func Classify(hookName string, sessionID string, body map[string]any) Classification {
	switch hookName {
	case "UserPromptSubmit":
		return Classification{Class: hookevent.ClassUserAgent, LinkKey: "prompt:" + sessionID}

	case "PreToolUse":
		toolName, _ := body["tool_name"].(string)
		toolUseID, _ := body["tool_use_id"].(string)
		return Classification{Class: classifyTool(toolName), LinkKey: "tool:" + toolUseID}

	case "PostToolUse", "PostToolUseFailure":
		toolUseID, _ := body["tool_use_id"].(string)
		return Classification{LinkKey: "tool:" + toolUseID}

	case "PermissionRequest":
		toolName, _ := body["tool_name"].(string)
		requestID, _ := body["request_id"].(string)
		class := classifyTool(toolName)
		if class == hookevent.ClassAgentMem {
			// PermissionRequest only distinguishes agt_tool/agt_agt (spec
			// §4.3); memory-pattern tool names still fall back to agt_tool.
			class = hookevent.ClassAgentTool
		}
		return Classification{Class: class, LinkKey: "permission:" + requestID, OneShot: true}

	case "Stop":
		return Classification{Class: hookevent.ClassUserAgent, LinkKey: "prompt:" + sessionID}

	case "SubagentStop":
		// Keyed the same as the UserPromptSubmit/Stop open side (plain
		// session key): there is no subagent-start hook that opens an
		// agent_id-qualified link, so qualifying here would never match.
		return Classification{Class: hookevent.ClassAgentAgt, LinkKey: "prompt:" + sessionID}

	default:
		// Unknown/future hook names default to the agt_agt telemetry
		// bucket to preserve fail-open (spec §9 open question).
		if isTelemetryOnly(hookName) {
			return Classification{Class: hookevent.ClassAgentAgt, Telemetry: true}
		}
		return Classification{Class: hookevent.ClassAgentAgt, Telemetry: true}
	}
}

// classifyTool applies the memory → subagent → tool precedence order
// (spec §4.3: "First matching class wins in the order memory → subagent
// → tool").
func classifyTool(toolName string) hookevent.EventClass {
	lower := strings.ToLower(toolName)
	if matchesAny(lower, memoryPatterns) {
		return hookevent.ClassAgentMem
	}
	if matchesAny(lower, subagentPatterns) {
		return hookevent.ClassAgentAgt
	}
	return hookevent.ClassAgentTool
}

func matchesAny(haystack string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}
