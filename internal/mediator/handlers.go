package mediator

import (
	"context"

	"github.com/subluminal/hookmediator/internal/audit"
	"github.com/subluminal/hookmediator/internal/classify"
	"github.com/subluminal/hookmediator/internal/hookevent"
	"github.com/subluminal/hookmediator/internal/transcript"
)

const (
	reviewedMarker = "[permission_reviewed]"
	sessionEndText = "[session_end]"
)

func (e *Engine) handleUserPromptSubmit(ctx context.Context, env hookevent.HookEnvelope, c classify.Classification) {
	input := e.normalizer.Text(env.Str("prompt"))
	metadata := e.builder.Metadata(env.HookName, "", "")
	e.openEvent(ctx, c.Class, env, c.LinkKey, input, metadata)
}

func (e *Engine) handlePreToolUse(ctx context.Context, env hookevent.HookEnvelope, c classify.Classification) {
	toolName := env.Str("tool_name")
	input := e.normalizer.Structured(map[string]any{
		"tool_name":  toolName,
		"tool_input": env.Map("tool_input"),
	})
	metadata := e.builder.Metadata(env.HookName, toolName, "")
	e.openEvent(ctx, c.Class, env, c.LinkKey, input, metadata)
}

func (e *Engine) handlePostToolUse(ctx context.Context, env hookevent.HookEnvelope, c classify.Classification) {
	var output string
	if env.HookName == "PostToolUseFailure" {
		output = env.Str("error")
	} else {
		output = env.Str("tool_response")
	}
	e.closeByLink(ctx, env, c.Class, c.LinkKey, e.normalizer.Text(output))
}

func (e *Engine) handlePermissionRequest(ctx context.Context, env hookevent.HookEnvelope, c classify.Classification) {
	toolName := env.Str("tool_name")
	input := e.normalizer.Structured(map[string]any{
		"tool_name":  toolName,
		"tool_input": env.Map("tool_input"),
	})

	// CREATE with the request context, then immediately UPDATE with the
	// reviewed marker (spec §4.6) — the block reason, if any, still
	// drives finalDecision via e.verdicts regardless of this output text.
	e.oneShot(ctx, env, c.Class, env.HookName, input, reviewedMarker)
}

// handleStop implements both Stop and SubagentStop (spec §4.6): emit
// every unseen transcript turn as agt_llm, close the prompt link with
// the final assistant text, and advance the cursor past the last
// emitted turn.
func (e *Engine) handleStop(ctx context.Context, env hookevent.HookEnvelope, sessionID, transcriptPath, promptLinkKey string) {
	if transcriptPath == "" {
		e.closeByLink(ctx, env, hookevent.ClassUserAgent, promptLinkKey, "")
		return
	}

	cursor, err := e.store.GetCursor(sessionID, transcriptPath)
	if err != nil {
		e.debugf("get cursor: %v", err)
		cursor = -1
	}

	turns, err := transcript.ReadSince(transcriptPath, cursor)
	if err != nil {
		e.debugf("read transcript: %v", err)
	}

	lastOutput := ""
	highestEmitted := cursor
	for _, t := range turns {
		lastOutput = t.Output

		if e.cfg.LLMTranscriptLocalOnly {
			e.writeAudit(audit.LLMLocalOnly(e.invocationID, env.HookName, sessionID))
			highestEmitted = t.Index
			continue
		}

		// The cursor advances only for successfully emitted turns (spec
		// §5): a turn whose emission attempt ran still counts as
		// emitted, since the Policy Client always resolves synchronously
		// to a verdict (fail-open or otherwise), never leaving the call
		// pending.
		e.oneShot(ctx, env, hookevent.ClassAgentLLM,
			env.HookName,
			e.normalizer.Text(t.Input),
			e.normalizer.Text(t.Output),
		)
		highestEmitted = t.Index
	}

	if highestEmitted != cursor {
		if err := e.store.SetCursor(sessionID, transcriptPath, highestEmitted); err != nil {
			e.debugf("set cursor: %v", err)
		}
	}

	e.closeByLink(ctx, env, hookevent.ClassUserAgent, promptLinkKey, e.normalizer.Text(lastOutput))
}

func (e *Engine) handleSessionEnd(ctx context.Context, env hookevent.HookEnvelope) {
	e.closeAllForSession(ctx, env, sessionEndText)
	if err := e.store.ClearSession(env.SessionID); err != nil {
		e.debugf("clear session: %v", err)
	}
}
