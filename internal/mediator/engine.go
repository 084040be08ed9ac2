// Package mediator implements the Mediation Engine: the per-invocation
// dispatcher that classifies the hook, pairs INPUT/OUTPUT events across
// process invocations via the Durable State Store, calls the Policy
// Client, emits transcript-derived turns, and returns the host-facing
// Decision (spec §4.6). It is adapted from the teacher's
// pkg/adapter/mcpstdio/proxy.go dispatch loop, restructured from a
// persistent bidirectional proxy into a single-shot classify-dispatch-
// close procedure, since this runtime spawns a fresh process per event.
package mediator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/subluminal/hookmediator/internal/audit"
	"github.com/subluminal/hookmediator/internal/classify"
	"github.com/subluminal/hookmediator/internal/config"
	"github.com/subluminal/hookmediator/internal/hookevent"
	"github.com/subluminal/hookmediator/internal/normalize"
	"github.com/subluminal/hookmediator/internal/payload"
	"github.com/subluminal/hookmediator/internal/policyclient"
	"github.com/subluminal/hookmediator/internal/store"
)

// pruneTTL bounds how long an open event may sit unclosed before
// opportunistic pruning reclaims it (spec §4.1 prune_stale).
const pruneTTL = 24 * time.Hour

// Engine wires together the components the Mediation Engine dispatches
// across for a single invocation.
type Engine struct {
	cfg        config.RunConfig
	store      *store.Store
	policy     *policyclient.Client
	builder    *payload.Builder
	normalizer *normalize.Normalizer
	auditLog   *audit.Log

	invocationID string
	verdicts     []hookevent.Verdict
}

// New constructs an Engine from its already-opened dependencies. The
// caller (cmd/mediator) owns opening/closing the Store and audit Log
// around the call to Handle.
func New(cfg config.RunConfig, st *store.Store, policy *policyclient.Client, auditLog *audit.Log) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  st,
		policy: policy,
		builder: payload.New(payload.Identity{
			APIKey:    cfg.APIKey,
			ProfileID: cfg.ProfileID,
			UseCaseID: cfg.UseCaseID,
			UserID:    cfg.UserID,
		}),
		normalizer:   normalize.New(cfg.MaxContentChars, []string{cfg.APIKey}),
		auditLog:     auditLog,
		invocationID: uuid.NewString(),
	}
}

// Handle runs the per-invocation procedure of spec §4.6 and returns the
// Decision to emit on stdout.
func (e *Engine) Handle(ctx context.Context, env hookevent.HookEnvelope) hookevent.Decision {
	if !e.cfg.Enabled {
		e.logSkip(env, "disabled")
		return hookevent.Allow()
	}

	if err := e.store.PruneStale(pruneTTL); err != nil {
		e.debugf("prune_stale: %v", err)
	}

	if e.cfg.TinyDebugMode && !classify.InTinySet(env.HookName) {
		e.logSkip(env, "tiny_debug_mode")
		return hookevent.Allow()
	}

	c := classify.Classify(env.HookName, env.SessionID, env.Body)

	if c.Telemetry {
		if e.cfg.SkipTelemetryAPISend {
			e.writeAudit(audit.TelemetrySkipped(e.invocationID, env.HookName, env.SessionID))
			return hookevent.Allow()
		}
		// Telemetry hooks with API send enabled still go through the
		// generic one-shot path as agt_agt observations, except
		// SessionEnd, which dispatches to its own handler.
	}

	e.dispatch(ctx, env, c)

	return e.finalDecision(ctx, env)
}

// finalDecision applies step 6 of spec §4.6: any blocked/rejected
// verdict on a block-capable hook in enforce mode forces a session-wide
// close and yields block/deny; otherwise allow.
func (e *Engine) finalDecision(ctx context.Context, env hookevent.HookEnvelope) hookevent.Decision {
	hookName := env.HookName
	var blocking *hookevent.Verdict
	for i := range e.verdicts {
		if e.verdicts[i].Blocked() {
			blocking = &e.verdicts[i]
			break
		}
	}

	if blocking == nil || !classify.BlockCapable(hookName) || e.cfg.Mode != config.ModeEnforce {
		return hookevent.Allow()
	}

	e.closeAllForSession(ctx, env, blocking.Reason)

	if hookName == "PreToolUse" || hookName == "PermissionRequest" {
		return hookevent.Deny(blocking.Reason)
	}
	return hookevent.Block(blocking.Reason)
}

func (e *Engine) dispatch(ctx context.Context, env hookevent.HookEnvelope, c classify.Classification) {
	switch env.HookName {
	case "UserPromptSubmit":
		e.handleUserPromptSubmit(ctx, env, c)
	case "PreToolUse":
		e.handlePreToolUse(ctx, env, c)
	case "PostToolUse", "PostToolUseFailure":
		e.handlePostToolUse(ctx, env, c)
	case "PermissionRequest":
		e.handlePermissionRequest(ctx, env, c)
	case "Stop":
		e.handleStop(ctx, env, env.SessionID, env.TranscriptPath, c.LinkKey)
	case "SubagentStop":
		e.handleStop(ctx, env, env.SessionID, env.TranscriptPath, c.LinkKey)
	case "SessionEnd":
		e.handleSessionEnd(ctx, env)
	default:
		// Telemetry / unrecognized hooks with API send enabled: a plain
		// one-shot observation, never block-capable.
		if c.Telemetry {
			e.oneShot(ctx, env, c.Class, env.HookName, "", "")
		}
	}
}

// --- composed store+policy operations (spec §4.1) ---

func (e *Engine) openEvent(ctx context.Context, class hookevent.EventClass, env hookevent.HookEnvelope, linkKey, input string, metadata map[string]any) (string, hookevent.Verdict) {
	req := e.builder.Create(string(class), env.SessionID, input, metadata)
	e.writeAuditRequest(env, req, "CREATE")

	verdict, err := e.policy.Create(ctx, req)
	if err != nil {
		e.debugf("policy create: %v", err)
		verdict = hookevent.Verdict{Result: hookevent.ResultPassed, Reason: "policy-client-error"}
	}
	e.writeAuditResponse(env, verdict)
	e.verdicts = append(e.verdicts, verdict)

	if verdict.EventID == "" {
		// CREATE failed to open upstream (e.g. fail-open with no
		// event_id): no state change, per spec §4.1.
		return "", verdict
	}

	metaJSON, _ := json.Marshal(metadata)
	openEvt := store.OpenEvent{
		EventID:      verdict.EventID,
		EventClass:   string(class),
		SessionID:    env.SessionID,
		HookName:     env.HookName,
		InputContent: input,
		MetadataJSON: string(metaJSON),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.InsertOpenEvent(openEvt, linkKey); err != nil {
		e.debugf("insert open event: %v", err)
	}
	return verdict.EventID, verdict
}

func (e *Engine) closeByLink(ctx context.Context, env hookevent.HookEnvelope, class hookevent.EventClass, linkKey, output string) hookevent.Verdict {
	evt, ok, err := e.store.LookupByLink(env.SessionID, linkKey)
	if err != nil {
		e.debugf("lookup link: %v", err)
	}

	if !ok {
		// Link missing: emit the UPDATE as a one-shot event without
		// pairing (spec §4.1).
		return e.oneShot(ctx, env, class, env.HookName, output, output)
	}

	req := e.builder.Update(evt.EventClass, env.SessionID, evt.EventID, evt.InputContent, output, nil)
	e.writeAuditRequest(env, req, "UPDATE")

	verdict, err := e.policy.Update(ctx, req)
	if err != nil {
		e.debugf("policy update: %v", err)
		verdict = hookevent.Verdict{Result: hookevent.ResultPassed, Reason: "policy-client-error"}
	}
	e.writeAuditResponse(env, verdict)
	e.verdicts = append(e.verdicts, verdict)

	if err := e.store.CloseLink(env.SessionID, linkKey, evt.EventID); err != nil {
		e.debugf("close link: %v", err)
	}
	return verdict
}

func (e *Engine) oneShot(ctx context.Context, env hookevent.HookEnvelope, class hookevent.EventClass, hookName, input, output string) hookevent.Verdict {
	createReq := e.builder.Create(string(class), env.SessionID, input, e.builder.Metadata(hookName, "", ""))
	e.writeAuditRequest(env, createReq, "CREATE")
	verdict, err := e.policy.Create(ctx, createReq)
	if err != nil {
		verdict = hookevent.Verdict{Result: hookevent.ResultPassed, Reason: "policy-client-error"}
	}
	e.writeAuditResponse(env, verdict)
	e.verdicts = append(e.verdicts, verdict)

	if verdict.EventID == "" {
		return verdict
	}

	updateReq := e.builder.Update(string(class), env.SessionID, verdict.EventID, input, output, nil)
	e.writeAuditRequest(env, updateReq, "UPDATE")
	updateVerdict, err := e.policy.Update(ctx, updateReq)
	if err != nil {
		updateVerdict = hookevent.Verdict{Result: hookevent.ResultPassed, Reason: "policy-client-error"}
	}
	e.writeAuditResponse(env, updateVerdict)
	e.verdicts = append(e.verdicts, updateVerdict)
	return updateVerdict
}

// closeAllForSession force-closes every remaining open event for a
// session with the given output text (spec §4.1), used on block and
// session end.
func (e *Engine) closeAllForSession(ctx context.Context, env hookevent.HookEnvelope, outputText string) {
	open, err := e.store.OpenEventsForSession(env.SessionID)
	if err != nil {
		e.debugf("list open events: %v", err)
		return
	}
	for _, linked := range open {
		req := e.builder.Update(linked.Event.EventClass, env.SessionID, linked.Event.EventID, linked.Event.InputContent, outputText, nil)
		e.writeAuditRequest(env, req, "UPDATE")
		verdict, err := e.policy.Update(ctx, req)
		if err != nil {
			e.debugf("policy update (close-all): %v", err)
		}
		e.writeAuditResponse(env, verdict)
		if err := e.store.CloseLink(env.SessionID, linked.LinkKey, linked.Event.EventID); err != nil {
			e.debugf("close link (close-all): %v", err)
		}
	}
}

// --- logging helpers ---

func (e *Engine) logSkip(env hookevent.HookEnvelope, reason string) {
	e.writeAudit(audit.Record{
		InvocationID: e.invocationID,
		HookName:     env.HookName,
		SessionID:    env.SessionID,
		Response:     map[string]any{"event_result": "skipped", "reason": reason},
	})
}

func (e *Engine) writeAuditRequest(env hookevent.HookEnvelope, req payload.Request, op string) {
	if e.cfg.PrintPayloads {
		data, _ := json.Marshal(req)
		fmt.Fprintf(os.Stderr, "[%s] %s\n", op, string(data))
	}
}

func (e *Engine) writeAuditResponse(env hookevent.HookEnvelope, verdict hookevent.Verdict) {
	e.writeAudit(audit.Record{
		InvocationID: e.invocationID,
		HookName:     env.HookName,
		SessionID:    env.SessionID,
		Response: map[string]any{
			"event_result": verdict.Result,
			"reason":       verdict.Reason,
		},
	})
}

func (e *Engine) writeAudit(rec audit.Record) {
	if e.auditLog == nil {
		return
	}
	if err := e.auditLog.Write(rec); err != nil {
		e.debugf("audit write: %v", err)
	}
}

func (e *Engine) debugf(format string, args ...any) {
	if e.cfg.DebugTrace {
		fmt.Fprintf(os.Stderr, "[mediator] "+format+"\n", args...)
	}
}

