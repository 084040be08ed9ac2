package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/subluminal/hookmediator/internal/audit"
	"github.com/subluminal/hookmediator/internal/config"
	"github.com/subluminal/hookmediator/internal/hookevent"
	"github.com/subluminal/hookmediator/internal/mediator"
	"github.com/subluminal/hookmediator/internal/policyclient"
	"github.com/subluminal/hookmediator/internal/store"
)

// parseHookFlags applies the third, highest-precedence RunConfig layer:
// per-invocation CLI flags over the file+env merge already in cfg (spec
// §3/§6). Unrecognized flags are tolerated rather than fatal — hosts
// invoke this binary with arbitrary or no arguments, and a malformed
// flag must not wedge the hook.
func parseHookFlags(cfg config.RunConfig, args []string) config.RunConfig {
	flags := flag.NewFlagSet("hook", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	mode := flags.String("mode", "", "override RunConfig.Mode for this invocation")
	dryRun := flags.Bool("dry-run", cfg.DryRun, "override RunConfig.DryRun for this invocation")
	mockMode := flags.Bool("mock", cfg.MockMode, "override RunConfig.MockMode for this invocation")

	if err := flags.Parse(args); err != nil {
		return cfg
	}

	cfg = cfg.WithMode(config.Mode(*mode)).WithDryRun(*dryRun).WithMockMode(*mockMode)
	return cfg
}

func runHook(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		// A broken config file must not wedge the host: fail open and
		// let the invocation proceed unobserved.
		fmt.Fprintf(os.Stderr, "mediator: config load: %v\n", err)
		return emitAllow()
	}
	cfg = parseHookFlags(cfg, args)

	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mediator: read stdin: %v\n", err)
		return emitAllow()
	}

	var env hookevent.HookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		fmt.Fprintf(os.Stderr, "mediator: decode hook envelope: %v\n", err)
		return emitAllow()
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mediator: create state dir: %v\n", err)
		return emitAllow()
	}

	auditLog, err := audit.Open(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mediator: open audit log: %v\n", err)
		auditLog = nil
	}
	if auditLog != nil {
		defer auditLog.Close()
	}

	if !cfg.Enabled {
		logDisabledSkip(auditLog, env)
		return emitAllow()
	}

	st, err := store.Open(filepath.Join(cfg.StateDir, "state.db"))
	if err != nil {
		// The durable state store is unavailable: emit allow rather than
		// blocking the host. This invocation is not observed: no Policy
		// API call is made.
		fmt.Fprintf(os.Stderr, "mediator: open state store: %v\n", err)
		return emitAllow()
	}
	defer st.Close()

	policy := policyclient.New(cfg.APIURL,
		policyclient.WithTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second),
		policyclient.WithDryRun(cfg.DryRun),
		policyclient.WithMockMode(cfg.MockMode, cfg.MockBlockTokens),
		policyclient.WithFailOpen(cfg.FailOpen),
	)

	engine := mediator.New(cfg, st, policy, auditLog)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeoutSeconds+5)*time.Second)
	defer cancel()

	decision := engine.Handle(ctx, env)
	if err := mediator.EmitDecision(os.Stdout, decision); err != nil {
		fmt.Fprintf(os.Stderr, "mediator: emit decision: %v\n", err)
		return 1
	}
	return 0
}

func emitAllow() int {
	if err := mediator.EmitDecision(os.Stdout, hookevent.Allow()); err != nil {
		fmt.Fprintf(os.Stderr, "mediator: emit decision: %v\n", err)
		return 1
	}
	return 0
}

// logDisabledSkip records the "disabled" skip (spec §4.6 step 2) from
// the real entrypoint, mirroring mediator.Engine.logSkip's shape. This
// runs before an Engine is constructed, since a disabled RunConfig never
// reaches mediator.New.
func logDisabledSkip(auditLog *audit.Log, env hookevent.HookEnvelope) {
	if auditLog == nil {
		return
	}
	rec := audit.Record{
		InvocationID: uuid.NewString(),
		HookName:     env.HookName,
		SessionID:    env.SessionID,
		Response:     map[string]any{"event_result": "skipped", "reason": "disabled"},
	}
	if err := auditLog.Write(rec); err != nil {
		fmt.Fprintf(os.Stderr, "mediator: audit write: %v\n", err)
	}
}
