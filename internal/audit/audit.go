// Package audit implements the Local Audit Log: an append-only
// line-delimited JSON record of every Policy API request and verdict
// (spec §4.2). Unlike the teacher's async background-goroutine Emitter
// (pkg/core/emitter.go in the source this was adapted from), every
// record here is written synchronously: a hook-mediation process lives
// for a single invocation and would not get a chance to drain a
// background queue before exit, and the audit log must never silently
// lose a record.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/subluminal/hookmediator/pkg/canonical"
)

// Record is one line of the audit log.
type Record struct {
	Timestamp    string         `json:"timestamp"`
	InvocationID string         `json:"invocation_id"`
	HookName     string         `json:"hook_name"`
	SessionID    string         `json:"session_id"`
	Request      map[string]any `json:"request,omitempty"`
	Response     map[string]any `json:"response,omitempty"`
	// ContentHash fingerprints Request+Response so an operator running
	// `mediator tail` can spot two records carrying identical content
	// (e.g. a retried UPDATE) without diffing the JSON by eye.
	ContentHash string `json:"content_hash,omitempty"`
}

// Log appends JSONL records to a single file, opened once per
// invocation and closed at process exit.
type Log struct {
	f *os.File
}

// Open opens (creating if necessary) the audit log file at path for
// appending.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &Log{f: f}, nil
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	return l.f.Close()
}

// Write appends one JSONL record. Serialization or write failures are
// returned to the caller; per spec §7 ("state store errors... degrade
// to stateless"), the Mediation Engine reports these on stderr only when
// debug tracing is on, and continues rather than failing the invocation.
func (l *Log) Write(r Record) error {
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if r.ContentHash == "" {
		if h, err := canonical.Hash(map[string]any{"request": r.Request, "response": r.Response}); err == nil {
			r.ContentHash = h
		}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.f.Write(data); err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	return nil
}

// TelemetrySkipped builds the synthetic record the spec requires for
// telemetry-only events when skip_telemetry_api_send is true: no
// network call occurs, but the local record still notes why.
func TelemetrySkipped(invocationID, hookName, sessionID string) Record {
	return Record{
		InvocationID: invocationID,
		HookName:     hookName,
		SessionID:    sessionID,
		Response: map[string]any{
			"event_result": "telemetry_skipped",
			"reason":       "skip_telemetry_api_send",
		},
	}
}

// LLMLocalOnly builds the synthetic record for agt_llm turns that are
// logged locally only, never POSTed, when llm_transcript_local_only is
// true.
func LLMLocalOnly(invocationID, hookName, sessionID string) Record {
	return Record{
		InvocationID: invocationID,
		HookName:     hookName,
		SessionID:    sessionID,
		Response: map[string]any{
			"event_result": "llm_local_only",
			"reason":       "llm_transcript_local_only",
		},
	}
}
