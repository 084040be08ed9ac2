package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/subluminal/hookmediator/internal/audit"
)

func TestWriteAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := audit.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	if err := log.Write(audit.Record{InvocationID: "i1", HookName: "UserPromptSubmit", SessionID: "sess1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := log.Write(audit.Record{InvocationID: "i2", HookName: "Stop", SessionID: "sess1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open for read: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec audit.Record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if rec.InvocationID != "i1" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Timestamp == "" {
		t.Errorf("expected a timestamp to be stamped")
	}
}

func TestWriteStampsContentHash(t *testing.T) {
	readBack := func(req map[string]any) audit.Record {
		path := filepath.Join(t.TempDir(), "audit.jsonl")
		log, err := audit.Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer log.Close()
		if err := log.Write(audit.Record{InvocationID: "i1", HookName: "PreToolUse", SessionID: "sess1", Request: req}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		var rec audit.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		return rec
	}

	bash := readBack(map[string]any{"tool_name": "Bash"})
	write := readBack(map[string]any{"tool_name": "Write"})

	if len(bash.ContentHash) != 64 {
		t.Errorf("expected a 64-char hex content hash, got %q", bash.ContentHash)
	}
	if bash.ContentHash == write.ContentHash {
		t.Errorf("different request content produced the same content hash")
	}
}

func TestTelemetrySkippedRecordShape(t *testing.T) {
	rec := audit.TelemetrySkipped("i1", "SessionStart", "sess1")
	if rec.Response["event_result"] != "telemetry_skipped" {
		t.Errorf("unexpected response: %+v", rec.Response)
	}
}

func TestLLMLocalOnlyRecordShape(t *testing.T) {
	rec := audit.LLMLocalOnly("i1", "Stop", "sess1")
	if rec.Response["event_result"] != "llm_local_only" {
		t.Errorf("unexpected response: %+v", rec.Response)
	}
}

func TestAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	first, err := audit.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Write(audit.Record{InvocationID: "i1", HookName: "UserPromptSubmit", SessionID: "sess1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first.Close()

	second, err := audit.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if err := second.Write(audit.Record{InvocationID: "i2", HookName: "Stop", SessionID: "sess1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lineCount := 0
	for _, b := range data {
		if b == '\n' {
			lineCount++
		}
	}
	if lineCount != 2 {
		t.Errorf("expected 2 lines across reopen, got %d", lineCount)
	}
}
