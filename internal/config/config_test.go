package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/subluminal/hookmediator/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"ENABLED", "MODE", "DRY_RUN", "PRINT_PAYLOADS", "MOCK_MODE",
		"MOCK_BLOCK_TOKENS", "FAIL_OPEN", "REQUEST_TIMEOUT_SECONDS",
		"API_URL", "API_KEY", "PROFILE_ID", "USE_CASE_ID", "USER_ID",
		"MAX_CONTENT_CHARS", "SKIP_TELEMETRY_API_SEND",
		"LLM_TRANSCRIPT_LOCAL_ONLY", "STATE_DIR", "LOG_PATH",
		"TINY_DEBUG_MODE", "DEBUG_TRACE", "DEBUG_TRACE_PATH", "CONFIG_FILE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_DIR", t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.Enabled {
		t.Errorf("expected Enabled default true")
	}
	if cfg.Mode != config.ModeEnforce {
		t.Errorf("expected default mode enforce, got %s", cfg.Mode)
	}
	if !cfg.FailOpen {
		t.Errorf("expected FailOpen default true")
	}
	if cfg.RequestTimeoutSeconds != 15 {
		t.Errorf("expected default timeout 15, got %d", cfg.RequestTimeoutSeconds)
	}
	if cfg.MaxContentChars != 100000 {
		t.Errorf("expected default max content chars 100000, got %d", cfg.MaxContentChars)
	}
	if !cfg.SkipTelemetryAPISend {
		t.Errorf("expected SkipTelemetryAPISend default true")
	}
	if !cfg.LLMTranscriptLocalOnly {
		t.Errorf("expected LLMTranscriptLocalOnly default true")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_DIR", t.TempDir())
	t.Setenv("MODE", "observe")
	t.Setenv("FAIL_OPEN", "false")
	t.Setenv("MOCK_MODE", "true")
	t.Setenv("MOCK_BLOCK_TOKENS", "jailbreak, rm -rf /")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Mode != config.ModeObserve {
		t.Errorf("expected observe mode, got %s", cfg.Mode)
	}
	if cfg.FailOpen {
		t.Errorf("expected FailOpen overridden to false")
	}
	if !cfg.MockMode {
		t.Errorf("expected MockMode true")
	}
	if len(cfg.MockBlockTokens) != 2 || cfg.MockBlockTokens[1] != "rm -rf /" {
		t.Errorf("unexpected mock block tokens: %v", cfg.MockBlockTokens)
	}
}

func TestFileLayerUnderEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("STATE_DIR", dir)

	path := filepath.Join(dir, "config.yaml")
	contents := "mode: observe\napi_url: https://file.example/api\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_URL", "https://env.example/api")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Mode != config.ModeObserve {
		t.Errorf("expected file-provided mode observe, got %s", cfg.Mode)
	}
	if cfg.APIURL != "https://env.example/api" {
		t.Errorf("expected env to win over file, got %s", cfg.APIURL)
	}
}

func TestMissingConfigFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_DIR", t.TempDir())
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	if _, err := config.Load(); err != nil {
		t.Fatalf("expected missing config file to be tolerated, got %v", err)
	}
}
