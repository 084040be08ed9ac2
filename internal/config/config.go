// Package config loads the immutable RunConfig value every invocation
// constructs once and passes by reference (spec §9: "no hidden
// globals"). Precedence, lowest to highest: built-in defaults, an
// optional YAML defaults file, environment variables, then per-invocation
// CLI flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode is the enforcement mode.
type Mode string

const (
	ModeEnforce Mode = "enforce"
	ModeObserve Mode = "observe"
)

// RunConfig is immutable once built and read-only to every package
// downstream of the Mediation Engine (spec §3 Ownership).
type RunConfig struct {
	Enabled bool
	Mode    Mode

	DryRun          bool
	PrintPayloads   bool
	MockMode        bool
	MockBlockTokens []string
	FailOpen        bool

	APIURL    string
	APIKey    string
	ProfileID string
	UseCaseID string
	UserID    string

	MaxContentChars       int
	RequestTimeoutSeconds int

	StateDir string
	LogPath  string

	SkipTelemetryAPISend   bool
	LLMTranscriptLocalOnly bool

	TinyDebugMode  bool
	DebugTrace     bool
	DebugTracePath string
}

// fileLayer is the optional on-disk YAML defaults document. Every field
// is optional; an absent or unreadable file simply contributes nothing
// (the env/flag layers still apply).
type fileLayer struct {
	Enabled                *bool    `yaml:"enabled"`
	Mode                   string   `yaml:"mode"`
	DryRun                 *bool    `yaml:"dry_run"`
	PrintPayloads          *bool    `yaml:"print_payloads"`
	MockMode               *bool    `yaml:"mock_mode"`
	MockBlockTokens        []string `yaml:"mock_block_tokens"`
	FailOpen               *bool    `yaml:"fail_open"`
	APIURL                 string   `yaml:"api_url"`
	APIKey                 string   `yaml:"api_key"`
	ProfileID              string   `yaml:"profile_id"`
	UseCaseID              string   `yaml:"use_case_id"`
	UserID                 string   `yaml:"user_id"`
	MaxContentChars        *int     `yaml:"max_content_chars"`
	RequestTimeoutSeconds  *int     `yaml:"request_timeout_seconds"`
	StateDir               string   `yaml:"state_dir"`
	LogPath                string   `yaml:"log_path"`
	SkipTelemetryAPISend   *bool    `yaml:"skip_telemetry_api_send"`
	LLMTranscriptLocalOnly *bool    `yaml:"llm_transcript_local_only"`
	TinyDebugMode          *bool    `yaml:"tiny_debug_mode"`
	DebugTrace             *bool    `yaml:"debug_trace"`
	DebugTracePath         string   `yaml:"debug_trace_path"`
}

// defaults returns the built-in baseline (spec §6 "Configuration").
func defaults() RunConfig {
	return RunConfig{
		Enabled:                true,
		Mode:                   ModeEnforce,
		FailOpen:               true,
		RequestTimeoutSeconds:  15,
		MaxContentChars:        100000,
		SkipTelemetryAPISend:   true,
		LLMTranscriptLocalOnly: true,
	}
}

// Load builds the RunConfig by layering an optional CONFIG_FILE, then
// environment variables, over the built-in defaults. CLI flag overrides
// are applied afterward by the caller via the With* mutators below,
// matching the teacher's pickValue(flag, env) precedence in cmd/sub/run.go.
func Load() (RunConfig, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	return cfg, nil
}

func applyFile(cfg *RunConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var fl fileLayer
	if err := yaml.Unmarshal(data, &fl); err != nil {
		return err
	}

	if fl.Enabled != nil {
		cfg.Enabled = *fl.Enabled
	}
	if fl.Mode != "" {
		cfg.Mode = Mode(fl.Mode)
	}
	if fl.DryRun != nil {
		cfg.DryRun = *fl.DryRun
	}
	if fl.PrintPayloads != nil {
		cfg.PrintPayloads = *fl.PrintPayloads
	}
	if fl.MockMode != nil {
		cfg.MockMode = *fl.MockMode
	}
	if len(fl.MockBlockTokens) > 0 {
		cfg.MockBlockTokens = fl.MockBlockTokens
	}
	if fl.FailOpen != nil {
		cfg.FailOpen = *fl.FailOpen
	}
	if fl.APIURL != "" {
		cfg.APIURL = fl.APIURL
	}
	if fl.APIKey != "" {
		cfg.APIKey = fl.APIKey
	}
	if fl.ProfileID != "" {
		cfg.ProfileID = fl.ProfileID
	}
	if fl.UseCaseID != "" {
		cfg.UseCaseID = fl.UseCaseID
	}
	if fl.UserID != "" {
		cfg.UserID = fl.UserID
	}
	if fl.MaxContentChars != nil {
		cfg.MaxContentChars = *fl.MaxContentChars
	}
	if fl.RequestTimeoutSeconds != nil {
		cfg.RequestTimeoutSeconds = *fl.RequestTimeoutSeconds
	}
	if fl.StateDir != "" {
		cfg.StateDir = fl.StateDir
	}
	if fl.LogPath != "" {
		cfg.LogPath = fl.LogPath
	}
	if fl.SkipTelemetryAPISend != nil {
		cfg.SkipTelemetryAPISend = *fl.SkipTelemetryAPISend
	}
	if fl.LLMTranscriptLocalOnly != nil {
		cfg.LLMTranscriptLocalOnly = *fl.LLMTranscriptLocalOnly
	}
	if fl.TinyDebugMode != nil {
		cfg.TinyDebugMode = *fl.TinyDebugMode
	}
	if fl.DebugTrace != nil {
		cfg.DebugTrace = *fl.DebugTrace
	}
	if fl.DebugTracePath != "" {
		cfg.DebugTracePath = fl.DebugTracePath
	}
	return nil
}

func applyEnv(cfg *RunConfig) {
	if v, ok := lookupBool("ENABLED"); ok {
		cfg.Enabled = v
	}
	if v := os.Getenv("MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v, ok := lookupBool("DRY_RUN"); ok {
		cfg.DryRun = v
	}
	if v, ok := lookupBool("PRINT_PAYLOADS"); ok {
		cfg.PrintPayloads = v
	}
	if v, ok := lookupBool("MOCK_MODE"); ok {
		cfg.MockMode = v
	}
	if v := os.Getenv("MOCK_BLOCK_TOKENS"); v != "" {
		cfg.MockBlockTokens = splitCSV(v)
	}
	if v, ok := lookupBool("FAIL_OPEN"); ok {
		cfg.FailOpen = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeoutSeconds = n
		}
	}
	if v := os.Getenv("API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PROFILE_ID"); v != "" {
		cfg.ProfileID = v
	}
	if v := os.Getenv("USE_CASE_ID"); v != "" {
		cfg.UseCaseID = v
	}
	if v := os.Getenv("USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("MAX_CONTENT_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxContentChars = n
		}
	}
	if v := os.Getenv("SKIP_TELEMETRY_API_SEND"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SkipTelemetryAPISend = b
		}
	}
	if v := os.Getenv("LLM_TRANSCRIPT_LOCAL_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LLMTranscriptLocalOnly = b
		}
	}
	if v := os.Getenv("STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v, ok := lookupBool("TINY_DEBUG_MODE"); ok {
		cfg.TinyDebugMode = v
	}
	if v, ok := lookupBool("DEBUG_TRACE"); ok {
		cfg.DebugTrace = v
	}
	if v := os.Getenv("DEBUG_TRACE_PATH"); v != "" {
		cfg.DebugTracePath = v
	}

	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	if cfg.LogPath == "" {
		cfg.LogPath = cfg.StateDir + "/audit.jsonl"
	}
}

func lookupBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WithMode overrides Mode, the third (CLI flag) layer over file+env
// (spec §3/§6 three-layer merge of file, env and flags over the built-in
// defaults).
func (c RunConfig) WithMode(mode Mode) RunConfig {
	if mode != "" {
		c.Mode = mode
	}
	return c
}

// WithDryRun overrides DryRun from a per-invocation --dry-run flag.
func (c RunConfig) WithDryRun(dryRun bool) RunConfig {
	c.DryRun = dryRun
	return c
}

// WithMockMode overrides MockMode from a per-invocation --mock flag.
func (c RunConfig) WithMockMode(mockMode bool) RunConfig {
	c.MockMode = mockMode
	return c
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".hookmediator"
	}
	return home + "/.hookmediator"
}
