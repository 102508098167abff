package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 3, cfg.SelfImprove.MaxIterations)
	assert.True(t, cfg.Patch.DryRun)
}

func TestParseYAMLKeepsUnsetDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
self_improve:
  max_iterations: 5
  regression_threshold: 2.5
llm:
  provider: grpc
  grpc_addr: localhost:9090
  timeout: 45s
eval:
  command: [python, -m, bench.run]
patch:
  dry_run: false
  root: /srv/agent
  component_files:
    needle: prompts/retrieval.md
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.SelfImprove.MaxIterations)
	assert.InDelta(t, 2.5, cfg.SelfImprove.RegressionThreshold, 1e-9)
	assert.InDelta(t, 0.7, cfg.SelfImprove.FailureThreshold, 1e-9, "default survives")
	assert.Equal(t, 20, cfg.SelfImprove.NumQuestions)
	assert.Equal(t, ProviderGRPC, cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"python", "-m", "bench.run"}, cfg.Eval.Command)
	assert.Equal(t, "prompts/retrieval.md", cfg.Patch.ComponentFiles["needle"])
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SELFIMPROVE_SELF_IMPROVE_MAX_ITERATIONS", "7")
	t.Setenv("SELFIMPROVE_LOG_LEVEL", "debug")
	t.Setenv("SELFIMPROVE_METRICS_ADDR", ":9100")

	cfg, err := Parse([]byte("self_improve:\n  max_iterations: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.SelfImprove.MaxIterations)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SELFIMPROVE_SELF_IMPROVE_OUTPUT_DIR": "self_improve.output_dir",
		"SELFIMPROVE_LLM_API_KEY":             "llm.api_key",
		"SELFIMPROVE_EVAL_AGENT_COMMAND":      "eval.agent_command",
		"SELFIMPROVE_PATCH_DRY_RUN":           "patch.dry_run",
		"SELFIMPROVE_UNKNOWN":                 "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Parse([]byte("llm:\n  provider: openai\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad provider", func(c *Config) { c.LLM.Provider = "claude" }, "llm.provider"},
		{"openai without key", func(c *Config) { c.LLM.Provider = ProviderOpenAI }, "api_key"},
		{"grpc without addr", func(c *Config) { c.LLM.Provider = ProviderGRPC }, "grpc_addr"},
		{"live patch without root", func(c *Config) { c.Patch.DryRun = false }, "patch.root"},
		{"negative timeout", func(c *Config) { c.Eval.Timeout = -time.Second }, "non-negative"},
		{"orchestrator range", func(c *Config) { c.SelfImprove.MaxIterations = 0 }, "max_iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selfimprove.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: runs.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "runs.db", cfg.Storage.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
