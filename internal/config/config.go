// Package config loads selfimprove settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/selfimprove/internal/logging"
	"github.com/danielpatrickdp/selfimprove/internal/orchestrator"
)

// LLM providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGRPC   = "grpc"
)

// Config holds every section of the selfimprove configuration.
type Config struct {
	SelfImprove orchestrator.Config `koanf:"self_improve"`
	LLM         LLMConfig           `koanf:"llm"`
	Eval        EvalConfig          `koanf:"eval"`
	Patch       PatchConfig         `koanf:"patch"`
	Storage     StorageConfig       `koanf:"storage"`
	Log         logging.Config      `koanf:"log"`
	Metrics     MetricsConfig       `koanf:"metrics"`
}

// LLMConfig selects the model backing the proposer, challenger and reviewers.
// With provider "none" the stub collaborators are used.
type LLMConfig struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	GRPCAddr    string        `koanf:"grpc_addr"`
	Temperature float32       `koanf:"temperature"`
	Challenge   bool          `koanf:"challenge"` // run the devil's advocate phase
	Timeout     time.Duration `koanf:"timeout"`   // per completion
}

// EvalConfig describes the external evaluation harness.
type EvalConfig struct {
	Command      []string      `koanf:"command"`
	AgentCommand []string      `koanf:"agent_command"`
	Timeout      time.Duration `koanf:"timeout"`
}

// PatchConfig controls how accepted patches are applied.
type PatchConfig struct {
	Root           string            `koanf:"root"`
	DryRun         bool              `koanf:"dry_run"`
	ComponentFiles map[string]string `koanf:"component_files"` // bottleneck prefix -> file under root
}

// StorageConfig locates the sqlite database. An empty path disables persistence.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// MetricsConfig enables the /metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SelfImprove: orchestrator.DefaultConfig(),
		LLM: LLMConfig{
			Provider:    ProviderNone,
			Temperature: 0.2,
			Timeout:     2 * time.Minute,
		},
		Eval:    EvalConfig{Timeout: 30 * time.Minute},
		Patch:   PatchConfig{DryRun: true},
		Storage: StorageConfig{Path: "selfimprove.db"},
		Log:     logging.DefaultConfig(),
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if err := c.SelfImprove.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.LLM.Provider {
	case ProviderNone:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("llm.api_key is required for the openai provider"))
		}
	case ProviderGRPC:
		if c.LLM.GRPCAddr == "" {
			errs = append(errs, errors.New("llm.grpc_addr is required for the grpc provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of none, openai, grpc", c.LLM.Provider))
	}
	if c.LLM.Timeout < 0 || c.Eval.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must be non-negative"))
	}
	if !c.Patch.DryRun && c.Patch.Root == "" {
		errs = append(errs, errors.New("patch.root is required unless patch.dry_run is set"))
	}
	return errors.Join(errs...)
}
