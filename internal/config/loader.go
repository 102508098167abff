package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SELFIMPROVE_"

const maxConfigFileSize = 1024 * 1024 // 1MB

// sections are matched longest first so SELF_IMPROVE_* is not split at "self".
var sections = []string{"self_improve", "metrics", "storage", "patch", "eval", "llm", "log"}

// Load reads configuration with the precedence env > YAML file > defaults.
// An empty path skips the file.
//
//	SELFIMPROVE_SELF_IMPROVE_MAX_ITERATIONS -> self_improve.max_iterations
//	SELFIMPROVE_LLM_API_KEY                 -> llm.api_key
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
		}
		if data, err = io.ReadAll(f); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse loads YAML bytes and environment overrides over the defaults.
func Parse(data []byte) (*Config, error) {
	k := koanf.New(".")

	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config yaml: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.LLM.Provider == ProviderOpenAI && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps SELFIMPROVE_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(lower, section+"_") {
			return section + "." + strings.TrimPrefix(lower, section+"_")
		}
	}
	return lower
}
