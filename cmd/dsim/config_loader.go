package main

import (
	"fmt"
	"os"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gyaml "gopkg.in/yaml.v3"

	"github.com/chaoslab/dsim/pkg/config"
)

// loadConfig merges three layers, lowest precedence first: dsim's
// built-in defaults, the YAML file at path (if it exists), then
// DSIM_-prefixed environment variables.
//
// Nested fields are addressed in the environment with a double
// underscore, e.g. DSIM_SIMULATION__PACKET_LOSS_RATE=0.1 sets
// simulation.packet_loss_rate.
func loadConfig(path string) (*config.Config, error) {
	defaultsRaw, err := gyaml.Marshal(config.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshal built-in defaults: %w", err)
	}
	var defaultsMap map[string]any
	if err := gyaml.Unmarshal(defaultsRaw, &defaultsMap); err != nil {
		return nil, fmt.Errorf("unmarshal built-in defaults: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultsMap, "."), nil); err != nil {
		return nil, fmt.Errorf("load built-in defaults: %w", err)
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	envProvider := env.Provider("DSIM_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "DSIM_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	cfg := &config.Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshal merged config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
