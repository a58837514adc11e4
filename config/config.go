// Package config loads the example composition root's on-disk settings
// file with koanf, grounded in the teacher's common/local_config.go
// (koanf.New(".") + file.Provider + a format-specific parser, then
// Unmarshal into a typed struct). Unlike the teacher, which only reads
// YAML, this loader picks a parser from the file extension so the same
// loader serves json/yaml/toml fixtures across the example composition
// root and its tests.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"agentcore/collab"
)

var (
	_ collab.SettingsProvider = Config{}
	_ collab.HardwareProfile  = Config{}
)

// ModelDefaults holds the per-provider default model name plus the
// sampling parameters the SettingsProvider contract exposes.
type ModelDefaults struct {
	DefaultModels map[string]string `koanf:"default_models"`
	Temperature   float32           `koanf:"temperature"`
	MaxTokens     int               `koanf:"max_tokens"`
}

// HardwareLimits holds the resource ceilings HardwareProfile exposes.
type HardwareLimits struct {
	MaxWarmChunks    int `koanf:"max_warm_chunks"`
	MaxContextTokens int `koanf:"max_context_tokens"`
}

// Config is the on-disk configuration shape for the example composition
// root. It implements both collab.SettingsProvider and
// collab.HardwareProfile directly, so cmd/agentcored can wire a loaded
// Config straight into a Runner without an adapter type in between.
type Config struct {
	Model          ModelDefaults  `koanf:"model"`
	Hardware       HardwareLimits `koanf:"hardware"`
	CapDirs        []string       `koanf:"cap_directories"`
	ToolsDirectory string         `koanf:"tools_directory"`
}

func (c Config) DefaultModel(provider string) string {
	return c.Model.DefaultModels[provider]
}

func (c Config) Temperature() float32 { return c.Model.Temperature }

func (c Config) MaxTokens() int { return c.Model.MaxTokens }

func (c Config) CapDirectories() []string {
	return append([]string(nil), c.CapDirs...)
}

func (c Config) MaxWarmChunks() int { return c.Hardware.MaxWarmChunks }

func (c Config) MaxContextTokens() int { return c.Hardware.MaxContextTokens }

// Load reads configPath with the parser matching its extension
// (.json/.yaml/.yml/.toml) and unmarshals it into a Config. A missing
// file returns a zero-value Config, mirroring LoadSidekickConfig's
// "absent config is an empty config" behavior rather than an error.
func Load(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, nil
	}

	parser, err := parserFor(configPath)
	if err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), parser); err != nil {
		return Config{}, fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config from %s: %w", configPath, err)
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unrecognized config file extension: %s", path)
	}
}
