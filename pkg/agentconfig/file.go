package agentconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"golaunch/pkg/protocol"
)

// fileConfig is the on-disk shape of an agent config file. Args and Env
// take their natural list and table forms there.
type fileConfig struct {
	Source       string            `yaml:"source" toml:"source"`
	AgentID      string            `yaml:"agent_id" toml:"agent_id"`
	BinaryPath   string            `yaml:"binary_path" toml:"binary_path"`
	Args         []string          `yaml:"args" toml:"args"`
	Env          map[string]string `yaml:"env" toml:"env"`
	AutoFallback bool              `yaml:"auto_fallback" toml:"auto_fallback"`
}

// LoadFile reads an agent config from a .yaml, .yml or .toml file.
//
// Example (YAML):
//
//	agent_id: claude-code
//	binary_path: /usr/local/bin/claude-code-acp
//	args: [--verbose]
//	env:
//	  ANTHROPIC_LOG: debug
func LoadFile(path string) (protocol.AgentConfig, error) {
	//nolint:gosec // path is supplied by the user on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return protocol.AgentConfig{}, fmt.Errorf("read agent config: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil {
			return protocol.AgentConfig{}, fmt.Errorf("parse agent config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return protocol.AgentConfig{}, fmt.Errorf("parse agent config %s: %w", path, err)
		}
	default:
		return protocol.AgentConfig{}, fmt.Errorf("agent config %s: unsupported extension %q", path, ext)
	}
	return fc.agentConfig(), nil
}

func (fc fileConfig) agentConfig() protocol.AgentConfig {
	keys := make([]string, 0, len(fc.Env))
	for k := range fc.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vars := make([]protocol.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, protocol.EnvVar{Key: k, Value: fc.Env[k]})
	}

	source := fc.Source
	if source == "" {
		source = "custom"
	}
	return protocol.AgentConfig{
		Source:       source,
		AgentID:      fc.AgentID,
		BinaryPath:   fc.BinaryPath,
		Args:         strings.Join(fc.Args, " "),
		Env:          protocol.FormatEnv(vars),
		AutoFallback: fc.AutoFallback,
	}
}
