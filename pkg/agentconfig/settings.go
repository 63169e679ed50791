// Package agentconfig persists the agent connection configuration in the
// settings table and imports it from YAML or TOML files.
package agentconfig

import (
	"context"
	"fmt"
	"strings"

	"golaunch/pkg/protocol"
)

// SettingsStore is the subset of *store.Store used for saved configuration.
type SettingsStore interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	SettingsWithPrefix(ctx context.Context, prefix string) ([]protocol.Setting, error)
}

// Settings reads and writes the saved agent configuration. It implements
// session.SavedConfig.
type Settings struct {
	store SettingsStore
}

// New returns Settings backed by st.
func New(st SettingsStore) *Settings {
	return &Settings{store: st}
}

// Load returns the saved configuration. Missing keys read as zero values.
func (s *Settings) Load(ctx context.Context) (protocol.AgentConfig, error) {
	var cfg protocol.AgentConfig
	fields := []struct {
		key string
		dst *string
	}{
		{protocol.SettingSource, &cfg.Source},
		{protocol.SettingAgentID, &cfg.AgentID},
		{protocol.SettingBinaryPath, &cfg.BinaryPath},
		{protocol.SettingArgs, &cfg.Args},
		{protocol.SettingEnv, &cfg.Env},
	}
	for _, f := range fields {
		v, _, err := s.store.Setting(ctx, f.key)
		if err != nil {
			return protocol.AgentConfig{}, fmt.Errorf("load agent config: %w", err)
		}
		*f.dst = v
	}
	fallback, _, err := s.store.Setting(ctx, protocol.SettingAutoFallback)
	if err != nil {
		return protocol.AgentConfig{}, fmt.Errorf("load agent config: %w", err)
	}
	cfg.AutoFallback = fallback == "true"
	return cfg, nil
}

// Save overwrites every saved configuration key with cfg.
func (s *Settings) Save(ctx context.Context, cfg protocol.AgentConfig) error {
	fallback := "false"
	if cfg.AutoFallback {
		fallback = "true"
	}
	for _, kv := range [][2]string{
		{protocol.SettingSource, cfg.Source},
		{protocol.SettingAgentID, cfg.AgentID},
		{protocol.SettingBinaryPath, cfg.BinaryPath},
		{protocol.SettingArgs, cfg.Args},
		{protocol.SettingEnv, cfg.Env},
		{protocol.SettingAutoFallback, fallback},
	} {
		if err := s.store.SetSetting(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save agent config: %w", err)
		}
	}
	return nil
}

func agentEnvPrefix(agentID string) string {
	return protocol.SettingAgentEnvPrefix + agentID + "."
}

// AgentEnvVars returns the per-agent environment variables stored for
// agentID, ordered by name.
func (s *Settings) AgentEnvVars(ctx context.Context, agentID string) ([]protocol.EnvVar, error) {
	if agentID == "" {
		return nil, nil
	}
	prefix := agentEnvPrefix(agentID)
	rows, err := s.store.SettingsWithPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("agent env %s: %w", agentID, err)
	}
	vars := make([]protocol.EnvVar, 0, len(rows))
	for _, r := range rows {
		vars = append(vars, protocol.EnvVar{Key: strings.TrimPrefix(r.Key, prefix), Value: r.Value})
	}
	return vars, nil
}

// AgentEnv returns the per-agent environment of agentID as an environment
// string.
func (s *Settings) AgentEnv(ctx context.Context, agentID string) (string, error) {
	vars, err := s.AgentEnvVars(ctx, agentID)
	if err != nil {
		return "", err
	}
	return protocol.FormatEnv(vars), nil
}

// SetAgentEnv stores one per-agent variable. An empty value removes it.
func (s *Settings) SetAgentEnv(ctx context.Context, agentID, name, value string) error {
	name = strings.TrimSpace(name)
	if agentID == "" || name == "" || strings.ContainsAny(name, "=,") {
		return fmt.Errorf("set agent env: invalid agent %q or variable %q", agentID, name)
	}
	key := agentEnvPrefix(agentID) + name
	if value == "" {
		if err := s.store.DeleteSetting(ctx, key); err != nil {
			return fmt.Errorf("set agent env: %w", err)
		}
		return nil
	}
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("set agent env: %w", err)
	}
	return nil
}

// Resolve returns the saved configuration with its per-agent environment
// merged in, ready to connect.
func (s *Settings) Resolve(ctx context.Context) (protocol.AgentConfig, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return protocol.AgentConfig{}, err
	}
	env, err := s.AgentEnv(ctx, cfg.AgentID)
	if err != nil {
		return protocol.AgentConfig{}, err
	}
	cfg.Env = protocol.MergeEnv(cfg.Env, env)
	return cfg, nil
}
