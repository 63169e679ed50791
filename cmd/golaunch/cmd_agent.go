package main

import (
	"fmt"
	"io"
	"strings"

	"golaunch/pkg/agentconfig"
	"golaunch/pkg/protocol"

	"github.com/spf13/cobra"
)

// newAgentCmd creates the "golaunch agent" parent command.
func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage the saved agent configuration",
		Long:  "Commands for the agent connection the launcher reattaches to at startup\nand the per-agent environment variables merged into it.",
	}

	config := &cobra.Command{
		Use:   "config",
		Short: "Show or change the saved agent configuration",
	}
	config.AddCommand(newAgentConfigShowCmd(), newAgentConfigSetCmd(), newAgentConfigImportCmd())

	env := &cobra.Command{
		Use:   "env",
		Short: "Manage per-agent environment variables",
	}
	env.AddCommand(newAgentEnvListCmd(), newAgentEnvSetCmd())

	cmd.AddCommand(config, env)
	return cmd
}

func writeAgentConfig(w io.Writer, cfg protocol.AgentConfig) {
	fmt.Fprintf(w, "source:        %s\n", cfg.Source)
	fmt.Fprintf(w, "agent_id:      %s\n", cfg.AgentID)
	fmt.Fprintf(w, "binary_path:   %s\n", cfg.BinaryPath)
	fmt.Fprintf(w, "args:          %s\n", cfg.Args)
	fmt.Fprintf(w, "env:           %s\n", redactEnv(cfg.Env))
	fmt.Fprintf(w, "auto_fallback: %t\n", cfg.AutoFallback)
}

// redactEnv hides values, which commonly hold API keys.
func redactEnv(env string) string {
	vars := protocol.ParseEnv(env)
	keys := make([]string, 0, len(vars))
	for _, v := range vars {
		keys = append(keys, v.Key+"=***")
	}
	return strings.Join(keys, ",")
}

func newAgentConfigShowCmd() *cobra.Command {
	var asJSON bool
	var resolved bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved agent configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent config show: %w", err)
			}
			defer closeDB()

			settings := agentconfig.New(st)
			load := settings.Load
			if resolved {
				load = settings.Resolve
			}
			cfg, err := load(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent config show: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			writeAgentConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON (values are not redacted)")
	cmd.Flags().BoolVar(&resolved, "resolved", false, "merge the agent's stored environment variables")
	return cmd
}

func newAgentConfigSetCmd() *cobra.Command {
	var next protocol.AgentConfig

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the saved agent configuration",
		Long:  "Change fields of the saved agent configuration. Only the flags given are\nchanged; pass an empty value to clear a field.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent config set: %w", err)
			}
			defer closeDB()

			settings := agentconfig.New(st)
			cfg, err := settings.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent config set: %w", err)
			}

			flags := cmd.Flags()
			for name, apply := range map[string]func(){
				"source":        func() { cfg.Source = next.Source },
				"agent-id":      func() { cfg.AgentID = next.AgentID },
				"binary":        func() { cfg.BinaryPath = next.BinaryPath },
				"args":          func() { cfg.Args = next.Args },
				"env":           func() { cfg.Env = next.Env },
				"auto-fallback": func() { cfg.AutoFallback = next.AutoFallback },
			} {
				if flags.Changed(name) {
					apply()
				}
			}

			if err := settings.Save(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("agent config set: %w", err)
			}
			writeAgentConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&next.Source, "source", "", "registry or custom")
	cmd.Flags().StringVar(&next.AgentID, "agent-id", "", "agent id; keys the per-agent environment")
	cmd.Flags().StringVar(&next.BinaryPath, "binary", "", "agent binary path; empty disables reattachment")
	cmd.Flags().StringVar(&next.Args, "args", "", "whitespace separated agent arguments")
	cmd.Flags().StringVar(&next.Env, "env", "", "KEY=VALUE,KEY2=VALUE2 environment")
	cmd.Flags().BoolVar(&next.AutoFallback, "auto-fallback", false, "fall back to a registry agent")
	return cmd
}

func newAgentConfigImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the saved configuration with a YAML or TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := agentconfig.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("agent config import: %w", err)
			}

			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent config import: %w", err)
			}
			defer closeDB()

			if err := agentconfig.New(st).Save(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("agent config import: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", args[0])
			writeAgentConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func newAgentEnvListCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's environment variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent env list: %w", err)
			}
			defer closeDB()

			vars, err := agentconfig.New(st).AgentEnvVars(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("agent env list: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(vars) == 0 {
				fmt.Fprintf(out, "No environment variables for %s.\n", args[0])
				return nil
			}
			for _, v := range vars {
				value := "***"
				if reveal {
					value = v.Value
				}
				fmt.Fprintf(out, "%s=%s\n", v.Key, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "print values")
	return cmd
}

func newAgentEnvSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <agent-id> NAME=VALUE",
		Short: "Set an agent environment variable (empty VALUE removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value, ok := strings.Cut(args[1], "=")
			if !ok {
				return fmt.Errorf("agent env set: want NAME=VALUE, got %q", args[1])
			}

			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent env set: %w", err)
			}
			defer closeDB()

			if err := agentconfig.New(st).SetAgentEnv(cmd.Context(), args[0], name, value); err != nil {
				return fmt.Errorf("agent env set: %w", err)
			}
			if value == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s for %s\n", name, args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s for %s\n", name, args[0])
			}
			return nil
		},
	}
}
