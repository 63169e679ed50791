package main

import (
	"fmt"
	"strings"

	"golaunch/pkg/prompt"
	"golaunch/pkg/protocol"

	"github.com/spf13/cobra"
)

// formatMemoriesTable formats memories as a table.
func formatMemoriesTable(memories []protocol.Memory) string {
	if len(memories) == 0 {
		return "No memories found.\n"
	}

	const maxKey = 20
	const maxValue = 30

	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-22s %-32s %-10s %-7s %s\n", "ID", "KEY", "VALUE", "TYPE", "CONF", "CONTEXT")
	for _, m := range memories {
		fmt.Fprintf(&b, "%-36s %-22s %-32s %-10s %-7.1f %s\n",
			m.ID, prompt.Truncate(m.Key, maxKey), prompt.Truncate(m.Value, maxValue),
			m.Type, m.Confidence, m.Context)
	}
	fmt.Fprintf(&b, "\nTotal: %d memories\n", len(memories))
	return b.String()
}

// newMemoryCmd creates the "golaunch memory" parent command.
func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memory",
		Aliases: []string{"mem"},
		Short:   "Manage what the launcher remembers about the user",
		Long: "Commands for the preferences, patterns and facts the agent stores about\n" +
			"the user. Preferences and patterns are sent with every prompt; facts when\n" +
			"the query mentions them.",
	}

	cmd.AddCommand(
		newMemoryAddCmd(),
		newMemoryListCmd(),
		newMemorySearchCmd(),
		newMemoryGetCmd(),
		newMemoryRemoveCmd(),
	)
	return cmd
}

func newMemoryAddCmd() *cobra.Command {
	var in protocol.NewMemory
	var typ string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a memory, replacing one with the same key and context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Type = protocol.MemoryType(typ)
			if !in.Type.Valid() {
				return fmt.Errorf("memory add: --type must be preference, pattern or fact, got %q", typ)
			}
			if in.Confidence <= 0 || in.Confidence > 1 {
				return fmt.Errorf("memory add: --confidence must be in (0, 1], got %g", in.Confidence)
			}

			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("memory add: %w", err)
			}
			defer closeDB()

			m, err := st.AddMemory(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("memory add: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}

	cmd.Flags().StringVar(&in.Key, "key", "", "memory key (e.g. preferred_editor)")
	cmd.Flags().StringVar(&in.Value, "value", "", "memory value (e.g. vscode)")
	cmd.Flags().StringVar(&typ, "type", string(protocol.MemoryFact), "memory type: preference, pattern or fact")
	cmd.Flags().StringVar(&in.Context, "context", "", "optional context such as a project or category")
	cmd.Flags().Float64Var(&in.Confidence, "confidence", 1, "confidence in (0, 1]")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newMemoryListCmd() *cobra.Command {
	var typ string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if typ != "" && !protocol.MemoryType(typ).Valid() {
				return fmt.Errorf("memory list: unknown type %q", typ)
			}

			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("memory list: %w", err)
			}
			defer closeDB()

			memories, err := st.ListMemories(cmd.Context(), protocol.MemoryType(typ))
			if err != nil {
				return fmt.Errorf("memory list: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), nonNil(memories))
			}
			fmt.Fprint(cmd.OutOrStdout(), formatMemoriesTable(memories))
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "only list memories of this type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memory keys, values and contexts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("memory search: %w", err)
			}
			defer closeDB()

			query := strings.Join(args, " ")
			memories, err := st.SearchMemories(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("memory search: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, nonNil(memories))
			}
			if len(memories) == 0 {
				fmt.Fprintf(out, "No memories matching %q\n", query)
				return nil
			}
			for _, m := range memories {
				scope := ""
				if m.Context != "" {
					scope = " [ctx: " + m.Context + "]"
				}
				fmt.Fprintf(out, "%s = %s (%s)%s (%s)\n", m.Key, m.Value, m.Type, scope, m.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newMemoryGetCmd() *cobra.Command {
	var memCtx string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the memory stored under a key",
		Long:  "Print the memory stored under a key as JSON. Without --context only\nglobal memories match. Reading a memory marks it as recently accessed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("memory get: %w", err)
			}
			defer closeDB()

			m, err := st.MemoryByKey(cmd.Context(), args[0], memCtx)
			if err != nil {
				return fmt.Errorf("memory get: %w", err)
			}
			if err := st.TouchMemory(cmd.Context(), m.ID); err != nil {
				return fmt.Errorf("memory get: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}

	cmd.Flags().StringVar(&memCtx, "context", "", "context the key was stored in")
	return cmd
}

func newMemoryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a memory by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("memory remove: %w", err)
			}
			defer closeDB()

			removed, err := st.RemoveMemory(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("memory remove: %w", err)
			}
			if !removed {
				return fmt.Errorf("memory remove: %w", &protocol.MemoryNotFoundError{ID: args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed memory %s\n", args[0])
			return nil
		},
	}
}
