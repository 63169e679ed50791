package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golaunch/pkg/prompt"
	"golaunch/pkg/protocol"

	"github.com/spf13/cobra"
)

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// formatConversationsTable formats conversation previews as a table.
func formatConversationsTable(convs []protocol.ConversationPreview) string {
	if len(convs) == 0 {
		return "No conversations found.\n"
	}

	const maxTitle = 40
	const maxPreview = 50

	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-42s %-5s %-23s %s\n", "ID", "TITLE", "MSGS", "UPDATED", "LAST MESSAGE")
	for _, c := range convs {
		last := prompt.Truncate(strings.ReplaceAll(c.LastMessagePreview, "\n", " "), maxPreview)
		fmt.Fprintf(&b, "%-36s %-42s %-5d %-23s %s\n",
			c.ID, prompt.Truncate(c.Title, maxTitle), c.MessageCount, c.UpdatedAt, last)
	}
	return b.String()
}

// formatContext renders recent conversations the way the agent sees them.
func formatContext(recent []protocol.ConversationContext) string {
	if len(recent) == 0 {
		return "No conversations yet.\n"
	}
	var b strings.Builder
	for _, rc := range recent {
		c := rc.Conversation
		fmt.Fprintf(&b, "**%s** (id: %s, updated: %s)\n", c.Title, c.ID, c.UpdatedAt)
		for _, m := range rc.Messages {
			role := "User"
			if m.Role == protocol.RoleAssistant {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "  %s: %s\n", role, prompt.Truncate(m.Content, 200))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// newConversationsCmd creates the "golaunch conversations" parent command.
func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Browse stored agent conversations",
		Long:    "Commands for listing, searching, showing and deleting the conversations\nthe agent session engine stored.",
	}

	cmd.AddCommand(
		newConversationsListCmd(),
		newConversationsSearchCmd(),
		newConversationsShowCmd(),
		newConversationsContextCmd(),
		newConversationsDeleteCmd(),
	)
	return cmd
}

func newConversationsListCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("conversations list: %w", err)
			}
			defer closeDB()

			convs, err := st.ListConversations(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("conversations list: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), nonNil(convs))
			}
			fmt.Fprint(cmd.OutOrStdout(), formatConversationsTable(convs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", protocol.DefaultListLimit, "maximum number of conversations to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newConversationsSearchCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversation titles and messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("conversations search: %w", err)
			}
			defer closeDB()

			convs, err := st.SearchConversations(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("conversations search: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), nonNil(convs))
			}
			fmt.Fprint(cmd.OutOrStdout(), formatConversationsTable(convs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// conversationDetail is the JSON shape of "conversations show".
type conversationDetail struct {
	protocol.Conversation
	Messages []protocol.ConversationMessage `json:"messages"`
}

func newConversationsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversation with all messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("conversations show: %w", err)
			}
			defer closeDB()

			conv, err := st.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("conversations show: %w", err)
			}
			msgs, err := st.Messages(cmd.Context(), conv.ID)
			if err != nil {
				return fmt.Errorf("conversations show: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, conversationDetail{Conversation: conv, Messages: nonNil(msgs)})
			}
			fmt.Fprintf(out, "%s\n%s · %d messages\n\n", conv.Title, conv.ID, len(msgs))
			newThreadStyles(out).writeMessages(out, msgs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newConversationsContextCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Print a summary of recent conversations",
		Long:  "Print the recent conversation summary given to the agent as context:\nthe last few messages of each recently updated conversation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("conversations context: %w", err)
			}
			defer closeDB()

			recent, err := st.RecentContext(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("conversations context: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatContext(recent))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "number of conversations to include")
	return cmd
}

func newConversationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("conversations delete: %w", err)
			}
			defer closeDB()

			if _, err := st.GetConversation(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("conversations delete: %w", err)
			}
			if err := st.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("conversations delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s\n", args[0])
			return nil
		},
	}
}

// nonNil makes empty results encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
