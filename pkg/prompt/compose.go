// Package prompt assembles the text sent to the agent for a user query.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"golaunch/pkg/protocol"
)

// DefaultRecentConversations is how many recent conversations Composer
// includes when RecentLimit is zero.
const DefaultRecentConversations = 3

// maxContextRunes bounds each recent-conversation message in the prompt.
const maxContextRunes = 200

// Params contains all inputs needed to assemble an agent prompt.
type Params struct {
	Query    string
	CLIPath  string // launcher CLI the agent may invoke; defaults to protocol.CLIName
	DBPath   string // may be empty
	Items    []protocol.ContextItem
	Memories []protocol.Memory
	Recent   []protocol.ConversationContext
}

// section writes a markdown section (## header + body) to the builder.
func section(b *strings.Builder, header, body string) {
	fmt.Fprintf(b, "## %s\n\n%s\n\n", header, body)
}

// Assemble builds the agent prompt: instructions, the CLI reference, what
// the launcher remembers about the user, the launcher items the user
// attached, recent conversations, then the query.
func Assemble(p Params) string {
	var b strings.Builder
	cli := p.CLIPath
	if cli == "" {
		cli = protocol.CLIName
	}

	b.WriteString(strings.Join([]string{
		"You are the golaunch assistant, embedded in a keyboard-driven launcher.",
		"The user typed a query that did not match a launcher command and is asking you for help.",
		"",
		"- Be concise: the user is in a launcher and wants quick results.",
		"- Check memory and stored conversations before asking clarifying questions.",
		"- Treat memory facts as authoritative context.",
		"- Read-only lookups through the CLI are safe and need no confirmation.",
		"- When you learn something about the user's preferences, save it to memory.",
		"- After making changes, briefly confirm what you did.",
	}, "\n"))
	b.WriteString("\n\n")

	section(&b, "golaunch CLI", cliReference(cli, p.DBPath))

	if len(p.Memories) > 0 {
		section(&b, "User Memory Context", memoriesBody(p.Memories))
	}

	if len(p.Items) > 0 {
		section(&b, "Attached Launcher Items", itemsBody(p.Items))
	}

	if len(p.Recent) > 0 {
		section(&b, "Recent Conversation Context", recentBody(cli, p.Recent))
	}

	b.WriteString("## User Query\n\n")
	b.WriteString(p.Query)
	b.WriteString("\n")
	return b.String()
}

func cliReference(cli, dbPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Binary: `%s`\n", cli)
	if dbPath != "" {
		fmt.Fprintf(&b, "Database: `%s`\n", dbPath)
	}
	b.WriteString("\n### Memory\n\n```bash\n")
	b.WriteString("# Store a preference or fact\n")
	fmt.Fprintf(&b, "%q memory add --key \"preferred_editor\" --value \"vscode\" --type preference\n", cli)
	fmt.Fprintf(&b, "%q memory add --key \"project_dir\" --value \"~/src\" --type fact --context \"work\"\n", cli)
	b.WriteString("# Query memories\n")
	fmt.Fprintf(&b, "%q memory list --json\n", cli)
	fmt.Fprintf(&b, "%q memory list --type preference\n", cli)
	fmt.Fprintf(&b, "%q memory search \"editor\"\n", cli)
	fmt.Fprintf(&b, "%q memory get \"preferred_editor\"\n", cli)
	b.WriteString("# Remove a memory\n")
	fmt.Fprintf(&b, "%q memory remove <id>\n", cli)
	b.WriteString("```\n")
	b.WriteString("Memory types: `preference` (user preference), `pattern` (learned behavior), `fact` (stored info)\n")
	b.WriteString("\n### Conversations\n\n```bash\n")
	b.WriteString("# List recent conversations\n")
	fmt.Fprintf(&b, "%q conversations list --limit 20 --json\n", cli)
	b.WriteString("# Search conversations by title or content\n")
	fmt.Fprintf(&b, "%q conversations search \"query\" --json\n", cli)
	b.WriteString("# Show a conversation with all messages\n")
	fmt.Fprintf(&b, "%q conversations show <id> --json\n", cli)
	b.WriteString("# Recent conversation context (formatted summary)\n")
	fmt.Fprintf(&b, "%q conversations context --limit 5\n", cli)
	b.WriteString("```\n")
	b.WriteString("Use conversation commands to recall earlier discussions with the user.")
	return b.String()
}

func itemsBody(items []protocol.ContextItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		subtitle := ""
		if it.Subtitle != "" {
			subtitle = " (" + it.Subtitle + ")"
		}
		lines = append(lines, fmt.Sprintf("- **%s**%s [%s]: `%s` (category: %s, id: %s)",
			it.Title, subtitle, it.ActionType, it.ActionValue, it.Category, it.ID))
	}
	return strings.Join(lines, "\n")
}

func memoriesBody(memories []protocol.Memory) string {
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		scope := ""
		if m.Context != "" {
			scope = " (context: " + m.Context + ")"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s%s [type: %s]", m.Key, m.Value, scope, m.Type))
	}
	return strings.Join(lines, "\n")
}

func recentBody(cli string, recent []protocol.ConversationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary of recent conversations (use `%s conversations show <id>` for full details):\n", cli)
	for _, rc := range recent {
		c := rc.Conversation
		fmt.Fprintf(&b, "\n**%s** (id: %s, updated: %s)\n", c.Title, c.ID, c.UpdatedAt)
		for _, m := range rc.Messages {
			fmt.Fprintf(&b, "  %s: %s\n", roleLabel(m.Role), Truncate(m.Content, maxContextRunes))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func roleLabel(r protocol.Role) string {
	switch r {
	case protocol.RoleUser:
		return "User"
	case protocol.RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Truncate shortens s to at most n runes, ending in "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// QueryTerms returns the terms memories are looked up by for query: the
// whole query, then each distinct lowercased word of at least
// protocol.MinQueryTermRunes runes. Words are split on anything other than
// letters, digits, '_' and '-'.
func QueryTerms(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	terms := []string{query}
	seen := map[string]bool{strings.ToLower(query): true}
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})
	for _, w := range words {
		w = strings.ToLower(w)
		if utf8.RuneCountInString(w) < protocol.MinQueryTermRunes || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// ContextSource supplies recent conversations. *store.Store implements it.
type ContextSource interface {
	RecentContext(ctx context.Context, limit int) ([]protocol.ConversationContext, error)
}

// MemorySource supplies stored memories. *store.Store implements it.
type MemorySource interface {
	RelevantMemories(ctx context.Context, memCtx string) ([]protocol.Memory, error)
	SearchMemories(ctx context.Context, query string) ([]protocol.Memory, error)
}

// Composer implements session.Composer on top of Assemble.
type Composer struct {
	Source      ContextSource // optional
	Memories    MemorySource  // optional
	CLIPath     string
	DBPath      string
	RecentLimit int
	Logger      *slog.Logger
}

// Compose builds the outbound prompt for text. A failing context lookup is
// logged and the prompt is built without it.
func (c *Composer) Compose(ctx context.Context, text string, items []protocol.ContextItem) (string, error) {
	p := Params{Query: text, CLIPath: c.CLIPath, DBPath: c.DBPath, Items: items}
	if c.Source != nil {
		limit := c.RecentLimit
		if limit == 0 {
			limit = DefaultRecentConversations
		}
		recent, err := c.Source.RecentContext(ctx, limit)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("compose prompt: %w", ctx.Err())
			}
			c.logger().Warn("recent conversation context unavailable", "err", err)
		}
		p.Recent = recent
	}
	if c.Memories != nil {
		memories, err := c.memories(ctx, text)
		if err != nil {
			return "", err
		}
		p.Memories = memories
	}
	return Assemble(p), nil
}

// memories returns the baseline relevant memories followed by memories
// matching any query term, each memory once. Lookup failures other than
// cancellation are logged and skipped.
func (c *Composer) memories(ctx context.Context, text string) ([]protocol.Memory, error) {
	var out []protocol.Memory
	seen := make(map[string]bool)
	add := func(ms []protocol.Memory) {
		for _, m := range ms {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}

	relevant, err := c.Memories.RelevantMemories(ctx, "")
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("compose prompt: %w", ctx.Err())
		}
		c.logger().Warn("relevant memories unavailable", "err", err)
	}
	add(relevant)

	for _, term := range QueryTerms(text) {
		matches, err := c.Memories.SearchMemories(ctx, term)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("compose prompt: %w", ctx.Err())
			}
			c.logger().Warn("memory search failed", "term", term, "err", err)
			continue
		}
		add(matches)
	}
	return out, nil
}

func (c *Composer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}
