package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"golaunch/pkg/protocol"
	"golaunch/pkg/session"
)

// Palette for thread output, matching the launcher's terminal colors.
var (
	colorUser      = lipgloss.Color("12")  // Blue
	colorAssistant = lipgloss.Color("14")  // Cyan
	colorSuccess   = lipgloss.Color("10")  // Green
	colorWarning   = lipgloss.Color("11")  // Yellow
	colorError     = lipgloss.Color("9")   // Red
	colorMuted     = lipgloss.Color("240") // Gray
)

// threadStyles renders conversation messages. Styles degrade to plain text
// when w is not a terminal.
type threadStyles struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	muted     lipgloss.Style
	status    map[session.ToolStatus]lipgloss.Style
}

func newThreadStyles(w io.Writer) threadStyles {
	r := lipgloss.NewRenderer(w)
	return threadStyles{
		user:      r.NewStyle().Bold(true).Foreground(colorUser),
		assistant: r.NewStyle().Bold(true).Foreground(colorAssistant),
		tool:      r.NewStyle().Foreground(colorMuted),
		muted:     r.NewStyle().Foreground(colorMuted),
		status: map[session.ToolStatus]lipgloss.Style{
			session.ToolRunning:           r.NewStyle().Foreground(colorMuted),
			session.ToolPendingPermission: r.NewStyle().Foreground(colorWarning),
			session.ToolApproved:          r.NewStyle().Foreground(colorWarning),
			session.ToolCompleted:         r.NewStyle().Foreground(colorSuccess),
			session.ToolError:             r.NewStyle().Foreground(colorError),
		},
	}
}

func (s threadStyles) role(r protocol.Role) string {
	switch r {
	case protocol.RoleUser:
		return s.user.Render("User")
	case protocol.RoleAssistant:
		return s.assistant.Render("Assistant")
	default:
		return s.muted.Render(string(r))
	}
}

// writeMessages prints stored messages, one block per message.
func (s threadStyles) writeMessages(w io.Writer, msgs []protocol.ConversationMessage) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%s %s\n%s\n\n", s.role(m.Role), s.muted.Render(m.CreatedAt), strings.TrimRight(m.Content, "\n"))
	}
}

// writeThread prints a live thread, including tool calls.
func (s threadStyles) writeThread(w io.Writer, thread []session.ThreadMessage) {
	for _, m := range thread {
		if m.Tool != nil {
			st := s.status[m.Tool.Status]
			line := fmt.Sprintf("  ⚙ %s [%s]", m.Tool.Title, st.Render(string(m.Tool.Status)))
			if m.Tool.ChosenKind != "" {
				line += s.muted.Render(" (" + m.Tool.ChosenKind + ")")
			}
			fmt.Fprintln(w, s.tool.Render(line))
			continue
		}
		if m.Role == protocol.RoleAssistant && m.Content == "" {
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", s.role(m.Role), m.Content)
	}
}
