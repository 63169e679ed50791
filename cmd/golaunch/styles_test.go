package main

import (
	"bytes"
	"testing"

	"golaunch/pkg/protocol"
	"golaunch/pkg/session"
)

func TestWriteThread(t *testing.T) {
	thread := []session.ThreadMessage{
		{ID: "m1", Role: protocol.RoleUser, Content: "run it"},
		{ID: "m2", Role: protocol.RoleAssistant, Content: ""},
		{ID: "m3", Role: protocol.RoleTool, Tool: &session.ToolCall{ID: "t1", Title: "make test", Status: session.ToolCompleted, ChosenKind: "AllowOnce"}},
		{ID: "m4", Role: protocol.RoleTool, Tool: &session.ToolCall{ID: "t2", Title: "ls", Status: session.ToolRunning}},
		{ID: "m5", Role: protocol.RoleAssistant, Content: "done"},
	}

	var buf bytes.Buffer
	newThreadStyles(&buf).writeThread(&buf, thread)

	want := "User: run it\n" +
		"  ⚙ make test [completed] (AllowOnce)\n" +
		"  ⚙ ls [running]\n" +
		"Assistant: done\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestWriteMessages(t *testing.T) {
	msgs := []protocol.ConversationMessage{
		{Role: protocol.RoleUser, Content: "hi\n", CreatedAt: "2026-01-02 03:04:05"},
		{Role: protocol.RoleAssistant, Content: "hello"},
	}

	var buf bytes.Buffer
	newThreadStyles(&buf).writeMessages(&buf, msgs)

	want := "User 2026-01-02 03:04:05\nhi\n\nAssistant \nhello\n\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
