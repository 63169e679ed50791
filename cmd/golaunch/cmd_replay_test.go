package main

import (
	"os"
	"path/filepath"
	"testing"

	"golaunch/pkg/protocol"
	"golaunch/pkg/store"
)

const replayScript = `
agent:
  agent_id: scripted
  binary_path: /usr/local/bin/agent
turns:
  - prompt: clean up my temp files
    steps:
      - {type: tool_call, id: t1, title: rm -rf /tmp/scratch, kind: execute}
      - permission:
          request_id: t1
          tool_name: bash
          command_preview: rm -rf /tmp/scratch
          options:
            - {option_id: allow, name: Allow, kind: AllowOnce}
            - {option_id: deny, name: Deny, kind: RejectOnce}
      - {type: tool_call_update, id: t1, status: failed}
      - {type: message_chunk, text: "Left them alone."}
  - prompt: list my conversations
    steps:
      - {type: tool_call, id: t2, title: golaunch conversations list, kind: execute}
      - permission:
          request_id: t2
          tool_name: bash
          command_preview: golaunch conversations list
          options:
            - {option_id: allow, name: Allow, kind: AllowOnce}
            - {option_id: deny, name: Deny, kind: RejectOnce}
      - {type: tool_call_update, id: t2, status: completed}
      - {type: message_chunk, text: "You have one conversation."}
`

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestReplay_DeniesUnlessApproved(t *testing.T) {
	useTempHome(t)
	path := writeScript(t, replayScript)

	out, _, err := executeCommand("replay", path)
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}

	if !containsAll(out,
		"Attaching to agent...",
		"✓ Agent scripted connected",
		"✓ Turn 1: clean up my temp files",
		"? bash rm -rf /tmp/scratch -> Deny",
		"Assistant: Left them alone.",
		"⚙ golaunch conversations list [completed] (AllowOnce)",
		"Conversation ",
	) {
		t.Errorf("unexpected replay output:\n%s", out)
	}
	// The read-only lookup was answered by the policy, not by replay.
	if contains(out, "? bash golaunch conversations list") {
		t.Errorf("read lookup was prompted:\n%s", out)
	}

	withStore(t, func(st *store.Store) {
		convs, err := st.ListConversations(t.Context(), 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(convs) != 1 || convs[0].Title != "clean up my temp files" {
			t.Fatalf("conversations = %+v", convs)
		}
		msgs, err := st.Messages(t.Context(), convs[0].ID)
		if err != nil {
			t.Fatalf("messages: %v", err)
		}
		var roles []protocol.Role
		for _, m := range msgs {
			roles = append(roles, m.Role)
		}
		want := []protocol.Role{protocol.RoleUser, protocol.RoleAssistant, protocol.RoleUser, protocol.RoleAssistant}
		if len(roles) != len(want) {
			t.Fatalf("stored roles = %v, want %v", roles, want)
		}
		for i := range want {
			if roles[i] != want[i] {
				t.Errorf("message %d role = %s, want %s", i, roles[i], want[i])
			}
		}
	})
}

func TestReplay_ApproveAll(t *testing.T) {
	useTempHome(t)
	path := writeScript(t, replayScript)

	out, _, err := executeCommand("replay", "--yes", path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !contains(out, "? bash rm -rf /tmp/scratch -> Allow") {
		t.Errorf("expected the allow option to be chosen:\n%s", out)
	}
}

func TestReplay_SavedConfigWins(t *testing.T) {
	useTempHome(t)
	if _, _, err := executeCommand("agent", "config", "set", "--agent-id", "saved", "--binary", "/bin/saved"); err != nil {
		t.Fatalf("set: %v", err)
	}
	path := writeScript(t, replayScript)

	out, _, err := executeCommand("replay", "--yes", path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !contains(out, "✓ Agent saved connected") {
		t.Errorf("expected the saved agent to be attached:\n%s", out)
	}
}

func TestReplay_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "connect failure",
			src:  "agent: {agent_id: broken, binary_path: /bin/broken}\nconnect_error: spawn failed\n",
			want: "✗ Attaching to agent",
		},
		{
			name: "invalid script",
			src:  "turns:\n  - prompt: hi\n    steps:\n      - {}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useTempHome(t)
			out, _, err := executeCommand("replay", writeScript(t, tt.src))
			if err == nil {
				t.Fatalf("expected error, output:\n%s", out)
			}
			if tt.want != "" && !contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		useTempHome(t)
		if _, _, err := executeCommand("replay", filepath.Join(t.TempDir(), "none.yaml")); err == nil {
			t.Error("expected error for a missing script")
		}
	})
}

func TestChooseOption(t *testing.T) {
	opts := []protocol.PermissionOption{
		{OptionID: "always", Name: "Always Allow", Kind: "AllowAlways"},
		{OptionID: "once", Name: "Allow", Kind: "AllowOnce"},
		{OptionID: "no", Name: "Reject", Kind: "RejectOnce"},
	}
	allowOnly := []protocol.PermissionOption{{OptionID: "ok", Name: "OK", Kind: "AllowOnce"}}

	tests := []struct {
		name    string
		options []protocol.PermissionOption
		approve bool
		want    string
		wantOK  bool
	}{
		{"approve prefers Allow", opts, true, "once", true},
		{"deny picks first reject", opts, false, "no", true},
		{"deny without reject falls back", allowOnly, false, "ok", true},
		{"no options", nil, true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chooseOption(tt.options, tt.approve)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("chooseOption = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
