package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golaunch/pkg/protocol"
)

const sample = `
agent:
  agent_id: scripted
  binary_path: /bin/agent
config_options:
  - id: model
    name: Model
    current_value: fast
    select_options:
      type: ungrouped
      options: [{value: fast, name: Fast}, {value: slow, name: Slow}]
turns:
  - prompt: hello
    steps:
      - {type: thought_chunk, text: "thinking"}
      - {type: tool_call, id: t1, title: ls, kind: execute}
      - permission:
          request_id: t1
          tool_name: bash
          command_preview: ls
          options:
            - {option_id: allow, name: Allow, kind: AllowOnce}
      - {type: tool_call_update, id: t1, status: completed}
      - delay: 20ms
      - {type: message_chunk, text: "done"}
  - prompt: broken
    fail: agent crashed
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Agent.AgentID != "scripted" || len(s.ConfigOptions) != 1 || len(s.Turns) != 2 {
		t.Fatalf("script = %+v", s)
	}
	steps := s.Turns[0].Steps
	if len(steps) != 6 {
		t.Fatalf("steps = %d", len(steps))
	}
	if steps[1].Type != protocol.UpdateToolCall || steps[1].ID != "t1" || steps[1].Kind != "execute" {
		t.Errorf("tool step = %+v", steps[1])
	}
	if steps[2].Permission == nil || steps[2].Permission.Options[0].Kind != "AllowOnce" {
		t.Errorf("permission step = %+v", steps[2])
	}
	if steps[4].Delay != 20*time.Millisecond {
		t.Errorf("delay = %v", steps[4].Delay)
	}
	if s.Turns[1].Fail != "agent crashed" {
		t.Errorf("fail = %q", s.Turns[1].Fail)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "turns: []\nbogus: 1\n",
		"unknown status": "status: sleeping\n",
		"empty step":     "turns:\n  - prompt: x\n    steps:\n      - {}\n",
		"two actions":    "turns:\n  - prompt: x\n    steps:\n      - {type: message_chunk, text: a, delay: 1s}\n",
		"malformed yaml": "turns: [",
		"bad delay":      "turns:\n  - prompt: x\n    steps:\n      - delay: soon\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("bogus: 1"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("err = %v, want path in message", err)
	}
}
