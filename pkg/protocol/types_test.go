package protocol_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"golaunch/pkg/protocol"
)

func TestStatusLive(t *testing.T) {
	tests := []struct {
		status protocol.Status
		live   bool
		valid  bool
	}{
		{protocol.StatusDisconnected, false, true},
		{protocol.StatusConnecting, true, true},
		{protocol.StatusConnected, true, true},
		{protocol.StatusError, false, true},
		{"bogus", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Live(); got != tt.live {
				t.Errorf("Live() = %v, want %v", got, tt.live)
			}
			if got := tt.status.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestAgentConfigArgList(t *testing.T) {
	cfg := protocol.AgentConfig{Args: "  --acp   --model fast "}
	want := []string{"--acp", "--model", "fast"}
	if got := cfg.ArgList(); !reflect.DeepEqual(got, want) {
		t.Errorf("ArgList() = %v, want %v", got, want)
	}
	if got := (protocol.AgentConfig{}).ArgList(); len(got) != 0 {
		t.Errorf("empty args should yield nothing, got %v", got)
	}
}

func TestPermissionRequestOption(t *testing.T) {
	req := protocol.PermissionRequest{
		RequestID: "t1",
		Options: []protocol.PermissionOption{
			{OptionID: "allow", Name: "Allow", Kind: "AllowOnce"},
			{OptionID: "deny", Name: "Deny", Kind: "RejectOnce"},
		},
	}
	o, ok := req.Option("deny")
	if !ok || o.Kind != "RejectOnce" {
		t.Errorf("Option(deny) = %+v, %v", o, ok)
	}
	if _, ok := req.Option("missing"); ok {
		t.Error("Option(missing) should not be found")
	}
}

func TestPermissionRequestJSON(t *testing.T) {
	raw := `{"request_id":"t1","session_id":"s","tool_name":"bash","tool_description":"run","command_preview":"ls","options":[{"option_id":"a","name":"Allow","kind":"AllowOnce"}]}`
	var req protocol.PermissionRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Description != "run" || req.CommandPreview != "ls" || len(req.Options) != 1 {
		t.Errorf("decoded %+v", req)
	}
}

func TestRolePersistable(t *testing.T) {
	if !protocol.RoleUser.Persistable() || !protocol.RoleAssistant.Persistable() {
		t.Error("user and assistant must be persistable")
	}
	if protocol.RoleTool.Persistable() {
		t.Error("tool entries are never persisted")
	}
}

func TestUpdateHelpers(t *testing.T) {
	if protocol.StatusChange(protocol.StatusError).TurnScoped() {
		t.Error("status changes are connection-wide")
	}
	if got := protocol.StatusChange(protocol.StatusError).ConnectionStatus(); got != protocol.StatusError {
		t.Errorf("ConnectionStatus() = %q", got)
	}
	u := protocol.ToolCallChanged("t1", "", "completed")
	if !u.TurnScoped() || u.Type != protocol.UpdateToolCallUpdate || u.ID != "t1" {
		t.Errorf("ToolCallChanged built %+v", u)
	}
}

func TestMemoryTypeValid(t *testing.T) {
	for _, typ := range []protocol.MemoryType{protocol.MemoryPreference, protocol.MemoryPattern, protocol.MemoryFact} {
		if !typ.Valid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	for _, typ := range []protocol.MemoryType{"", "Fact", "note"} {
		if typ.Valid() {
			t.Errorf("%q should be invalid", typ)
		}
	}
}
