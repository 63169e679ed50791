package script

import (
	"context"
	"errors"
	"testing"
	"time"

	"golaunch/pkg/protocol"
)

func newTransport(t *testing.T, src string) *Transport {
	t.Helper()
	s, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr := New(s, nil)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func recvUpdate(t *testing.T, tr *Transport) protocol.Update {
	t.Helper()
	select {
	case u := <-tr.Updates():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return protocol.Update{}
	}
}

func TestTransport_PlaysTurnStamped(t *testing.T) {
	tr := newTransport(t, sample)
	ctx := context.Background()
	if err := tr.Connect(ctx, protocol.AgentConfig{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Prompt(ctx, 7, "hello", nil); err != nil {
		t.Fatalf("prompt: %v", err)
	}

	if u := recvUpdate(t, tr); u.Type != protocol.UpdateThoughtChunk || u.TurnID != 7 {
		t.Errorf("first update = %+v", u)
	}
	if u := recvUpdate(t, tr); u.Type != protocol.UpdateToolCall {
		t.Errorf("second update = %+v", u)
	}

	var req protocol.PermissionRequest
	select {
	case req = <-tr.Permissions():
	case <-time.After(2 * time.Second):
		t.Fatal("no permission request")
	}
	if req.RequestID != "t1" || req.TurnID != 7 {
		t.Errorf("request = %+v", req)
	}
	if err := tr.ResolvePermission(ctx, "t1", "allow"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := tr.ResolvePermission(ctx, "t1", "allow"); !errors.Is(err, protocol.ErrNoPermission) {
		t.Errorf("second resolve err = %v", err)
	}

	if u := recvUpdate(t, tr); u.Type != protocol.UpdateToolCallUpdate || u.Status != "completed" {
		t.Errorf("tool update = %+v", u)
	}
	if u := recvUpdate(t, tr); u.Text != "done" {
		t.Errorf("message = %+v", u)
	}
	if u := recvUpdate(t, tr); u.Type != protocol.UpdateTurnComplete || u.StopReason != "end_turn" || u.TurnID != 7 {
		t.Errorf("completion = %+v", u)
	}
}

func TestTransport_FailAndExhaust(t *testing.T) {
	tr := newTransport(t, sample)
	ctx := context.Background()

	if err := tr.Prompt(ctx, 1, "x", nil); !errors.Is(err, protocol.ErrNotConnected) {
		t.Errorf("prompt before connect err = %v", err)
	}
	if err := tr.Connect(ctx, protocol.AgentConfig{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Prompt(ctx, 1, "hello", nil); err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if err := tr.Cancel(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Drain until the cancelled completion.
	for {
		u := recvUpdate(t, tr)
		if u.Type == protocol.UpdateTurnComplete {
			if u.StopReason != "cancelled" && u.StopReason != "end_turn" {
				t.Errorf("stop reason = %q", u.StopReason)
			}
			break
		}
	}

	if err := tr.Prompt(ctx, 2, "broken", nil); err == nil || err.Error() != "agent crashed" {
		t.Errorf("scripted failure err = %v", err)
	}
	if err := tr.Prompt(ctx, 3, "more", nil); !errors.Is(err, ErrExhausted) {
		t.Errorf("exhausted err = %v", err)
	}
	if got := tr.Prompts(); len(got) != 3 || got[0] != "hello" {
		t.Errorf("prompts = %v", got)
	}
}

func TestTransport_CancelDuringPermission(t *testing.T) {
	tr := newTransport(t, `
turns:
  - prompt: x
    steps:
      - permission: {request_id: p1, tool_name: bash, options: [{option_id: ok, name: Allow, kind: AllowOnce}]}
      - {type: message_chunk, text: never}
`)
	ctx := context.Background()
	if err := tr.Connect(ctx, protocol.AgentConfig{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Prompt(ctx, 4, "x", nil); err != nil {
		t.Fatalf("prompt: %v", err)
	}
	<-tr.Permissions()
	if err := tr.Cancel(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	u := recvUpdate(t, tr)
	if u.Type != protocol.UpdateTurnComplete || u.StopReason != "cancelled" || u.TurnID != 4 {
		t.Errorf("update after cancel = %+v", u)
	}
	if err := tr.ResolvePermission(ctx, "p1", "ok"); !errors.Is(err, protocol.ErrNoPermission) {
		t.Errorf("resolve after cancel err = %v", err)
	}
}

func TestTransport_CancelWhileIdle(t *testing.T) {
	tr := newTransport(t, `
turns:
  - prompt: x
    steps:
      - {type: message_chunk, text: hi}
`)
	ctx := context.Background()
	if err := tr.Connect(ctx, protocol.AgentConfig{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Cancel(ctx); err != nil {
		t.Fatalf("idle cancel: %v", err)
	}

	// The next turn plays normally.
	if err := tr.Prompt(ctx, 1, "x", nil); err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if u := recvUpdate(t, tr); u.Type != protocol.UpdateMessageChunk || u.Text != "hi" {
		t.Errorf("first update = %+v", u)
	}
}

func TestTransport_ConnectError(t *testing.T) {
	tr := newTransport(t, "connect_error: binary not found\n")
	ctx := context.Background()
	if err := tr.Connect(ctx, protocol.AgentConfig{}); err == nil {
		t.Fatal("expected connect error")
	}
	if st, _ := tr.Status(ctx); st != protocol.StatusError {
		t.Errorf("status = %s", st)
	}
}

func TestTransport_LiveAtStart(t *testing.T) {
	tr := newTransport(t, sample+"status: connected\n")
	ctx := context.Background()
	if st, _ := tr.Status(ctx); st != protocol.StatusConnected {
		t.Errorf("status = %s", st)
	}
	opts, err := tr.ConfigOptions(ctx)
	if err != nil || len(opts) != 1 {
		t.Errorf("options = %+v, %v", opts, err)
	}
}

func TestTransport_SetConfigOption(t *testing.T) {
	tr := newTransport(t, sample+`
set_config:
  - id: model
    value: slow
    options:
      - {id: model, name: Model, current_value: slow}
      - {id: effort, name: Effort, current_value: high}
  - id: model
    value: broken
    error: rejected by agent
`)
	ctx := context.Background()
	if _, err := tr.SetConfigOption(ctx, "model", "slow"); !errors.Is(err, protocol.ErrNotConnected) {
		t.Errorf("set before connect err = %v", err)
	}
	if err := tr.Connect(ctx, protocol.AgentConfig{}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	opts, err := tr.SetConfigOption(ctx, "model", "slow")
	if err != nil || len(opts) != 2 || opts[1].ID != "effort" {
		t.Errorf("scripted response = %+v, %v", opts, err)
	}
	if _, err := tr.SetConfigOption(ctx, "model", "broken"); err == nil {
		t.Error("scripted error not returned")
	}
	if _, err := tr.SetConfigOption(ctx, "missing", "x"); err == nil {
		t.Error("unknown option accepted")
	}

	// Without a scripted response the current value changes in place.
	tr2 := newTransport(t, sample)
	if err := tr2.Connect(ctx, protocol.AgentConfig{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	opts, err = tr2.SetConfigOption(ctx, "model", "slow")
	if err != nil || opts[0].CurrentValue != "slow" {
		t.Errorf("in-place set = %+v, %v", opts, err)
	}
	if _, err := tr2.SetConfigOption(ctx, "model", "warp"); err == nil {
		t.Error("value outside the set accepted")
	}
}
