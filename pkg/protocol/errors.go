package protocol

import (
	"errors"
	"fmt"
)

// Guard rejections returned by the session engine.
var (
	ErrAlreadyConnected = errors.New("agent already connected")
	ErrNotConnected     = errors.New("not connected to agent")
	ErrEngineStopped    = errors.New("session engine stopped")
	ErrNoBinaryPath     = errors.New("no binary path configured")
	ErrNoPermission     = errors.New("no matching permission request outstanding")
)

// ConnectError wraps a failed connection attempt. The engine's status is
// Error when one of these is returned.
type ConnectError struct {
	AgentID    string
	BinaryPath string
	Err        error
}

func (e *ConnectError) Error() string {
	agent := e.AgentID
	if agent == "" {
		agent = e.BinaryPath
	}
	return fmt.Sprintf("connect agent %s: %v", agent, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ConversationNotFoundError is returned by the store when an id has no row.
type ConversationNotFoundError struct {
	ID string
}

func (e *ConversationNotFoundError) Error() string {
	return fmt.Sprintf("conversation %s not found", e.ID)
}

// MemoryNotFoundError is returned by the store when no memory matches an
// id, or a key within a context.
type MemoryNotFoundError struct {
	ID      string
	Key     string
	Context string
}

func (e *MemoryNotFoundError) Error() string {
	switch {
	case e.ID != "":
		return fmt.Sprintf("memory %s not found", e.ID)
	case e.Context != "":
		return fmt.Sprintf("memory %q (context %q) not found", e.Key, e.Context)
	default:
		return fmt.Sprintf("memory %q not found", e.Key)
	}
}

// OptionNotFoundError is returned when a permission is resolved with an
// option id the request never offered.
type OptionNotFoundError struct {
	RequestID string
	OptionID  string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("permission %s has no option %s", e.RequestID, e.OptionID)
}
