package session

import (
	"context"
	"fmt"

	"golaunch/pkg/protocol"
)

// ReplaceConfigOptions swaps in the set the agent returned for connection
// connGen. The set is never merged: the agent decides which options exist,
// their order and grouping. A zero connGen applies to the current
// connection.
func (s *State) ReplaceConfigOptions(connGen uint64, opts []protocol.ConfigOption) bool {
	if connGen != 0 && connGen != s.connGen {
		return false
	}
	if s.Status != protocol.StatusConnected {
		return false
	}
	s.ConfigOptions = protocol.CloneConfigOptions(opts)
	return true
}

// ConfigOption returns the option with the given id.
func (s Snapshot) ConfigOption(id string) (protocol.ConfigOption, bool) {
	for _, o := range s.ConfigOptions {
		if o.ID == id {
			return o, true
		}
	}
	return protocol.ConfigOption{}, false
}

// SetConfigOption asks the agent to change option id and replaces the local
// set with the one it returns.
func (e *Engine) SetConfigOption(ctx context.Context, id, value string) error {
	return e.call(ctx, func(reply func(error)) {
		if e.state.Status != protocol.StatusConnected {
			reply(protocol.ErrNotConnected)
			return
		}
		gen := e.state.connGen
		e.spawn(func(ctx context.Context) func() {
			opts, err := e.transport.SetConfigOption(ctx, id, value)
			return func() {
				if err != nil {
					e.log.Warn("set config option failed", "option", id, "err", err)
					reply(fmt.Errorf("set config option %s: %w", id, err))
					return
				}
				if e.state.ReplaceConfigOptions(gen, opts) {
					e.publish()
				}
				reply(nil)
			}
		})
	})
}
