package session

import (
	"context"
	"fmt"

	"golaunch/pkg/protocol"
)

// BeginConnect moves to Connecting with cfg as the active configuration.
// It fails while a connection is live. The returned generation identifies
// this attempt.
func (s *State) BeginConnect(cfg protocol.AgentConfig) (uint64, error) {
	if s.Status.Live() {
		return 0, protocol.ErrAlreadyConnected
	}
	s.connGen++
	s.Status = protocol.StatusConnecting
	s.Config = cfg
	s.ConfigOptions = nil
	return s.connGen, nil
}

// Connected completes attempt gen and requests the initial config options.
// It reports false when the attempt was superseded by a disconnect.
func (s *State) Connected(gen uint64) (bool, []Effect) {
	if gen != s.connGen {
		return false, nil
	}
	s.Status = protocol.StatusConnected
	return true, []Effect{FetchConfigOptions{ConnGen: gen}}
}

// ConnectFailed marks attempt gen as failed. Error is terminal until the
// next BeginConnect.
func (s *State) ConnectFailed(gen uint64) bool {
	if gen != s.connGen {
		return false
	}
	s.Status = protocol.StatusError
	return true
}

// Adopt takes over a connection that outlived a previous engine. Only live
// statuses are adopted.
func (s *State) Adopt(st protocol.Status, cfg protocol.AgentConfig) []Effect {
	if !st.Live() || s.Status.Live() {
		return nil
	}
	s.connGen++
	s.Status = st
	s.Config = cfg
	if st == protocol.StatusConnected {
		return []Effect{FetchConfigOptions{ConnGen: s.connGen}}
	}
	return nil
}

// Disconnect clears the connection and everything that depends on it. It
// is valid in every status.
func (s *State) Disconnect() {
	s.connGen++
	s.Status = protocol.StatusDisconnected
	s.Config = protocol.AgentConfig{}
	s.ConfigOptions = nil
	// The transport disconnect ends any turn; no separate cancel is sent.
	s.clearConversation()
}

// Connect opens a connection with cfg. It is rejected while a connection
// is live. On failure the status becomes Error and a *protocol.ConnectError
// is returned; there is no retry.
func (e *Engine) Connect(ctx context.Context, cfg protocol.AgentConfig) error {
	return e.call(ctx, func(reply func(error)) {
		gen, err := e.state.BeginConnect(cfg)
		if err != nil {
			reply(err)
			return
		}
		e.log.Info("connecting", "agent_id", cfg.AgentID, "binary", cfg.BinaryPath)
		e.publish()

		e.spawn(func(ctx context.Context) func() {
			err := e.transport.Connect(ctx, cfg)
			return func() {
				if err != nil {
					if e.state.ConnectFailed(gen) {
						e.publish()
					}
					e.log.Error("connect failed", "agent_id", cfg.AgentID, "err", err)
					reply(&protocol.ConnectError{AgentID: cfg.AgentID, BinaryPath: cfg.BinaryPath, Err: err})
					return
				}
				ok, effects := e.state.Connected(gen)
				if !ok {
					reply(&protocol.ConnectError{AgentID: cfg.AgentID, BinaryPath: cfg.BinaryPath, Err: protocol.ErrNotConnected})
					return
				}
				e.log.Info("connected", "agent_id", cfg.AgentID)
				e.step(effects)
				reply(nil)
			}
		})
	})
}

// Disconnect drops the connection, the thread, the active conversation and
// the config options. It is safe in any status.
func (e *Engine) Disconnect(ctx context.Context) error {
	return e.call(ctx, func(reply func(error)) {
		e.state.Disconnect()
		e.publish()
		e.spawn(func(ctx context.Context) func() {
			if err := e.transport.Disconnect(ctx); err != nil {
				reply(fmt.Errorf("disconnect: %w", err))
				return nil
			}
			reply(nil)
			return nil
		})
	})
}

// Attach reconciles a fresh engine with the transport at startup. A live
// connection is adopted as is. Otherwise the saved configuration is
// connected once, with its stored per-agent environment merged in, when it
// names a binary. saved may be nil.
func (e *Engine) Attach(ctx context.Context, saved SavedConfig) error {
	st, err := e.transport.Status(ctx)
	if err != nil {
		e.log.Warn("query transport status failed", "err", err)
		st = protocol.StatusDisconnected
	}

	var cfg protocol.AgentConfig
	if saved != nil {
		cfg, err = saved.Load(ctx)
	}

	if st.Live() {
		if err != nil {
			e.log.Warn("load saved agent config failed", "err", err)
		}
		e.log.Info("adopting live connection", "status", st)
		return e.call(ctx, func(reply func(error)) {
			e.step(e.state.Adopt(st, cfg))
			reply(nil)
		})
	}

	if err != nil {
		return fmt.Errorf("load saved agent config: %w", err)
	}
	if cfg.BinaryPath == "" {
		return nil
	}
	if saved != nil && cfg.AgentID != "" {
		env, err := saved.AgentEnv(ctx, cfg.AgentID)
		if err != nil {
			return fmt.Errorf("load agent env %s: %w", cfg.AgentID, err)
		}
		cfg.Env = protocol.MergeEnv(cfg.Env, env)
	}
	return e.Connect(ctx, cfg)
}
