package session

import (
	"context"
	"fmt"

	"golaunch/pkg/protocol"
)

// ConversationCreated binds the conversation created for generation gen.
// Messages queued while it was being created are released for storage. A
// conversation created for a thread the user has since abandoned is
// dropped again.
func (s *State) ConversationCreated(gen uint64, conv protocol.Conversation) []Effect {
	if gen != s.binderGen || s.ConversationID != "" {
		return []Effect{DropConversation{ID: conv.ID}}
	}
	s.creating = false
	s.ConversationID = conv.ID

	effects := make([]Effect, 0, len(s.pending))
	for _, m := range s.pending {
		effects = append(effects, PersistMessage{ConversationID: conv.ID, Role: m.role, Content: m.content})
	}
	s.pending = nil
	return effects
}

// ConversationCreateFailed forgets the messages waiting on generation gen.
// The next prompt tries again. Reports whether anything was dropped.
func (s *State) ConversationCreateFailed(gen uint64) bool {
	if gen != s.binderGen {
		return false
	}
	s.creating = false
	dropped := len(s.pending) > 0
	s.pending = nil
	return dropped
}

// NewConversation clears the thread and unsets the active conversation.
// Nothing is stored until the next prompt.
func (s *State) NewConversation() []Effect {
	return s.clearConversation()
}

// beginLoad returns the sequence number a load must present to apply.
func (s *State) beginLoad() uint64 {
	s.loadSeq++
	return s.loadSeq
}

// LoadConversation replaces the thread with stored messages, in stored
// order. Transient turn state is reset even if a turn was active. Loads
// superseded by a later load are ignored; ok reports whether this one
// applied.
func (s *State) LoadConversation(seq uint64, id string, msgs []protocol.ConversationMessage) (ok bool, effects []Effect) {
	if seq != s.loadSeq {
		return false, nil
	}
	effects = s.clearConversation()
	s.ConversationID = id
	s.Thread = make([]ThreadMessage, 0, len(msgs))
	for _, m := range msgs {
		s.Thread = append(s.Thread, ThreadMessage{
			ID:      s.nextMessageID(),
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return true, effects
}

// ConversationDeleted behaves as NewConversation when id was active.
func (s *State) ConversationDeleted(id string) []Effect {
	if id != "" && s.ConversationID == id {
		return s.clearConversation()
	}
	return nil
}

// NewConversation starts an empty thread. The conversation is created in
// the store by the next prompt.
func (e *Engine) NewConversation(ctx context.Context) error {
	return e.call(ctx, func(reply func(error)) {
		e.step(e.state.NewConversation())
		reply(nil)
	})
}

// LoadConversation makes id the active conversation and rebuilds the
// thread from its stored messages. A later load wins over an earlier one
// still in flight.
func (e *Engine) LoadConversation(ctx context.Context, id string) error {
	return e.call(ctx, func(reply func(error)) {
		seq := e.state.beginLoad()
		e.write(func(ctx context.Context) func() {
			msgs, err := e.store.Messages(ctx, id)
			return func() {
				if err != nil {
					reply(fmt.Errorf("load conversation %s: %w", id, err))
					return
				}
				if ok, effects := e.state.LoadConversation(seq, id, msgs); ok {
					e.log.Info("conversation loaded", "conversation_id", id, "messages", len(msgs))
					e.step(effects)
				}
				reply(nil)
			}
		})
	})
}

// DeleteConversation removes id from the store. Deleting the active
// conversation also starts a new, empty one.
func (e *Engine) DeleteConversation(ctx context.Context, id string) error {
	return e.call(ctx, func(reply func(error)) {
		e.write(func(ctx context.Context) func() {
			err := e.store.DeleteConversation(ctx, id)
			return func() {
				if err != nil {
					reply(fmt.Errorf("delete conversation %s: %w", id, err))
					return
				}
				e.step(e.state.ConversationDeleted(id))
				reply(nil)
			}
		})
	})
}

// ListConversations returns previews of recent conversations.
func (e *Engine) ListConversations(ctx context.Context, limit int) ([]protocol.ConversationPreview, error) {
	list, err := e.store.ListConversations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return list, nil
}

// SearchConversations returns previews of conversations matching query.
func (e *Engine) SearchConversations(ctx context.Context, query string) ([]protocol.ConversationPreview, error) {
	list, err := e.store.SearchConversations(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return list, nil
}
