package session

import (
	"strings"

	"golaunch/pkg/protocol"
)

// PermissionPolicy decides whether a permission request can be answered
// without asking the user.
type PermissionPolicy interface {
	AutoAllow(req protocol.PermissionRequest) (optionID string, ok bool)
}

// Prompt starts a turn. It returns the new turn id, or 0 when the prompt is
// ignored because it is blank or a turn is already active.
func (s *State) Prompt(text string, items []protocol.ContextItem) (uint64, []Effect) {
	if strings.TrimSpace(text) == "" || s.Turn.Active {
		return 0, nil
	}

	var effects []Effect
	if s.ConversationID == "" && !s.creating {
		s.creating = true
		effects = append(effects, CreateConversation{Gen: s.binderGen, Title: conversationTitle(text)})
	}

	s.appendMessage(protocol.RoleUser, text)
	placeholder := s.appendMessage(protocol.RoleAssistant, "")

	s.turnSeq++
	s.Turn = Turn{
		ID:            s.turnSeq,
		Active:        true,
		Thinking:      true,
		AssistantID:   placeholder,
		PlaceholderID: placeholder,
	}
	s.Permission = nil

	effects = append(effects, s.persist(protocol.RoleUser, text)...)
	effects = append(effects, SendPrompt{
		TurnID: s.Turn.ID,
		Text:   text,
		Items:  append([]protocol.ContextItem(nil), items...),
	})
	return s.Turn.ID, effects
}

// PromptFailed reverts turnID to idle after its outbound prompt failed. The
// placeholder gets the fallback text if nothing streamed into it.
func (s *State) PromptFailed(turnID uint64) {
	if !s.Turn.Active || s.Turn.ID != turnID {
		return
	}
	if m := s.message(s.Turn.PlaceholderID); m != nil && m.Content == "" {
		m.Content = protocol.PromptFailedMessage
	}
	s.endTurn()
}

// Cancel optimistically ends the active turn and always asks the agent to
// stop, including a turn the binder already abandoned. Straggler events
// are dropped by turn id.
func (s *State) Cancel() []Effect {
	if s.Turn.Active {
		s.endTurn()
	}
	return []Effect{SendCancel{}}
}

// accepts reports whether a turn-scoped event stamped with turnID belongs
// to the active turn.
func (s *State) accepts(turnID uint64) bool {
	return s.Turn.Active && (turnID == 0 || turnID == s.Turn.ID)
}

// Apply reduces one inbound update.
func (s *State) Apply(u protocol.Update) []Effect {
	if !u.TurnScoped() {
		return s.statusChanged(u.ConnectionStatus())
	}
	if !s.accepts(u.TurnID) {
		return nil
	}

	switch u.Type {
	case protocol.UpdateMessageChunk:
		s.messageChunk(u.Text)
	case protocol.UpdateThoughtChunk:
		s.Turn.Thought += u.Text
		s.Turn.Thinking = true
	case protocol.UpdateToolCall:
		s.toolCallStarted(u)
	case protocol.UpdateToolCallUpdate:
		s.toolCallChanged(u)
	case protocol.UpdatePlan:
		s.Turn.Plan = append([]protocol.PlanEntry(nil), u.Entries...)
	case protocol.UpdateTurnComplete:
		return s.turnComplete(u.StopReason)
	}
	return nil
}

func (s *State) messageChunk(text string) {
	s.Turn.Thinking = false
	if text == "" {
		return
	}
	s.Turn.Message += text

	// Text after a tool entry opens a new assistant segment so tools stay
	// where they happened.
	n := len(s.Thread)
	if s.Turn.AssistantID == "" || n == 0 || s.Thread[n-1].ID != s.Turn.AssistantID {
		s.Turn.AssistantID = s.appendMessage(protocol.RoleAssistant, "")
	}
	s.Thread[len(s.Thread)-1].Content += text
}

func (s *State) toolCallStarted(u protocol.Update) {
	if u.ID == "" || s.toolCall(u.ID) != nil {
		return
	}
	tc := &ToolCall{ID: u.ID, Title: u.Title, Kind: u.Kind, Status: ToolRunning}
	s.Turn.ToolCalls = append(s.Turn.ToolCalls, tc)

	entry := ThreadMessage{ID: s.nextMessageID(), Role: protocol.RoleTool, Tool: tc}
	n := len(s.Thread)
	if n > 0 && s.Thread[n-1].ID == s.Turn.AssistantID && s.Thread[n-1].Content == "" {
		// Keep the still-empty segment last so following text lands after
		// the tool.
		s.Thread = append(s.Thread[:n-1], entry, s.Thread[n-1])
		return
	}
	s.Thread = append(s.Thread, entry)
}

func (s *State) toolCallChanged(u protocol.Update) {
	tc := s.toolCall(u.ID)
	if tc == nil {
		return
	}
	if u.Title != "" {
		tc.Title = u.Title
	}
	if st, ok := mapToolStatus(u.Status); ok {
		tc.Status = st
	}
}

// mapToolStatus maps upstream tool status tokens. Only terminal tokens
// change a ToolCall; pending and in-progress tokens are ignored.
func mapToolStatus(token string) (ToolStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "completed":
		return ToolCompleted, true
	case "failed", "error":
		return ToolError, true
	default:
		return "", false
	}
}

func (s *State) turnComplete(stopReason string) []Effect {
	content := s.Turn.Message
	s.Turn.StopReason = stopReason
	s.endTurn()
	if content == "" {
		return nil
	}
	return s.persist(protocol.RoleAssistant, content)
}

func (s *State) statusChanged(st protocol.Status) []Effect {
	if !st.Valid() || st == s.Status {
		return nil
	}
	prev := s.Status
	s.Status = st
	switch st {
	case protocol.StatusDisconnected, protocol.StatusError:
		// No turn_complete can follow.
		s.endTurn()
		s.ConfigOptions = nil
	case protocol.StatusConnected:
		if prev != protocol.StatusConnected {
			return []Effect{FetchConfigOptions{ConnGen: s.connGen}}
		}
	}
	return nil
}

// RequestPermission records a permission request for the active turn, or
// answers it directly when policy allows.
func (s *State) RequestPermission(req protocol.PermissionRequest, policy PermissionPolicy) []Effect {
	if !s.accepts(req.TurnID) {
		return nil
	}
	tc := s.toolCall(req.RequestID)

	if policy != nil {
		if optionID, ok := policy.AutoAllow(req); ok {
			if tc != nil {
				opt, _ := req.Option(optionID)
				tc.Status = ToolApproved
				tc.ChosenKind = opt.Kind
				if req.CommandPreview != "" {
					tc.CommandPreview = req.CommandPreview
				}
			}
			return []Effect{SendPermission{RequestID: req.RequestID, OptionID: optionID}}
		}
	}

	r := req
	r.Options = append([]protocol.PermissionOption(nil), req.Options...)
	s.Permission = &r
	if tc != nil {
		tc.Status = ToolPendingPermission
		if req.CommandPreview != "" {
			tc.CommandPreview = req.CommandPreview
		}
	}
	return nil
}

// checkResolve validates a user's answer against the outstanding request.
func (s *State) checkResolve(requestID, optionID string) (protocol.PermissionOption, error) {
	if s.Permission == nil || s.Permission.RequestID != requestID {
		return protocol.PermissionOption{}, protocol.ErrNoPermission
	}
	opt, ok := s.Permission.Option(optionID)
	if !ok {
		return protocol.PermissionOption{}, &protocol.OptionNotFoundError{RequestID: requestID, OptionID: optionID}
	}
	return opt, nil
}

// PermissionResolved applies a successful resolution. The tool call is
// marked Approved whichever option was chosen; the option kind is kept on
// the call.
func (s *State) PermissionResolved(requestID, optionKind string) {
	if s.Permission != nil && s.Permission.RequestID == requestID {
		s.Permission = nil
	}
	if tc := s.toolCall(requestID); tc != nil {
		tc.Status = ToolApproved
		tc.ChosenKind = optionKind
	}
}

// persist stores a message in the active conversation, or queues it while
// the conversation is still being created.
func (s *State) persist(role protocol.Role, content string) []Effect {
	switch {
	case s.ConversationID != "":
		return []Effect{PersistMessage{ConversationID: s.ConversationID, Role: role, Content: content}}
	case s.creating:
		s.pending = append(s.pending, pendingMessage{role: role, content: content})
	}
	return nil
}
