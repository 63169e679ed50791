// Package script implements a session transport that plays back a YAML
// transcript instead of talking to an agent process. It drives
// `golaunch replay` and end-to-end tests of the session engine.
//
// A transcript looks like:
//
//	agent:
//	  agent_id: scripted
//	  binary_path: /usr/local/bin/agent
//	config_options:
//	  - id: model
//	    name: Model
//	    current_value: fast
//	    select_options:
//	      type: ungrouped
//	      options: [{value: fast, name: Fast}, {value: slow, name: Slow}]
//	turns:
//	  - prompt: list my conversations
//	    steps:
//	      - {type: thought_chunk, text: "checking the store"}
//	      - {type: tool_call, id: t1, title: golaunch conversations list, kind: execute}
//	      - permission:
//	          request_id: t1
//	          tool_name: bash
//	          command_preview: golaunch conversations list
//	          options:
//	            - {option_id: allow, name: Allow, kind: AllowOnce}
//	            - {option_id: deny, name: Deny, kind: RejectOnce}
//	      - {type: tool_call_update, id: t1, status: completed}
//	      - delay: 50ms
//	      - {type: message_chunk, text: "You have two conversations."}
//	      - {type: turn_complete, stop_reason: end_turn}
package script

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"golaunch/pkg/protocol"
)

// Script is a parsed transcript.
type Script struct {
	// Agent is the configuration replay connects with when nothing is saved.
	Agent protocol.AgentConfig `yaml:"agent"`
	// Status is what the transport reports before Connect. A live status
	// simulates a connection that outlived the previous engine.
	Status protocol.Status `yaml:"status"`
	// ConnectError makes Connect fail with this message.
	ConnectError  string                  `yaml:"connect_error"`
	ConfigOptions []protocol.ConfigOption `yaml:"config_options"`
	SetConfig     []SetConfigResponse     `yaml:"set_config"`
	Turns         []Turn                  `yaml:"turns"`
}

// SetConfigResponse is the option set returned when option ID is set to
// Value.
type SetConfigResponse struct {
	ID      string                  `yaml:"id"`
	Value   string                  `yaml:"value"`
	Error   string                  `yaml:"error"`
	Options []protocol.ConfigOption `yaml:"options"`
}

// Turn is the scripted reaction to one prompt.
type Turn struct {
	Prompt string                 `yaml:"prompt"`
	Items  []protocol.ContextItem `yaml:"items"`
	// Fail makes the prompt call itself fail with this message.
	Fail  string `yaml:"fail"`
	Steps []Step `yaml:"steps"`
}

// Step is one playback action. Exactly one of an update (Type set),
// Permission, ConfigOptions or Delay is meaningful.
type Step struct {
	protocol.Update `yaml:",inline"`
	Permission      *protocol.PermissionRequest `yaml:"permission,omitempty"`
	ConfigOptions   []protocol.ConfigOption     `yaml:"config_options,omitempty"`
	Delay           time.Duration               `yaml:"delay,omitempty"`
}

// Parse decodes a transcript. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the transcript at path.
func Load(path string) (*Script, error) {
	//nolint:gosec // path is supplied by the user on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *Script) validate() error {
	if s.Status != "" && !s.Status.Valid() {
		return fmt.Errorf("script: unknown status %q", s.Status)
	}
	for i, t := range s.Turns {
		for j, st := range t.Steps {
			n := 0
			if st.Type != "" {
				n++
			}
			if st.Permission != nil {
				n++
			}
			if st.ConfigOptions != nil {
				n++
			}
			if st.Delay > 0 {
				n++
			}
			if n != 1 {
				return fmt.Errorf("script: turn %d step %d: want exactly one action, got %d", i+1, j+1, n)
			}
		}
	}
	return nil
}
