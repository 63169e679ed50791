package protocol

// Directory and path constants.
const (
	// HomeDir is the user-level state directory (e.g., ~/.golaunch).
	HomeDir = ".golaunch"

	// DBFile is the SQLite database file inside HomeDir.
	DBFile = "golaunch.db"

	// CLIName is the launcher CLI binary the agent is told to call.
	CLIName = "golaunch"
)

// Conversation constants.
const (
	// TitleMaxRunes bounds conversation titles derived from a prompt.
	TitleMaxRunes = 50

	// DefaultListLimit is used when ListConversations gets limit <= 0.
	DefaultListLimit = 50

	// SearchLimit caps SearchConversations results.
	SearchLimit = 20

	// PromptFailedMessage fills an empty assistant placeholder when the
	// prompt could not be delivered to the agent.
	PromptFailedMessage = "Error: failed to send the prompt to the agent."
)

// Memory constants.
const (
	// RelevantMemoryLimit caps the baseline memories put in every prompt.
	RelevantMemoryLimit = 20

	// RelevantMemoryMinConfidence is the exclusive lower bound on the
	// confidence of a baseline memory.
	RelevantMemoryMinConfidence = 0.3

	// MinQueryTermRunes is the shortest query token used to look up
	// memories.
	MinQueryTermRunes = 3
)

// Settings keys for the saved agent configuration.
const (
	SettingSource       = "acp.source"
	SettingAgentID      = "acp.agent_id"
	SettingBinaryPath   = "acp.binary_path"
	SettingArgs         = "acp.args"
	SettingEnv          = "acp.env"
	SettingAutoFallback = "acp.auto_fallback"

	// SettingAgentEnvPrefix prefixes per-agent env values:
	// acp.env.<agent_id>.<NAME>.
	SettingAgentEnvPrefix = "acp.env."
)
