package enums

import "fmt"

// AgentMode controls which interaction channels an agent offers.
type AgentMode string

const (
	AgentModeVoice AgentMode = "voice"
	AgentModeText  AgentMode = "text"
	AgentModeBoth  AgentMode = "both"
)

var validAgentModes = []AgentMode{
	AgentModeVoice,
	AgentModeText,
	AgentModeBoth,
}

// String implements fmt.Stringer.
func (m AgentMode) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m AgentMode) IsValid() bool {
	for _, candidate := range validAgentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseAgentMode converts raw input into an AgentMode, defaulting to voice.
func ParseAgentMode(value string) (AgentMode, error) {
	if value == "" {
		return AgentModeVoice, nil
	}
	for _, candidate := range validAgentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agent mode %q", value)
}
