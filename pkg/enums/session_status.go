package enums

import "fmt"

// SessionStatus tracks a usage ledger row through its lifecycle.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusRunning SessionStatus = "running"
	SessionStatusFinal   SessionStatus = "final"
	SessionStatusAborted SessionStatus = "aborted"
)

var validSessionStatuses = []SessionStatus{
	SessionStatusPending,
	SessionStatusRunning,
	SessionStatusFinal,
	SessionStatusAborted,
}

// String implements fmt.Stringer.
func (s SessionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SessionStatus) IsValid() bool {
	for _, candidate := range validSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusFinal || s == SessionStatusAborted
}

// ParseSessionStatus converts raw input into a SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, error) {
	for _, candidate := range validSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session status %q", value)
}
