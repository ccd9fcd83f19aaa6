// Package plugin discovers and runs action plugins. A plugin is a directory
// holding a plugin.json manifest and an executable that reads one JSON
// Request on stdin and writes one JSON Response on stdout.
package plugin

import "encoding/json"

// Events carried in Request.Event.
const (
	EventConfirmed = "confirmed"
	EventReset     = "reset"
)

// ResetAction is the action a plugin declares to be told when a confirmed
// sign is released.
const ResetAction = "reset"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin on stdin.
type Request struct {
	Action     string          `json:"action"`
	Event      string          `json:"event"`
	Class      string          `json:"class"`
	Confidence float64         `json:"confidence,omitempty"`
	Streak     int             `json:"streak,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
