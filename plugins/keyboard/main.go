// Command keyboard is a mudra plugin that sends a keyboard shortcut when a
// sign is confirmed and, optionally, a release shortcut when it is dropped.
// macOS only; keys are sent through System Events.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type request struct {
	Action     string          `json:"action"`
	Event      string          `json:"event"`
	Class      string          `json:"class"`
	Confidence float64         `json:"confidence,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type shortcut struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// config is the per-class binding: the shortcut to send on confirm and an
// optional one to send when the sign is released.
type config struct {
	shortcut
	Release *shortcut `json:"release,omitempty"`
}

var modifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		reply(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	reply(handle(req))
}

func handle(req request) error {
	var cfg config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	switch req.Action {
	case "keystroke", "shortcut":
		if cfg.Key == "" {
			return fmt.Errorf("key is required for %s", req.Class)
		}
		return osascript(keystrokeScript(cfg.shortcut))
	case "reset":
		if cfg.Release == nil || cfg.Release.Key == "" {
			return nil
		}
		return osascript(keystrokeScript(*cfg.Release))
	default:
		return fmt.Errorf("unknown action: %s", req.Action)
	}
}

func keystrokeScript(s shortcut) string {
	var using []string
	for _, m := range s.Modifiers {
		if as, ok := modifiers[strings.ToLower(m)]; ok {
			using = append(using, as)
		}
	}
	if len(using) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke %q`, s.Key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke %q using {%s}`, s.Key, strings.Join(using, ", "))
}

func reply(err error) {
	resp := response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func osascript(script string) error {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
