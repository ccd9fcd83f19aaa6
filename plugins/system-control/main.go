// Command system-control is a mudra plugin for volume, brightness and media
// keys. The bound action names the control; a "reset" request runs the
// control named by the binding's "on_reset" config, if any. macOS only.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

type request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Class  string          `json:"class"`
	Config json.RawMessage `json:"config,omitempty"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type config struct {
	OnReset string `json:"on_reset"`
}

func keyCode(code int) string {
	return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code)
}

var controls = map[string]string{
	"volume-up":        `set volume output volume ((output volume of (get volume settings)) + 10)`,
	"volume-down":      `set volume output volume ((output volume of (get volume settings)) - 10)`,
	"volume-mute":      `set volume output muted (not (output muted of (get volume settings)))`,
	"brightness-up":    keyCode(144),
	"brightness-down":  keyCode(145),
	"media-play-pause": keyCode(100),
	"media-next":       keyCode(101),
	"media-prev":       keyCode(98),
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
	action := req.Action
	if action == "reset" {
		var cfg config
		if len(req.Config) > 0 {
			if err := json.Unmarshal(req.Config, &cfg); err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
		}
		if cfg.OnReset == "" {
			return nil
		}
		action = cfg.OnReset
	}

	script, ok := controls[action]
	if !ok {
		return fmt.Errorf("unknown action: %s", action)
	}
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("action %s failed: %w: %s", action, err, out)
	}
	return nil
}

func reply(err error) {
	resp := response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
