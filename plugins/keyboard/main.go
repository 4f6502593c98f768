// Package main provides a keyboard plugin for macOS.
// It sends keystrokes and held-modifier key sequences via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Label  string          `json:"label"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeystrokeParams defines parameters for keystroke and shortcut actions.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// SequenceParams presses keys one after another while holding modifiers,
// e.g. Alt held across W then R for ribbon navigation.
type SequenceParams struct {
	Hold    []string `json:"hold"`
	Keys    []string `json:"keys"`
	DelayMs int      `json:"delay_ms"`
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command",
	"cmd":     "command",
	"option":  "option",
	"alt":     "option",
	"control": "control",
	"ctrl":    "control",
	"shift":   "shift",
}

// keyCodes maps named keys that have no printable character.
var keyCodes = map[string]int{
	"left":     123,
	"right":    124,
	"down":     125,
	"up":       126,
	"return":   36,
	"enter":    36,
	"tab":      48,
	"space":    49,
	"escape":   53,
	"esc":      53,
	"home":     115,
	"pageup":   116,
	"end":      119,
	"pagedown": 121,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var err error
	switch req.Action {
	case "keystroke", "shortcut":
		err = handleKeystroke(req.Params)
	case "sequence":
		err = handleSequence(req.Params)
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

// handleKeystroke processes keystroke and shortcut actions.
func handleKeystroke(params json.RawMessage) error {
	var p KeystrokeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}

	if p.Key == "" {
		return fmt.Errorf("key is required")
	}

	return runAppleScript(buildKeystrokeScript(p.Key, p.Modifiers))
}

func handleSequence(params json.RawMessage) error {
	var p SequenceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}

	if len(p.Keys) == 0 {
		return fmt.Errorf("keys are required")
	}

	return runAppleScript(buildSequenceScript(p))
}

// keyCommand returns the System Events command that types key.
func keyCommand(key string) string {
	if code, ok := keyCodes[strings.ToLower(key)]; ok {
		return fmt.Sprintf("key code %d", code)
	}
	return fmt.Sprintf("keystroke %q", key)
}

func appleModifiers(modifiers []string) []string {
	var out []string
	for _, mod := range modifiers {
		if m, ok := modifierMap[strings.ToLower(mod)]; ok {
			out = append(out, m)
		}
	}
	return out
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	mods := appleModifiers(modifiers)
	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to %s`, keyCommand(key))
	}

	using := make([]string, len(mods))
	for i, m := range mods {
		using[i] = m + " down"
	}
	return fmt.Sprintf(`tell application "System Events" to %s using {%s}`,
		keyCommand(key), strings.Join(using, ", "))
}

// buildSequenceScript holds the modifiers down across every key.
func buildSequenceScript(p SequenceParams) string {
	delay := float64(p.DelayMs) / 1000
	mods := appleModifiers(p.Hold)

	var b strings.Builder
	b.WriteString("tell application \"System Events\"\n")
	for _, m := range mods {
		fmt.Fprintf(&b, "\tkey down %s\n", m)
	}
	for _, key := range p.Keys {
		if delay > 0 {
			fmt.Fprintf(&b, "\tdelay %.3f\n", delay)
		}
		fmt.Fprintf(&b, "\t%s\n", keyCommand(key))
	}
	for i := len(mods) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "\tkey up %s\n", mods[i])
	}
	b.WriteString("end tell")
	return b.String()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
