// Package main provides a system control plugin for macOS.
// It handles volume, brightness, media keys and the mouse pointer.
//
// Absolute brightness needs the `brightness` CLI and pointer control needs
// `cliclick`; both are available from Homebrew.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
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

// levelParams is a 0..1 level used by the set/get actions.
type levelParams struct {
	Level float64 `json:"level"`
}

type pointerParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type buttonParams struct {
	Down bool `json:"down"`
}

// actionHandler handles one action. A non-nil result is returned as data.
type actionHandler func(params json.RawMessage) (any, error)

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"set-volume":       setVolume,
	"get-volume":       getVolume,
	"set-brightness":   setBrightness,
	"get-brightness":   getBrightness,
	"mouse-move":       mouseMove,
	"mouse-button":     mouseButton,
	"volume-up":        script(`set volume output volume ((output volume of (get volume settings)) + 10)`),
	"volume-down":      script(`set volume output volume ((output volume of (get volume settings)) - 10)`),
	"volume-mute":      script(`set volume output muted (not (output muted of (get volume settings)))`),
	"brightness-up":    keyCode(144),
	"brightness-down":  keyCode(145),
	"media-play-pause": keyCode(100),
	"media-next":       keyCode(101),
	"media-prev":       keyCode(98),
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	data, err := handler(req.Params)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse(data)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response with optional data.
func writeSuccessResponse(data any) {
	resp := Response{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("failed to encode data: %v", err))
			return
		}
		resp.Data = raw
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns its output.
func runAppleScript(script string) (string, error) {
	return run("osascript", "-e", script)
}

func run(name string, args ...string) (string, error) {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

func script(s string) actionHandler {
	return func(json.RawMessage) (any, error) {
		_, err := runAppleScript(s)
		return nil, err
	}
}

func keyCode(code int) actionHandler {
	return script(fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code))
}

func parseParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return fmt.Errorf("params are required")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// setVolume sets the output volume from a 0..1 level.
func setVolume(params json.RawMessage) (any, error) {
	var p levelParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	pct := int(math.Round(clamp01(p.Level) * 100))
	_, err := runAppleScript(fmt.Sprintf("set volume output volume %d", pct))
	return nil, err
}

func getVolume(json.RawMessage) (any, error) {
	out, err := runAppleScript(`output volume of (get volume settings)`)
	if err != nil {
		return nil, err
	}
	pct, err := strconv.Atoi(out)
	if err != nil {
		return nil, fmt.Errorf("unexpected volume %q", out)
	}
	return levelParams{Level: clamp01(float64(pct) / 100)}, nil
}

func setBrightness(params json.RawMessage) (any, error) {
	var p levelParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	_, err := run("brightness", strconv.FormatFloat(clamp01(p.Level), 'f', 3, 64))
	return nil, err
}

// getBrightness reads the first display from `brightness -l`, whose lines
// look like "display 0: brightness 0.750000".
func getBrightness(json.RawMessage) (any, error) {
	out, err := run("brightness", "-l")
	if err != nil {
		return nil, err
	}
	level, ok := parseBrightness(out)
	if !ok {
		return nil, fmt.Errorf("no display brightness in output")
	}
	return levelParams{Level: level}, nil
}

func parseBrightness(out string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		_, value, found := strings.Cut(line, " brightness ")
		if !found {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}
		return clamp01(level), true
	}
	return 0, false
}

// mouseMove moves the pointer to a normalized position on the main display.
func mouseMove(params json.RawMessage) (any, error) {
	var p pointerParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}

	w, h, err := screenSize()
	if err != nil {
		return nil, err
	}
	x := int(clamp01(p.X) * float64(w-1))
	y := int(clamp01(p.Y) * float64(h-1))

	_, err = run("cliclick", fmt.Sprintf("m:%d,%d", x, y))
	return nil, err
}

func mouseButton(params json.RawMessage) (any, error) {
	var p buttonParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	cmd := "du:."
	if p.Down {
		cmd = "dd:."
	}
	_, err := run("cliclick", cmd)
	return nil, err
}

// screenSize returns the desktop bounds, reported as "0, 0, w, h".
func screenSize() (int, int, error) {
	out, err := runAppleScript(`tell application "Finder" to get bounds of window of desktop`)
	if err != nil {
		return 0, 0, err
	}
	return parseBounds(out)
}

func parseBounds(out string) (int, int, error) {
	parts := strings.Split(out, ",")
	if len(parts) != 4 {
		return 0, 0, fmt.Errorf("unexpected desktop bounds %q", out)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected desktop bounds %q", out)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected desktop bounds %q", out)
	}
	return w, h, nil
}
