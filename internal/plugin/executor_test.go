package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScriptPlugin installs a shell script plugin under dir/name with a
// manifest listing actions.
func writeScriptPlugin(t *testing.T, dir, name, script string, actions ...string) *Plugin {
	t.Helper()

	pluginDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	scriptPath := filepath.Join(pluginDir, name+".sh")
	if err := os.WriteFile(scriptPath, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	manifest := Manifest{
		Name:       name,
		Version:    "1.0.0",
		Executable: name + ".sh",
		Actions:    actions,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, manifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	return &Plugin{Manifest: manifest, Path: pluginDir, Executable: scriptPath}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
}

func TestExecutor_Execute(t *testing.T) {
	skipOnWindows(t)

	plugin := writeScriptPlugin(t, t.TempDir(), "test-plugin",
		`echo '{"success":true,"data":{"message":"hello world"}}'`+"\n", "test-action")

	request := &Request{
		Action: "test-action",
		Label:  "SWIPE_LEFT",
		Config: json.RawMessage(`{"key":"value"}`),
		Params: json.RawMessage(`{"param1":"value1"}`),
	}

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if response.Error != "" {
		t.Errorf("expected empty error, got %q", response.Error)
	}

	var data map[string]any
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	skipOnWindows(t)

	plugin := writeScriptPlugin(t, t.TempDir(), "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`, "echo")

	request := &Request{
		Action: "echo",
		Label:  "PALM",
		Params: json.RawMessage(`{"count":42}`),
	}

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data struct {
		Received Request `json:"received"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}

	if data.Received.Action != "echo" {
		t.Errorf("expected action 'echo', got %q", data.Received.Action)
	}
	if data.Received.Label != "PALM" {
		t.Errorf("expected label 'PALM', got %q", data.Received.Label)
	}
	if string(data.Received.Params) != `{"count":42}` {
		t.Errorf("expected params to round trip, got %s", data.Received.Params)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)

	plugin := writeScriptPlugin(t, t.TempDir(), "slow-plugin", `sleep 10
echo '{"success":true}'
`, "slow")

	start := time.Now()
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), plugin, &Request{Action: "slow"})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Execute() took %v after timeout", elapsed)
	}
}

func TestExecutor_Execute_Cancelled(t *testing.T) {
	skipOnWindows(t)

	plugin := writeScriptPlugin(t, t.TempDir(), "slow-plugin", `sleep 10
echo '{"success":true}'
`, "slow")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	if _, err := NewExecutor(5*time.Second).Execute(ctx, plugin, &Request{Action: "slow"}); err == nil {
		t.Fatal("expected error after cancel, got nil")
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	skipOnWindows(t)

	plugin := writeScriptPlugin(t, t.TempDir(), "error-plugin",
		`echo '{"success":false,"error":"something went wrong"}'`+"\n", "fail")

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "fail"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if response.Success {
		t.Errorf("expected success=false, got true")
	}
	if response.Error != "something went wrong" {
		t.Errorf("expected error 'something went wrong', got %q", response.Error)
	}
}

func TestExecutor_Execute_InvalidJSON(t *testing.T) {
	skipOnWindows(t)

	plugin := writeScriptPlugin(t, t.TempDir(), "bad-plugin", "echo 'not valid json'\n", "bad")

	if _, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "bad"}); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	skipOnWindows(t)

	plugin := writeScriptPlugin(t, t.TempDir(), "exit-plugin", `echo "Error: something failed" >&2
exit 1
`, "exit")

	_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "exit"})
	if err == nil {
		t.Fatal("expected error for non-zero exit, got nil")
	}
	if !strings.Contains(err.Error(), "something failed") {
		t.Errorf("expected stderr in error, got: %v", err)
	}
}

func TestNewExecutor(t *testing.T) {
	if got := NewExecutor(3 * time.Second).Timeout(); got != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", got)
	}
	if got := NewExecutor(0).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultTimeout)
	}
}

func TestManifest_Supports(t *testing.T) {
	m := Manifest{Actions: []string{"set-volume", "get-volume"}}
	if !m.Supports("set-volume") {
		t.Error("expected set-volume to be supported")
	}
	if m.Supports("mouse-move") {
		t.Error("expected mouse-move to be unsupported")
	}
	if !(Manifest{}).Supports("anything") {
		t.Error("expected empty action list to accept anything")
	}
}
