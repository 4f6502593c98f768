package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/rtspwatch/internal/app"
	"github.com/ayusman/rtspwatch/internal/capture"
	"github.com/ayusman/rtspwatch/internal/plugin"
	"github.com/google/go-cmp/cmp"
)

type fakeController struct {
	status  app.Status
	setErr  error
	armCall []bool
}

func (f *fakeController) Status() app.Status { return f.status }

func (f *fakeController) SetArmed(armed bool) error {
	f.armCall = append(f.armCall, armed)
	f.status.Armed = armed
	return f.setErr
}

func (f *fakeController) DisplayJPEG() ([]byte, bool, error) { return nil, false, nil }

type fakeSource capture.Status

func (f fakeSource) Status() capture.Status { return capture.Status(f) }

func TestStatusHandler(t *testing.T) {
	ctrl := &fakeController{status: app.Status{Mode: "intrusion", Running: true, Armed: true, FPS: 5}}

	t.Run("with capture status", func(t *testing.T) {
		handler := NewStatusHandler(ctrl, fakeSource{Source: "rtsp://cam/stream", Connected: true, Frames: 42})
		rec := do(t, handler, http.MethodGet, "/api/status", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		resp := decode[statusResponse](t, rec)
		if diff := cmp.Diff(ctrl.status, resp.App); diff != "" {
			t.Errorf("app status mismatch (-want +got):\n%s", diff)
		}
		if resp.Capture == nil || resp.Capture.Frames != 42 || !resp.Capture.Connected {
			t.Errorf("capture status = %+v", resp.Capture)
		}
	})

	t.Run("without capture status", func(t *testing.T) {
		handler := NewStatusHandler(ctrl, nil)
		resp := decode[statusResponse](t, do(t, handler, http.MethodGet, "/api/status", nil))
		if resp.Capture != nil {
			t.Errorf("capture status = %+v, want omitted", resp.Capture)
		}
	})

	t.Run("only GET", func(t *testing.T) {
		handler := NewStatusHandler(ctrl, nil)
		if rec := do(t, handler, http.MethodPost, "/api/status", nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestArmHandler(t *testing.T) {
	t.Run("toggles", func(t *testing.T) {
		ctrl := &fakeController{}
		handler := NewArmHandler(ctrl)

		rec := do(t, handler, http.MethodPost, "/api/arm", `{"armed": true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		if got := decode[armResponse](t, rec); !got.Armed {
			t.Error("response armed = false")
		}

		got := decode[armResponse](t, do(t, handler, http.MethodGet, "/api/arm", nil))
		if !got.Armed {
			t.Error("GET armed = false after arming")
		}
		if diff := cmp.Diff([]bool{true}, ctrl.armCall); diff != "" {
			t.Errorf("SetArmed calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("requires armed field", func(t *testing.T) {
		ctrl := &fakeController{}
		rec := do(t, NewArmHandler(ctrl), http.MethodPost, "/api/arm", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
		if len(ctrl.armCall) != 0 {
			t.Error("SetArmed called for an invalid request")
		}
	})

	t.Run("persist failure", func(t *testing.T) {
		ctrl := &fakeController{setErr: errors.New("disk full")}
		rec := do(t, NewArmHandler(ctrl), http.MethodPost, "/api/arm", `{"armed": false}`)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
		}
	})
}

func TestPluginHandler(t *testing.T) {
	dir := t.TempDir()
	manifests := map[string]string{
		"keyboard":       `{"name":"keyboard","version":"1.0.0","actions":["keystroke","sequence"]}`,
		"system-control": `{"name":"system-control","version":"1.0.0"}`,
	}
	for name, manifest := range manifests {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name, "plugin.json"), []byte(manifest), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mgr := plugin.NewManager(dir)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	rec := do(t, NewPluginHandler(mgr), http.MethodGet, "/api/plugins", nil)
	resp := decode[struct {
		Plugins []pluginResponse `json:"plugins"`
	}](t, rec)

	want := []pluginResponse{
		{Name: "keyboard", Version: "1.0.0", Actions: []string{"keystroke", "sequence"}},
		{Name: "system-control", Version: "1.0.0", Actions: []string{}},
	}
	if diff := cmp.Diff(want, resp.Plugins); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}
}
