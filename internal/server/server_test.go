package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/rtspwatch/internal/app"
)

// fakeApp serves a fixed status and display frame.
type fakeApp struct {
	status app.Status
	jpeg   []byte
}

func (f *fakeApp) Status() app.Status { return f.status }

func (f *fakeApp) SetArmed(armed bool) error {
	f.status.Armed = armed
	return nil
}

func (f *fakeApp) DisplayJPEG() ([]byte, bool, error) {
	return f.jpeg, f.jpeg != nil, nil
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_RoutesNeedCollaborators(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/status", "/api/arm", "/api/stream", "/api/events", "/api/zone", "/api/alerts", "/api/bindings", "/api/plugins"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d without a collaborator, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_Status(t *testing.T) {
	s := New(Config{App: &fakeApp{status: app.Status{Mode: "slides", Armed: true}}})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var resp struct {
		App app.Status `json:"app"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.App.Mode != "slides" || !resp.App.Armed {
		t.Errorf("status = %+v", resp.App)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()

	index := "<html><body>rtspwatch</body></html>"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	css := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte(css), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: dir})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"index at root", "/", http.StatusOK, index},
		{"file by name", "/style.css", http.StatusOK, css},
		{"missing file", "/nonexistent.html", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
