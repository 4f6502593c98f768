package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/rtspwatch/internal/app"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/store"
	"github.com/ayusman/rtspwatch/internal/zone"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

func TestStream_ServesMultipartJPEG(t *testing.T) {
	frame := []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'p', 'e', 'g', 0xff, 0xd9}
	ts := httptest.NewServer(New(Config{App: &fakeApp{jpeg: frame}, StreamFPS: 50}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] != "frame" {
		t.Fatalf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	mr := multipart.NewReader(resp.Body, params["boundary"])
	for i := 0; i < 2; i++ {
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("part %d: NextPart() error = %v", i, err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part %d: Content-Type = %q", i, ct)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("part %d: read error = %v", i, err)
		}
		if !bytes.Equal(data, frame) {
			t.Errorf("part %d: body = %x, want %x", i, data, frame)
		}
	}
}

func TestEventHub_BroadcastsEvents(t *testing.T) {
	hub := NewEventHub()
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Clients() != 1 {
		t.Fatalf("Clients() = %d, want 1", hub.Clients())
	}

	event := eventlog.Event{
		Time:       time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Mode:       "intrusion",
		EventID:    "ID:3",
		Confidence: 0.87,
		Status:     eventlog.StatusInsideZone,
	}
	hub.Publish(event)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg eventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if diff := cmp.Diff(eventMessage{Type: "event", Event: event}, msg); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}

	hub.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() after Close error = %v, want going away", err)
	}
}

func TestEventHub_PublishWithoutClients(t *testing.T) {
	hub := NewEventHub()
	hub.Publish(eventlog.Event{EventID: "PALM"})
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", hub.Clients())
	}
}

func TestAPI_OperatorWorkflow(t *testing.T) {
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	zc := zone.NewConfig(filepath.Join(dir, "zone.json"))
	ctrl := &fakeApp{status: app.Status{Mode: "intrusion"}}
	ts := httptest.NewServer(New(Config{Store: s, App: ctrl, Zone: zc}))
	defer ts.Close()
	client := ts.Client()

	// 1. Draw a new zone.
	body := `{"points":[[50,50],[300,50],[300,300],[50,300]]}`
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/zone", strings.NewReader(body))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/zone error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /api/zone status = %d", resp.StatusCode)
	}
	if got := len(zc.Polygon()); got != 4 {
		t.Errorf("zone has %d points, want 4", got)
	}

	// 2. Arm.
	resp, err = client.Post(ts.URL+"/api/arm", "application/json", strings.NewReader(`{"armed":true}`))
	if err != nil {
		t.Fatalf("POST /api/arm error = %v", err)
	}
	resp.Body.Close()
	if !ctrl.status.Armed {
		t.Error("app not armed")
	}

	// 3. An alert is logged and shows up in the history.
	logger := eventlog.NewStoreLogger(s)
	if err := logger.LogEvent(eventlog.Event{Time: time.Now(), Mode: "intrusion", EventID: "ID:1", Confidence: 0.9, Status: eventlog.StatusInsideZone}); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	resp, err = client.Get(ts.URL + "/api/alerts?mode=intrusion")
	if err != nil {
		t.Fatalf("GET /api/alerts error = %v", err)
	}
	var alerts struct {
		Alerts []struct {
			EventID string `json:"event_id"`
			Status  string `json:"status"`
		} `json:"alerts"`
	}
	json.NewDecoder(resp.Body).Decode(&alerts)
	resp.Body.Close()

	if len(alerts.Alerts) != 1 || alerts.Alerts[0].EventID != "ID:1" || alerts.Alerts[0].Status != eventlog.StatusInsideZone {
		t.Errorf("alerts = %+v", alerts.Alerts)
	}
}
