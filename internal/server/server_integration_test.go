package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/store"
)

func TestAPI_ClassWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	p := &fakePipeline{}
	ts := httptest.NewServer(New(Config{Store: s, Pipeline: p}))
	defer ts.Close()
	client := ts.Client()

	// 1. Create a class
	resp, err := client.Post(ts.URL+"/api/classes", "application/json", bytes.NewBufferString(`{"name":"tora","required_hands":2}`))
	if err != nil {
		t.Fatalf("POST /api/classes error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	// 2. Post samples, which retrains through the pipeline
	features := make([]float64, 126)
	features[0] = 0.5
	sample, _ := json.Marshal(map[string]any{"features": features, "hands": 2})
	body := `{"samples":[` + string(sample) + `]}`
	resp, err = client.Post(ts.URL+"/api/classes/"+created.ID+"/samples", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST samples error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST samples status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if len(p.trained) != 1 || p.trained[0] != created.ID {
		t.Errorf("trained = %v", p.trained)
	}

	// 3. Sample count shows on the class
	resp, _ = client.Get(ts.URL + "/api/classes/" + created.ID)
	var got struct {
		Samples int `json:"samples"`
	}
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Samples != 1 {
		t.Errorf("samples = %d, want 1", got.Samples)
	}

	// 4. Delete
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/classes/"+created.ID, nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp, _ = client.Get(ts.URL + "/api/classes/" + created.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAPI_EventStream(t *testing.T) {
	hub := NewEventHub(nil)
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	c, err := confirm.New(confirm.Config{
		RequiredStreak: 2,
		MinConfidence:  0.5,
		Classes:        []confirm.ClassSpec{{Name: "gojo", RequiredFeatureCount: 1}, {Name: "unknown"}},
	})
	if err != nil {
		t.Fatalf("confirm.New() error = %v", err)
	}
	hub.Attach(c)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	c.Update(confirm.Classification{Class: "gojo", Confidence: 0.9}, 1)
	c.Update(confirm.Classification{Class: "gojo", Confidence: 0.9}, 1)
	c.HandleNoSignal()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var events []Event
	for len(events) < 2 {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		events = append(events, ev)
	}

	if events[0].Type != EventConfirmed || events[0].Class != "gojo" || events[0].Streak != 2 {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != EventReset || events[1].Class != "gojo" {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestAPI_Stream(t *testing.T) {
	preview := capture.NewPreview()
	ts := httptest.NewServer(New(Config{Preview: preview}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	go func() {
		time.Sleep(50 * time.Millisecond)
		preview.PublishJPEG(testJPEG(t, 8, 8))
	}()

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %s", ct)
	}
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}
	if strings.TrimSpace(line) != "--frame" {
		t.Errorf("first line = %q, want boundary", line)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	ts := httptest.NewServer(New(Config{}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	if resp.StatusCode != http.StatusOK || health.Status != "ok" {
		t.Errorf("status = %d %q", resp.StatusCode, health.Status)
	}
}

func TestServer_Run(t *testing.T) {
	s := New(Config{Events: NewEventHub(nil)})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
