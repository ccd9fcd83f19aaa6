package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/plugin"
)

type fakePipeline struct {
	enabled  bool
	progress confirm.Progress
	snapshot confirm.Snapshot
	sample   *classifier.Sample
	trained  []string
}

func (f *fakePipeline) Progress() confirm.Progress { return f.progress }
func (f *fakePipeline) Snapshot() confirm.Snapshot { return f.snapshot }
func (f *fakePipeline) IsEnabled() bool            { return f.enabled }
func (f *fakePipeline) SetEnabled(enabled bool)    { f.enabled = enabled }
func (f *fakePipeline) ForgetClass(string)         {}

func (f *fakePipeline) LatestSample() (classifier.Sample, bool) {
	if f.sample == nil {
		return classifier.Sample{}, false
	}
	return *f.sample, true
}

func (f *fakePipeline) TrainClass(id string) error {
	f.trained = append(f.trained, id)
	return nil
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serve(s http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/health", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]any
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
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			if rec := serve(s, method, "/api/health", ""); rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	// Routes without their dependency are not registered.
	for _, path := range []string{"/api/nonexistent", "/api/classes", "/api/status", "/api/stream", "/"} {
		if rec := serve(s, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()

	html := "<html><body>mudra</body></html>"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(html), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	css := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte(css), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: dir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/", "")
		if rec.Code != http.StatusOK || rec.Body.String() != html {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/style.css", "")
		if rec.Code != http.StatusOK || rec.Body.String() != css {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		if rec := serve(s, http.MethodGet, "/nonexistent.html", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_Status(t *testing.T) {
	p := &fakePipeline{
		enabled:  true,
		progress: confirm.Progress{CurrentClass: "gojo", StreakLength: 20, Ratio: 20.0 / 15, IsConfirmed: true},
		snapshot: confirm.Snapshot{CurrentClass: "gojo", StreakLength: 20, IsConfirmed: true, LastConfirmedClass: "gojo"},
	}
	s := New(Config{Pipeline: p})

	rec := serve(s, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Enabled || response.Progress.Ratio != 1 || response.State.LastConfirmedClass != "gojo" {
		t.Errorf("response = %+v", response)
	}

	rec = serve(s, http.MethodPut, "/api/status", `{"enabled": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if p.enabled {
		t.Error("PUT did not disable detection")
	}

	if rec := serve(s, http.MethodPut, "/api/status", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("PUT without enabled: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if rec := serve(s, http.MethodDelete, "/api/status", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}

	rec = serve(s, http.MethodGet, "/api/progress", "")
	var progress confirm.Progress
	if err := json.NewDecoder(rec.Body).Decode(&progress); err != nil {
		t.Fatalf("failed to decode progress: %v", err)
	}
	if progress.Ratio != 1 || progress.StreakLength != 20 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestServer_Features(t *testing.T) {
	p := &fakePipeline{}
	s := New(Config{Pipeline: p})

	if rec := serve(s, http.MethodGet, "/api/features", ""); rec.Code != http.StatusNotFound {
		t.Errorf("no hands: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	p.sample = &classifier.Sample{Features: []float64{0.1, 0.2}, Hands: 1, Timestamp: 42}
	rec := serve(s, http.MethodGet, "/api/features", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got classifier.Sample
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Hands != 1 || got.Timestamp != 42 || len(got.Features) != 2 {
		t.Errorf("sample = %+v", got)
	}
}

func TestServer_Plugins(t *testing.T) {
	dir := t.TempDir()
	m := plugin.NewManager(dir, nil)
	s := New(Config{Plugins: m})

	rec := serve(s, http.MethodGet, "/api/plugins", "")
	var empty listPluginsResponse
	json.NewDecoder(rec.Body).Decode(&empty)
	if rec.Code != http.StatusOK || len(empty.Plugins) != 0 {
		t.Fatalf("got %d %+v", rec.Code, empty)
	}

	pluginDir := filepath.Join(dir, "keyboard")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"keyboard","version":"1.0.0","executable":"keyboard","actions":["shortcut","reset"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	// POST rescans.
	rec = serve(s, http.MethodPost, "/api/plugins", "")
	var listed listPluginsResponse
	json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Plugins) != 1 || listed.Plugins[0].Name != "keyboard" || len(listed.Plugins[0].Actions) != 2 {
		t.Errorf("plugins = %+v", listed.Plugins)
	}
}

func TestServer_Snapshot(t *testing.T) {
	preview := capture.NewPreview()
	s := New(Config{Preview: preview})

	if rec := serve(s, http.MethodGet, "/api/snapshot", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before first frame: expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	preview.PublishJPEG(testJPEG(t, 64, 48))

	rec := serve(s, http.MethodGet, "/api/snapshot?width=32&mirror=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %s", ct)
	}
	img, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("snapshot size = %dx%d, want 32x24", b.Dx(), b.Dy())
	}

	for _, q := range []string{"width=0", "width=abc", "width=5000", "mirror=maybe"} {
		if rec := serve(s, http.MethodGet, "/api/snapshot?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", q, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestNew(t *testing.T) {
	cfg := Config{StaticDir: "/some/path"}
	s := New(cfg)

	if s.config.StaticDir != cfg.StaticDir {
		t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
	}
	if s.logger == nil {
		t.Error("expected a default logger")
	}
	var _ http.Handler = s
}
