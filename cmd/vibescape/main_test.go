package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vibescape/vibescape-backend/internal/domain/emotion"
)

func TestStaticHandler(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0644)
	os.MkdirAll(filepath.Join(dir, "songpic"), 0755)
	os.WriteFile(filepath.Join(dir, "songpic", "default.png"), []byte("png"), 0644)

	h := staticHandler(dir)

	tests := []struct {
		path string
		want string
	}{
		{"/songpic/default.png", "png"},
		{"/player", "home"},
		{"/../../etc/passwd", "home"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("GET %s body = %q, want it to contain %q", tt.path, rec.Body.String(), tt.want)
			}
		})
	}
}

func TestNewDetector(t *testing.T) {
	cfg := defaultConfig()
	cfg.Emotion.ScanDelay = time.Millisecond
	if _, ok := newDetector(cfg).(*emotion.SimulatedDetector); !ok {
		t.Error("expected simulated detector without a service URL")
	}

	cfg.Emotion.URL = "http://localhost:5000/detect"
	if _, ok := newDetector(cfg).(*emotion.HTTPDetector); !ok {
		t.Error("expected HTTP detector with a service URL")
	}
}
