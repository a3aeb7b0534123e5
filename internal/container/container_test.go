//go:build !gocv

package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crack-watch/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		CaptureDir:   filepath.Join(root, "images"),
		OutputDir:    filepath.Join(root, "static", "images"),
		LogFile:      filepath.Join(root, "detection_log.json"),
		ModelPath:    filepath.Join(root, "model", "best.onnx"),
		PollWindow:   5,
		PollInterval: 10 * time.Millisecond,
		DirBackoff:   10 * time.Millisecond,
		GeoEndpoint:  "http://127.0.0.1:1/json",
		GeoTimeout:   100 * time.Millisecond,
	}
}

func TestContainer_IngestionLoopWithoutModel(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.CaptureDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.CaptureDir, "a.jpg"), []byte("jpeg"), 0o644))

	c := New(cfg)
	defer c.Close()

	loop, err := c.IngestionLoop()
	require.NoError(t, err)

	// без OpenCV инференс падает, снимок всё равно помечается обработанным
	loop.Cycle(context.Background())
	require.True(t, loop.Processed().Contains("a.jpg"))
	require.Zero(t, loop.CrackTotal())

	require.NoError(t, loop.FlushSummary(context.Background()))
	latest, ok := c.DetectionLog.ReadLatest(context.Background())
	require.True(t, ok)
	require.True(t, latest.IsSummary())
}

func TestContainer_DashboardReadsLog(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.LogFile, []byte(`[{"timestamp": 1, "summary": "Total cracks detected in session: 0"}]`), 0o644))

	c := New(cfg)
	rec := httptest.NewRecorder()
	c.Dashboard().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/latest-detection", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"timestamp": 1, "summary": "Total cracks detected in session: 0"}`, rec.Body.String())
}
