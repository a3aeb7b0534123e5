package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crack-watch/internal/domain/entity"
	"crack-watch/internal/infrastructure/storage"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeDetector struct {
	mu     sync.Mutex
	boxes  map[string]int
	fail   map[string]error
	panics map[string]bool
	calls  []string
	gate   chan struct{} // если задан, Detect ждёт сигнала
	inside chan struct{}
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{
		boxes:  make(map[string]int),
		fail:   make(map[string]error),
		panics: make(map[string]bool),
	}
}

func (d *fakeDetector) Detect(ctx context.Context, imagePath string) (*entity.InferenceResult, error) {
	name := filepath.Base(imagePath)

	d.mu.Lock()
	d.calls = append(d.calls, name)
	gate, inside := d.gate, d.inside
	d.mu.Unlock()

	if inside != nil {
		inside <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	if d.panics[name] {
		panic("model crashed")
	}
	if err := d.fail[name]; err != nil {
		return nil, err
	}

	result := &entity.InferenceResult{ImagePath: imagePath, ImageWidth: 640, ImageHeight: 480}
	for i := 0; i < d.boxes[name]; i++ {
		result.Boxes = append(result.Boxes, entity.BoundingBox{X: i * 10, Y: 5, Width: 8, Height: 8, Confidence: 0.9, Label: "crack"})
	}
	return result, nil
}

func (d *fakeDetector) SaveAnnotated(result *entity.InferenceResult, outputPath string) error {
	return os.WriteFile(outputPath, []byte(fmt.Sprintf("annotated %d", len(result.Boxes))), 0o644)
}

func (d *fakeDetector) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type fakeLocator struct {
	mu    sync.Mutex
	calls int
}

func (l *fakeLocator) Resolve(ctx context.Context) entity.Location {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return entity.Location{Latitude: "18.52", Longitude: "73.85"}
}

type sentAlert struct {
	image string
	loc   entity.Location
}

type fakeAlerts struct {
	mu   sync.Mutex
	sent []sentAlert
}

func (a *fakeAlerts) Notify(ctx context.Context, imageName string, loc entity.Location) {
	a.mu.Lock()
	a.sent = append(a.sent, sentAlert{image: imageName, loc: loc})
	a.mu.Unlock()
}

type fixture struct {
	loop      *IngestionLoop
	detector  *fakeDetector
	locator   *fakeLocator
	alerts    *fakeAlerts
	log       *storage.JSONDetectionLog
	processed *storage.MemoryProcessedSet
	capture   string
	output    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		detector:  newFakeDetector(),
		locator:   &fakeLocator{},
		alerts:    &fakeAlerts{},
		log:       storage.NewJSONDetectionLog(filepath.Join(root, "detection_log.json")),
		processed: storage.NewMemoryProcessedSet(),
		capture:   filepath.Join(root, "images"),
		output:    filepath.Join(root, "static", "images"),
	}
	require.NoError(t, os.MkdirAll(f.capture, 0o755))
	require.NoError(t, os.MkdirAll(f.output, 0o755))

	f.loop = NewIngestionLoop(Options{
		CaptureDir:   f.capture,
		OutputDir:    f.output,
		PollInterval: 10 * time.Millisecond,
		DirBackoff:   10 * time.Millisecond,
		Now:          func() time.Time { return fixedNow },
	}, f.detector, f.locator, f.log, f.alerts, f.processed)
	return f
}

func (f *fixture) addImage(t *testing.T, name string, boxes int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.capture, name), []byte("jpeg"), 0o644))
	f.detector.mu.Lock()
	f.detector.boxes[name] = boxes
	f.detector.mu.Unlock()
}

func TestIngestionLoop_EndToEndCycle(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 0)
	f.addImage(t, "b.jpg", 2)

	wait := f.loop.Cycle(context.Background())
	require.Equal(t, 10*time.Millisecond, wait)

	require.Equal(t, []string{"a.jpg", "b.jpg"}, f.processed.Names())
	require.Equal(t, 2, f.loop.CrackTotal())
	require.Equal(t, 2, f.locator.calls)

	outputs, err := os.ReadDir(f.output)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, "detected_20240102_030405.jpg", outputs[0].Name())

	entries := f.log.Entries(context.Background())
	require.Len(t, entries, 1)
	require.Equal(t, "2 Crack(s) detected!", entries[0].Message)
	require.Equal(t, "detected_20240102_030405.jpg", entries[0].Image)
	require.Equal(t, "18.52", entries[0].Latitude)
	require.Equal(t, "73.85", entries[0].Longitude)
	require.InDelta(t, float64(fixedNow.Unix()), entries[0].Timestamp, 1e-6)

	require.Equal(t, []sentAlert{{image: "detected_20240102_030405.jpg", loc: entity.Location{Latitude: "18.52", Longitude: "73.85"}}}, f.alerts.sent)
}

func TestIngestionLoop_DoesNotReprocess(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 1)

	f.loop.Cycle(context.Background())
	f.loop.Cycle(context.Background())
	f.loop.Cycle(context.Background())

	require.Equal(t, []string{"a.jpg"}, f.detector.Calls())
	require.Len(t, f.log.Entries(context.Background()), 1)

	f.addImage(t, "b.jpg", 0)
	f.loop.Cycle(context.Background())
	require.Equal(t, []string{"a.jpg", "b.jpg"}, f.detector.Calls())
}

func TestIngestionLoop_BoundedPollWindow(t *testing.T) {
	f := newFixture(t)
	for i := 7; i >= 0; i-- {
		f.addImage(t, fmt.Sprintf("image_%02d.jpg", i), 0)
	}

	f.loop.Cycle(context.Background())

	require.Equal(t, []string{
		"image_03.jpg", "image_04.jpg", "image_05.jpg", "image_06.jpg", "image_07.jpg",
	}, f.detector.Calls())
	require.Equal(t, 5, f.processed.Len())

	// хвост уже обработан, старые файлы за окном не попадают никогда
	f.loop.Cycle(context.Background())
	require.Len(t, f.detector.Calls(), 5)
}

func TestIngestionLoop_FewerThanWindow(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 0)
	f.addImage(t, "b.jpg", 0)

	f.loop.Cycle(context.Background())
	require.Equal(t, []string{"a.jpg", "b.jpg"}, f.detector.Calls())
}

func TestIngestionLoop_IgnoresNonImages(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 0)
	require.NoError(t, os.WriteFile(filepath.Join(f.capture, "z.jpg.tmp"), []byte("partial"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(f.capture, "zz.jpg"), 0o755))

	f.loop.Cycle(context.Background())
	require.Equal(t, []string{"a.jpg"}, f.detector.Calls())
}

func TestIngestionLoop_MissingDirectoryBacksOff(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.capture))

	wait := f.loop.Cycle(context.Background())
	require.Equal(t, 10*time.Millisecond, wait)
	require.Empty(t, f.detector.Calls())

	require.NoError(t, os.MkdirAll(f.capture, 0o755))
	wait = f.loop.Cycle(context.Background())
	require.Equal(t, 10*time.Millisecond, wait, "empty directory also backs off")

	f.addImage(t, "a.jpg", 1)
	f.loop.Cycle(context.Background())
	require.Equal(t, []string{"a.jpg"}, f.detector.Calls())
}

func TestIngestionLoop_DefaultIntervals(t *testing.T) {
	loop := NewIngestionLoop(Options{CaptureDir: filepath.Join(t.TempDir(), "missing")}, nil, nil, nil, nil, storage.NewMemoryProcessedSet())
	require.Equal(t, time.Second, loop.Cycle(context.Background()))
	require.Equal(t, 5, loop.opts.PollWindow)
	require.Equal(t, 500*time.Millisecond, loop.opts.PollInterval)
}

func TestIngestionLoop_BadImageDoesNotStopLoop(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 0)
	f.addImage(t, "b.jpg", 1)
	f.addImage(t, "c.jpg", 3)
	f.detector.fail["a.jpg"] = errors.New("cannot decode")
	f.detector.panics["b.jpg"] = true

	require.NotPanics(t, func() { f.loop.Cycle(context.Background()) })

	require.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, f.processed.Names())
	require.Equal(t, 3, f.loop.CrackTotal())
	require.Len(t, f.log.Entries(context.Background()), 1)
	require.Len(t, f.alerts.sent, 1)

	// битые файлы не повторяются
	f.loop.Cycle(context.Background())
	require.Len(t, f.detector.Calls(), 3)
}

func TestIngestionLoop_AnnotationFailureSkipsEvent(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 2)
	f.loop.opts.OutputDir = filepath.Join(f.output, "missing", "dir")

	f.loop.Cycle(context.Background())

	require.True(t, f.processed.Contains("a.jpg"))
	require.Zero(t, f.loop.CrackTotal())
	require.Empty(t, f.log.Entries(context.Background()))
	require.Empty(t, f.alerts.sent)
}

func TestIngestionLoop_RunFlushesSummaryOnce(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 0)
	f.addImage(t, "b.jpg", 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	require.Eventually(t, func() bool { return f.processed.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	require.NoError(t, f.loop.FlushSummary(context.Background()))
	require.NoError(t, f.loop.FlushSummary(context.Background()))

	entries := f.log.Entries(context.Background())
	require.Len(t, entries, 2)
	require.True(t, entries[0].IsDetection())
	require.True(t, entries[1].IsSummary())
	require.Contains(t, entries[1].Summary, "2")
	require.Equal(t, "Total cracks detected in session: 2", entries[1].Summary)
}

func TestIngestionLoop_SummaryWithCorruptLog(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.log.Path(), []byte("[{broken"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.loop.Run(ctx))

	entries := f.log.Entries(context.Background())
	require.Len(t, entries, 1)
	require.Equal(t, "Total cracks detected in session: 0", entries[0].Summary)
}

func TestIngestionLoop_CancellationWaitsForInFlightImage(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "a.jpg", 1)
	f.addImage(t, "b.jpg", 1)
	f.detector.gate = make(chan struct{})
	f.detector.inside = make(chan struct{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	select {
	case <-f.detector.inside:
	case <-time.After(2 * time.Second):
		t.Fatal("inference was not started")
	}
	cancel()
	close(f.detector.gate)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	// a.jpg доведён до конца, b.jpg уже не начинался
	require.Equal(t, []string{"a.jpg"}, f.detector.Calls())
	require.True(t, f.processed.Contains("a.jpg"))
	require.False(t, f.processed.Contains("b.jpg"))

	entries := f.log.Entries(context.Background())
	require.Len(t, entries, 2)
	require.Equal(t, "1 Crack(s) detected!", entries[0].Message)
	require.Equal(t, "Total cracks detected in session: 1", entries[1].Summary)
}

func TestOutputName(t *testing.T) {
	require.Equal(t, "detected_20240102_030405.jpg", OutputName(fixedNow))
}
