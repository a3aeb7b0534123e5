package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"crack-watch/internal/domain/entity"
	"crack-watch/internal/domain/port"
	"crack-watch/internal/metrics"
)

const (
	DefaultPollWindow   = 5
	DefaultPollInterval = 500 * time.Millisecond
	DefaultDirBackoff   = time.Second

	outputTimeLayout = "20060102_150405"
)

// DefaultExtensions расширения файлов, которые считаются снимками
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// Options параметры цикла приёма изображений
type Options struct {
	CaptureDir   string        // наблюдаемая директория
	OutputDir    string        // куда сохраняются размеченные снимки
	PollWindow   int           // сколько последних файлов смотреть за цикл
	PollInterval time.Duration // пауза между циклами
	DirBackoff   time.Duration // пауза, если директории нет или она пуста
	Extensions   []string
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollWindow <= 0 {
		o.PollWindow = DefaultPollWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.DirBackoff <= 0 {
		o.DirBackoff = DefaultDirBackoff
	}
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// IngestionLoop опрашивает директорию, прогоняет новые снимки через модель,
// пишет события в журнал и отправляет уведомления.
//
// Изображения обрабатываются строго по одному в порядке имён. Отмена контекста
// учитывается только между изображениями: начатое изображение всегда доводится до конца.
type IngestionLoop struct {
	opts       Options
	detector   port.CrackDetector
	locator    port.Locator
	detections port.DetectionLog
	alerts     port.AlertDispatcher
	processed  port.ProcessedSet

	crackTotal atomic.Int64
	dirMissing bool

	flushOnce sync.Once
	flushErr  error
}

// NewIngestionLoop создаёт цикл. processed принадлежит циклу и не должен разделяться.
func NewIngestionLoop(
	opts Options,
	detector port.CrackDetector,
	locator port.Locator,
	detections port.DetectionLog,
	alerts port.AlertDispatcher,
	processed port.ProcessedSet,
) *IngestionLoop {
	return &IngestionLoop{
		opts:       opts.withDefaults(),
		detector:   detector,
		locator:    locator,
		detections: detections,
		alerts:     alerts,
		processed:  processed,
	}
}

// Run крутит цикл до отмены ctx, затем ровно один раз пишет итог сессии.
func (l *IngestionLoop) Run(ctx context.Context) error {
	if err := os.MkdirAll(l.opts.OutputDir, 0o755); err != nil {
		log.Error().Err(err).Str("path", l.opts.OutputDir).Msg("Could not create output directory")
	}

	log.Info().
		Str("capture_dir", l.opts.CaptureDir).
		Str("output_dir", l.opts.OutputDir).
		Int("window", l.opts.PollWindow).
		Msg("Detection engine started")

	for {
		wait := l.Cycle(ctx)
		if !sleep(ctx, wait) {
			break
		}
	}

	log.Info().Msg("Stop requested, saving session summary")
	return l.FlushSummary(context.WithoutCancel(ctx))
}

// Cycle выполняет один проход опроса и возвращает паузу до следующего.
func (l *IngestionLoop) Cycle(ctx context.Context) time.Duration {
	images, err := l.candidates()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if !l.dirMissing {
				log.Warn().Str("path", l.opts.CaptureDir).Msg("Capture directory does not exist, waiting")
				l.dirMissing = true
			}
			return l.opts.DirBackoff
		}
		log.Error().Err(err).Str("path", l.opts.CaptureDir).Msg("Could not list capture directory")
		return l.opts.DirBackoff
	}
	if l.dirMissing {
		log.Info().Str("path", l.opts.CaptureDir).Msg("Capture directory appeared")
		l.dirMissing = false
	}

	if len(images) == 0 {
		log.Debug().Str("path", l.opts.CaptureDir).Msg("No images found, waiting")
		return l.opts.DirBackoff
	}

	// изображение обрабатывается на контексте без отмены, чтобы не оборвать его на середине
	work := context.WithoutCancel(ctx)
	for _, img := range images {
		if ctx.Err() != nil {
			break
		}
		if l.processed.Contains(img.Name) {
			continue
		}
		l.processImage(work, img)
	}

	return l.opts.PollInterval
}

// processImage обрабатывает одно изображение. Изображение помечается обработанным
// после завершения работы при любом исходе, чтобы битый файл не вызывал повторов.
func (l *IngestionLoop) processImage(ctx context.Context, img entity.ImageRecord) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ImagesProcessed.WithLabelValues("failed").Inc()
			log.Error().Interface("panic", r).Str("image", img.Name).Msg("Image processing panicked")
		}
		l.processed.Mark(img.Name)
	}()

	log.Info().Str("path", img.Path).Msg("Processing image")

	result, err := l.detector.Detect(ctx, img.Path)
	if err != nil {
		metrics.ImagesProcessed.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("image", img.Name).Msg("Inference failed, skipping image")
		return
	}

	loc := l.locator.Resolve(ctx)
	now := l.opts.Now()

	if !result.HasCracks() {
		metrics.ImagesProcessed.WithLabelValues("negative").Inc()
		log.Info().Str("image", img.Name).Msg("No crack detected")
		return
	}

	outputName := OutputName(now)
	outputPath := filepath.Join(l.opts.OutputDir, outputName)
	if err := l.detector.SaveAnnotated(result, outputPath); err != nil {
		metrics.ImagesProcessed.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("image", img.Name).Str("output", outputPath).Msg("Could not save annotated image")
		return
	}

	count := result.CrackCount()
	total := l.crackTotal.Add(int64(count))
	metrics.ImagesProcessed.WithLabelValues("positive").Inc()
	metrics.CracksDetected.Add(float64(count))
	metrics.SessionCracks.Set(float64(total))
	log.Info().Str("image", img.Name).Str("output", outputName).Int("count", count).Msg("Crack(s) detected")

	entry := entity.NewDetectionEvent(now, outputName, loc, count)
	if err := l.detections.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("output", outputName).Msg("Could not update detection log")
	} else {
		log.Info().Str("output", outputName).Msg("Detection log updated")
	}

	l.alerts.Notify(ctx, outputName, loc)
}

// FlushSummary пишет итог сессии. Повторные вызовы ничего не делают
// и возвращают результат первого.
func (l *IngestionLoop) FlushSummary(ctx context.Context) error {
	l.flushOnce.Do(func() {
		total := l.CrackTotal()
		err := l.detections.Append(ctx, entity.NewSessionSummary(l.opts.Now(), total))
		if err != nil {
			l.flushErr = fmt.Errorf("save session summary: %w", err)
			log.Error().Err(err).Int("total", total).Msg("Could not save session summary")
			return
		}
		log.Info().Int("total", total).Msg("Final crack count saved to log")
	})

	return l.flushErr
}

// CrackTotal число трещин, найденных за сессию
func (l *IngestionLoop) CrackTotal() int {
	return int(l.crackTotal.Load())
}

// Processed возвращает множество обработанных изображений
func (l *IngestionLoop) Processed() port.ProcessedSet {
	return l.processed
}

// candidates возвращает последние PollWindow снимков в порядке имён.
func (l *IngestionLoop) candidates() ([]entity.ImageRecord, error) {
	entries, err := os.ReadDir(l.opts.CaptureDir)
	if err != nil {
		return nil, err
	}

	now := l.opts.Now()
	images := make([]entity.ImageRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !l.isImage(e.Name()) {
			continue
		}
		images = append(images, entity.ImageRecord{
			Name:         e.Name(),
			Path:         filepath.Join(l.opts.CaptureDir, e.Name()),
			DiscoveredAt: now,
		})
	}

	if len(images) > l.opts.PollWindow {
		images = images[len(images)-l.opts.PollWindow:]
	}
	return images, nil
}

func (l *IngestionLoop) isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range l.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// OutputName имя размеченного снимка. Два снимка в одну секунду получат одно имя.
func OutputName(t time.Time) string {
	return "detected_" + t.Format(outputTimeLayout) + ".jpg"
}

// sleep ждёт d или отмены ctx; false означает отмену.
func sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
