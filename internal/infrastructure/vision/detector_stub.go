//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"crack-watch/internal/domain/entity"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// YOLODetector детектор-заглушка (без OpenCV).
type YOLODetector struct {
	opts Options
}

// NewYOLODetector создаёт заглушку; каждый вызов Detect завершится ошибкой.
func NewYOLODetector(opts Options) (*YOLODetector, error) {
	log.Warn().Str("model", opts.ModelPath).Msg("Built without gocv tag, inference is disabled")
	return &YOLODetector{opts: opts.withDefaults()}, nil
}

// Close ничего не делает
func (d *YOLODetector) Close() error {
	return nil
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *YOLODetector) Detect(ctx context.Context, imagePath string) (*entity.InferenceResult, error) {
	_ = ctx
	_ = imagePath
	return nil, errNoGoCV
}

// SaveAnnotated возвращает ошибку, если сборка без тега gocv.
func (d *YOLODetector) SaveAnnotated(result *entity.InferenceResult, outputPath string) error {
	_ = result
	_ = outputPath
	return errNoGoCV
}
