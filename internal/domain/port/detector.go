package port

import (
	"context"

	"crack-watch/internal/domain/entity"
)

// CrackDetector интерфейс модели поиска трещин
type CrackDetector interface {
	// Detect прогоняет изображение через модель и возвращает найденные рамки
	Detect(ctx context.Context, imagePath string) (*entity.InferenceResult, error)

	// SaveAnnotated сохраняет изображение с нарисованными рамками
	SaveAnnotated(result *entity.InferenceResult, outputPath string) error
}
