package port

import (
	"context"

	"crack-watch/internal/domain/entity"
)

// DetectionLog интерфейс журнала детекций
type DetectionLog interface {
	// Append дописывает запись в конец журнала
	Append(ctx context.Context, entry entity.LogEntry) error

	// ReadLatest возвращает последнюю запись; false, если журнал пуст или повреждён
	ReadLatest(ctx context.Context) (*entity.LogEntry, bool)
}

// ProcessedSet множество уже обработанных изображений текущей сессии
type ProcessedSet interface {
	Contains(name string) bool
	Mark(name string)
	Len() int
}
