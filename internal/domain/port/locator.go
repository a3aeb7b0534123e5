package port

import (
	"context"

	"crack-watch/internal/domain/entity"
)

// Locator определяет приблизительное местоположение хоста.
// Resolve никогда не возвращает ошибку: при сбое отдаётся entity.FallbackLocation.
type Locator interface {
	Resolve(ctx context.Context) entity.Location
}
