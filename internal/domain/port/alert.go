package port

import (
	"context"

	"crack-watch/internal/domain/entity"
)

// AlertDispatcher отправляет уведомление о найденной трещине.
// Ошибки отправки не возвращаются вызывающему: уведомление best-effort.
type AlertDispatcher interface {
	Notify(ctx context.Context, imageName string, loc entity.Location)
}
