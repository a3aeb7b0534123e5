package entity

import "time"

// ImageRecord файл, найденный в наблюдаемой директории.
// Имя уникально и сортируется по времени съёмки.
type ImageRecord struct {
	Name         string
	Path         string
	DiscoveredAt time.Time
}
