package entity

import (
	"fmt"
	"time"
)

// LogEntry запись журнала детекций. Одна структура описывает оба вида записей:
// событие детекции (есть Message) и итог сессии (есть Summary).
type LogEntry struct {
	Timestamp float64 `json:"timestamp"`
	Image     string  `json:"image,omitempty"`
	Latitude  string  `json:"latitude,omitempty"`
	Longitude string  `json:"longitude,omitempty"`
	Message   string  `json:"message,omitempty"`
	Summary   string  `json:"summary,omitempty"`
}

// NewDetectionEvent собирает запись о найденных трещинах
func NewDetectionEvent(at time.Time, image string, loc Location, cracks int) LogEntry {
	return LogEntry{
		Timestamp: EpochSeconds(at),
		Image:     image,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Message:   fmt.Sprintf("%d Crack(s) detected!", cracks),
	}
}

// NewSessionSummary собирает итоговую запись сессии
func NewSessionSummary(at time.Time, total int) LogEntry {
	return LogEntry{
		Timestamp: EpochSeconds(at),
		Summary:   fmt.Sprintf("Total cracks detected in session: %d", total),
	}
}

// IsSummary сообщает, что запись является итогом сессии
func (e LogEntry) IsSummary() bool {
	return e.Summary != ""
}

// IsDetection сообщает, что запись является событием детекции
func (e LogEntry) IsDetection() bool {
	return e.Message != ""
}

// EpochSeconds переводит время в секунды от эпохи с дробной частью.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
