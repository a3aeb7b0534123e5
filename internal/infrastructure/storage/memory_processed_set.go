package storage

import (
	"sort"
	"sync"

	"crack-watch/internal/domain/port"
)

// MemoryProcessedSet in-memory множество обработанных изображений.
// Живёт только в пределах процесса: после перезапуска изображения обрабатываются заново.
type MemoryProcessedSet struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewMemoryProcessedSet создаёт пустое множество
func NewMemoryProcessedSet() *MemoryProcessedSet {
	return &MemoryProcessedSet{
		names: make(map[string]struct{}),
	}
}

// Contains проверяет, обработано ли изображение
func (s *MemoryProcessedSet) Contains(name string) bool {
	s.mu.RLock()
	_, exists := s.names[name]
	s.mu.RUnlock()

	return exists
}

// Mark помечает изображение обработанным. Множество только растёт.
func (s *MemoryProcessedSet) Mark(name string) {
	s.mu.Lock()
	s.names[name] = struct{}{}
	s.mu.Unlock()
}

// Len возвращает число обработанных изображений
func (s *MemoryProcessedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.names)
}

// Names возвращает отсортированный список имён
func (s *MemoryProcessedSet) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Проверка реализации интерфейса
var _ port.ProcessedSet = (*MemoryProcessedSet)(nil)
