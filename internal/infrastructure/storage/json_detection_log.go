package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"crack-watch/internal/domain/entity"
	"crack-watch/internal/domain/port"
	"crack-watch/internal/metrics"
)

const logIndent = "    "

// JSONDetectionLog журнал детекций в виде JSON-массива на диске.
//
// Каждый Append перечитывает файл целиком, дописывает запись и перезаписывает
// файл через временный файл и rename, поэтому читатель (дашборд) никогда не видит
// недописанный массив. Стоимость Append растёт линейно с размером журнала.
// Писатель внутри процесса один (mutex); между процессами действует last-write-wins.
type JSONDetectionLog struct {
	path string
	mu   sync.Mutex
}

// NewJSONDetectionLog создаёт журнал по указанному пути. Файл может не существовать.
func NewJSONDetectionLog(path string) *JSONDetectionLog {
	return &JSONDetectionLog{path: path}
}

// Path возвращает путь к файлу журнала
func (l *JSONDetectionLog) Path() string {
	return l.path
}

// Append дописывает запись. Повреждённый или отсутствующий файл считается пустым
// журналом, и запись его восстанавливает.
func (l *JSONDetectionLog) Append(ctx context.Context, entry entity.LogEntry) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()

	raw, err := json.Marshal(entry)
	if err != nil {
		metrics.LogAppends.WithLabelValues("error").Inc()
		return fmt.Errorf("encode log entry: %w", err)
	}
	entries = append(entries, raw)

	data, err := json.MarshalIndent(entries, "", logIndent)
	if err != nil {
		metrics.LogAppends.WithLabelValues("error").Inc()
		return fmt.Errorf("encode detection log: %w", err)
	}

	if err := writeFileAtomic(l.path, data, 0o644); err != nil {
		metrics.LogAppends.WithLabelValues("error").Inc()
		return fmt.Errorf("write detection log: %w", err)
	}

	metrics.LogAppends.WithLabelValues("ok").Inc()
	log.Debug().Str("path", l.path).Int("entries", len(entries)).Msg("Detection log updated")
	return nil
}

// ReadLatest возвращает последнюю запись журнала.
func (l *JSONDetectionLog) ReadLatest(ctx context.Context) (*entity.LogEntry, bool) {
	_ = ctx

	entries := l.load()
	if len(entries) == 0 {
		return nil, false
	}

	var entry entity.LogEntry
	if err := json.Unmarshal(entries[len(entries)-1], &entry); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("Latest detection log entry is not an object")
		return nil, false
	}

	return &entry, true
}

// LatestRaw возвращает последний элемент журнала как есть, вместе с полями,
// которых нет в entity.LogEntry. Элемент, который не является объектом, не отдаётся.
func (l *JSONDetectionLog) LatestRaw(ctx context.Context) ([]byte, bool) {
	_ = ctx

	entries := l.load()
	if len(entries) == 0 {
		return nil, false
	}

	last := entries[len(entries)-1]
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(last, &probe); err != nil || probe == nil {
		return nil, false
	}

	return []byte(last), true
}

// Entries возвращает все записи, которые удалось разобрать, в порядке добавления.
func (l *JSONDetectionLog) Entries(ctx context.Context) []entity.LogEntry {
	_ = ctx

	raw := l.load()
	entries := make([]entity.LogEntry, 0, len(raw))
	for _, item := range raw {
		var entry entity.LogEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries
}

// load читает журнал как массив сырых JSON-значений, чтобы при перезаписи
// не потерять поля, о которых программа не знает.
func (l *JSONDetectionLog) load() []json.RawMessage {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", l.path).Msg("Could not read detection log, treating as empty")
		}
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("Detection log is corrupted, treating as empty")
		return nil
	}

	return entries
}

// writeFileAtomic пишет данные во временный файл рядом с целевым и переименовывает его.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// после успешного rename файла уже нет, ошибку игнорируем
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	return os.Rename(tmpName, path)
}

// Проверка реализации интерфейса
var _ port.DetectionLog = (*JSONDetectionLog)(nil)
