package geo

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"crack-watch/internal/domain/entity"
	"crack-watch/internal/domain/port"
	"crack-watch/internal/metrics"
)

const (
	// DefaultEndpoint сервис IP-геолокации по умолчанию
	DefaultEndpoint = "https://ipinfo.io/json"
	// DefaultTimeout ограничение на один запрос
	DefaultTimeout = 5 * time.Second

	maxPayloadBytes = 64 << 10
)

// ipInfoResponse нужная часть ответа ipinfo.io
type ipInfoResponse struct {
	Loc *string `json:"loc"`
}

// IPInfoLocator определяет координаты хоста по его внешнему IP.
// Одна попытка на вызов, без повторов и без кеша.
type IPInfoLocator struct {
	client   *http.Client
	endpoint string
}

// NewIPInfoLocator создаёт локатор. Пустой endpoint и нулевой timeout заменяются значениями по умолчанию.
func NewIPInfoLocator(endpoint string, timeout time.Duration) *IPInfoLocator {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &IPInfoLocator{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		endpoint: endpoint,
	}
}

// Resolve возвращает координаты или entity.FallbackLocation при любой ошибке.
func (l *IPInfoLocator) Resolve(ctx context.Context) entity.Location {
	loc, err := l.Lookup(ctx)
	if err != nil {
		metrics.GeoLookups.WithLabelValues(errorKind(err)).Inc()
		log.Warn().Err(err).Str("endpoint", l.endpoint).Msg("Location lookup failed, using fallback")
		return entity.FallbackLocation
	}

	metrics.GeoLookups.WithLabelValues("ok").Inc()
	return loc
}

// Lookup делает один запрос и возвращает типизированную ошибку:
// *NetworkError, *TimeoutError, *StatusError или *PayloadError.
func (l *IPInfoLocator) Lookup(ctx context.Context) (entity.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, http.NoBody)
	if err != nil {
		return entity.Location{}, &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return entity.Location{}, &TimeoutError{Err: err}
		}
		return entity.Location{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entity.Location{}, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		if isTimeout(err) {
			return entity.Location{}, &TimeoutError{Err: err}
		}
		return entity.Location{}, &NetworkError{Err: err}
	}

	return parseLoc(body)
}

// parseLoc разбирает поле loc вида "lat,lon". Отсутствующее поле означает "0,0".
func parseLoc(body []byte) (entity.Location, error) {
	var payload ipInfoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.Location{}, &PayloadError{Err: err}
	}
	if payload.Loc == nil {
		return entity.FallbackLocation, nil
	}

	parts := strings.Split(*payload.Loc, ",")
	if len(parts) != 2 {
		return entity.Location{}, &PayloadError{Err: fmt.Errorf("unexpected loc %q", *payload.Loc)}
	}

	lat, lon := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if lat == "" || lon == "" {
		return entity.Location{}, &PayloadError{Err: fmt.Errorf("unexpected loc %q", *payload.Loc)}
	}

	return entity.Location{Latitude: lat, Longitude: lon}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errorKind(err error) string {
	var (
		timeoutErr *TimeoutError
		statusErr  *StatusError
		payloadErr *PayloadError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &payloadErr):
		return "payload"
	default:
		return "network"
	}
}

// Проверка реализации интерфейса
var _ port.Locator = (*IPInfoLocator)(nil)
