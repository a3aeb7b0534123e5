package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"crack-watch/internal/domain/entity"
	"crack-watch/internal/domain/port"
	"crack-watch/internal/metrics"
)

const (
	breakerName = "telegram-alerts"
	// после стольких ошибок подряд отправка приостанавливается
	breakerTrips = 3
	// на столько приостанавливается отправка
	breakerCooldown = time.Minute
)

// Config настройки отправки уведомлений
type Config struct {
	Enabled     bool
	Token       string // токен бота (отправитель)
	ChatID      string // чат получателя; разбирается при отправке
	APIEndpoint string // шаблон URL Bot API, по умолчанию tgbotapi.APIEndpoint
}

// Bot отправляет уведомления о трещинах в Telegram.
// Клиент Bot API создаётся лениво при первой отправке: неверные учётные данные
// проявляются ошибкой отправки, а не при старте.
type Bot struct {
	cfg     Config
	client  tgbotapi.HTTPClient
	breaker *gobreaker.CircuitBreaker[tgbotapi.Message]

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

// NewBot создаёт отправителя. Сетевых вызовов не делает.
func NewBot(cfg Config) *Bot {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}

	breaker := gobreaker.NewCircuitBreaker[tgbotapi.Message](gobreaker.Settings{
		Name:    breakerName,
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Alert circuit breaker state changed")
		},
	})

	return &Bot{
		cfg:     cfg,
		client:  &http.Client{},
		breaker: breaker,
	}
}

// Notify отправляет уведомление. Любая ошибка логируется и не возвращается.
func (b *Bot) Notify(ctx context.Context, imageName string, loc entity.Location) {
	_ = ctx

	if !b.cfg.Enabled {
		metrics.Alerts.WithLabelValues("disabled").Inc()
		log.Info().Str("image", imageName).Msg("Alerts disabled, skipping notification")
		return
	}

	text := ComposeMessage(imageName, loc)
	msg, err := b.breaker.Execute(func() (tgbotapi.Message, error) {
		return b.send(text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.Alerts.WithLabelValues("skipped").Inc()
			log.Warn().Err(err).Str("image", imageName).Msg("Alert dropped, provider is failing")
			return
		}
		metrics.Alerts.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("image", imageName).Msg("Failed to send alert")
		return
	}

	metrics.Alerts.WithLabelValues("sent").Inc()
	log.Info().Str("image", imageName).Int("message_id", msg.MessageID).Msg("Alert sent")
}

// ComposeMessage собирает текст уведомления
func ComposeMessage(imageName string, loc entity.Location) string {
	var sb strings.Builder
	sb.WriteString("⚠️ Crack detected!\n")
	sb.WriteString("File: " + imageName + "\n")
	sb.WriteString("Location: " + loc.MapURL())
	return sb.String()
}

// send отправляет текст в чат получателя
func (b *Bot) send(text string) (tgbotapi.Message, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(b.cfg.ChatID), 10, 64)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("invalid chat id %q: %w", b.cfg.ChatID, err)
	}

	api, err := b.botAPI()
	if err != nil {
		return tgbotapi.Message{}, err
	}

	msg, err := api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("send message: %w", err)
	}

	return msg, nil
}

// botAPI возвращает клиент Bot API, создавая его при первом успешном обращении
func (b *Bot) botAPI() (*tgbotapi.BotAPI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.api != nil {
		return b.api, nil
	}
	if b.cfg.Token == "" {
		return nil, errors.New("telegram token is not configured")
	}

	api, err := tgbotapi.NewBotAPIWithClient(b.cfg.Token, b.cfg.APIEndpoint, b.client)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("Authorized on Telegram")
	b.api = api
	return api, nil
}

// Проверка реализации интерфейса
var _ port.AlertDispatcher = (*Bot)(nil)
