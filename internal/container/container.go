package container

import (
	"fmt"
	"path/filepath"

	"crack-watch/config"
	"crack-watch/internal/api/dashboard"
	"crack-watch/internal/api/telegram"
	app "crack-watch/internal/application"
	"crack-watch/internal/infrastructure/geo"
	"crack-watch/internal/infrastructure/storage"
	"crack-watch/internal/infrastructure/vision"
)

// Container собирает зависимости процесса. Модель загружается только
// командой детекции, дашборду она не нужна.
type Container struct {
	Config       *config.Config
	DetectionLog *storage.JSONDetectionLog
	Locator      *geo.IPInfoLocator
	Alerts       *telegram.Bot

	detector *vision.YOLODetector
}

func New(cfg *config.Config) *Container {
	return &Container{
		Config:       cfg,
		DetectionLog: storage.NewJSONDetectionLog(cfg.LogFile),
		Locator:      geo.NewIPInfoLocator(cfg.GeoEndpoint, cfg.GeoTimeout),
		Alerts: telegram.NewBot(telegram.Config{
			Enabled:     cfg.AlertEnabled,
			Token:       cfg.TelegramToken,
			ChatID:      cfg.TelegramChatID,
			APIEndpoint: cfg.TelegramAPIEndpoint,
		}),
	}
}

// IngestionLoop загружает модель и создаёт цикл приёма снимков.
func (c *Container) IngestionLoop() (*app.IngestionLoop, error) {
	if c.detector == nil {
		detector, err := vision.NewYOLODetector(vision.Options{
			ModelPath:  c.Config.ModelPath,
			Confidence: c.Config.DetectConfidence,
			NMS:        c.Config.DetectNMS,
		})
		if err != nil {
			return nil, fmt.Errorf("load detector: %w", err)
		}
		c.detector = detector
	}

	loop := app.NewIngestionLoop(app.Options{
		CaptureDir:   c.Config.CaptureDir,
		OutputDir:    c.Config.OutputDir,
		PollWindow:   c.Config.PollWindow,
		PollInterval: c.Config.PollInterval,
		DirBackoff:   c.Config.DirBackoff,
	}, c.detector, c.Locator, c.DetectionLog, c.Alerts, storage.NewMemoryProcessedSet())

	return loop, nil
}

// Dashboard создаёт HTTP-сервер панели поверх журнала и директории снимков.
func (c *Container) Dashboard() *dashboard.Server {
	return dashboard.NewServer(dashboard.Options{
		Addr:        c.Config.DashboardAddr,
		ImageDir:    filepath.Clean(c.Config.OutputDir),
		CORSOrigins: c.Config.DashboardCORSOrigins,
		RateLimit:   c.Config.DashboardRateLimit,
	}, c.DetectionLog)
}

// Close освобождает модель, если она загружалась
func (c *Container) Close() error {
	if c.detector == nil {
		return nil
	}
	return c.detector.Close()
}
