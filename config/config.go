package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CaptureDir string // директория, куда камера складывает снимки
	OutputDir  string // директория размеченных снимков, её же отдаёт dashboard
	LogFile    string // журнал обнаружений (JSON-массив)
	ModelPath  string

	PollWindow   int
	PollInterval time.Duration
	DirBackoff   time.Duration

	GeoEndpoint string
	GeoTimeout  time.Duration

	AlertEnabled        bool
	TelegramToken       string
	TelegramChatID      string
	TelegramAPIEndpoint string

	DetectConfidence float64
	DetectNMS        float64

	DashboardAddr        string
	DashboardCORSOrigins []string
	DashboardRateLimit   int

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		CaptureDir: getEnv("CAPTURE_DIR", "images"),
		OutputDir:  getEnv("OUTPUT_DIR", "static/images"),
		LogFile:    getEnv("LOG_FILE", "detection_log.json"),
		ModelPath:  getEnv("MODEL_PATH", "model/best.onnx"),

		PollWindow:   getEnvAsInt("POLL_WINDOW", 5),
		PollInterval: getEnvAsDuration("POLL_INTERVAL", 500*time.Millisecond),
		DirBackoff:   getEnvAsDuration("DIR_BACKOFF", time.Second),

		GeoEndpoint: getEnv("GEO_ENDPOINT", "https://ipinfo.io/json"),
		GeoTimeout:  getEnvAsDuration("GEO_TIMEOUT", 5*time.Second),

		// учётные данные Telegram не проверяются при старте, только при отправке
		AlertEnabled:        getEnvAsBool("ALERT_ENABLED", false),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:      os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramAPIEndpoint: os.Getenv("TELEGRAM_API_ENDPOINT"),

		DetectConfidence: getEnvAsFloat("DETECT_CONFIDENCE", 0.25),
		DetectNMS:        getEnvAsFloat("DETECT_NMS", 0.45),

		DashboardAddr:        getEnv("DASHBOARD_ADDR", ":5000"),
		DashboardCORSOrigins: getEnvAsList("DASHBOARD_CORS_ORIGINS"),
		DashboardRateLimit:   getEnvAsInt("DASHBOARD_RATE_LIMIT", 120),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil && floatValue > 0 {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvAsBool понимает значения strconv.ParseBool: 1, t, true, 0, f, false
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
