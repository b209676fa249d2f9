package reviewstub

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию локального review-сервиса.
type Config struct {
	Port               string   `envconfig:"STUB_PORT" default:"8000"`
	Env                string   `envconfig:"APP_ENV" default:"development"`
	LogLevel           string   `envconfig:"LOG_LEVEL" default:"info"`
	CORSAllowedOrigins []string `envconfig:"STUB_CORS_ORIGINS" default:"http://localhost:3000"`
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации review-stub: %w", err)
	}
	return &cfg, nil
}
