package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"procedure-review/shared/logger"
	"procedure-review/shared/models"
)

// DevEndpoint - адрес локального review-сервиса в режиме -dev.
const DevEndpoint = "http://localhost:8000/review"

// Config структура для хранения всей конфигурации запуска.
type Config struct {
	AppEnv         string `env:"APP_ENV" env-default:"development"`
	Logger         logger.Config
	Input          InputConfig
	Delivery       DeliveryConfig
	Resolver       ResolverConfig
	RabbitMQ       RabbitMQConfig
	Workers        int    `env:"WORKERS" env-default:"4"`
	PushGatewayURL string `env:"PUSHGATEWAY_URL"` // пусто - метрики не отправляются
	JournalPath    string `env:"JOURNAL_PATH"`    // пусто - журнал запусков выключен
}

// InputConfig - откуда берётся процедура.
type InputConfig struct {
	Procedure      string `env:"PROCEDURE"`
	ProceduresFile string `env:"PROCEDURES_FILE" env-default:"procedures.yaml"`
	InputJSON      string `env:"INPUT_JSON"` // заранее разрешённая процедура, минует резолвер
	// List и History - служебные режимы CLI, задаются только флагами.
	List    bool
	History int
}

// DeliveryConfig - куда и как доставляется payload.
type DeliveryConfig struct {
	Endpoint    string        `env:"REVIEW_ENDPOINT"`
	OutputDir   string        `env:"OUTPUT_DIR"`
	Extract     bool          `env:"EXTRACT" env-default:"false"`
	Dev         bool          `env:"DEV" env-default:"false"`
	DevLog      bool          `env:"DEV_LOG" env-default:"false"`
	DevLogDir   string        `env:"DEV_LOG_DIR" env-default:"dev_logs"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" env-default:"60s"`
}

// ResolverConfig - политика разрешения ассетов.
type ResolverConfig struct {
	MaxAssetBytes    int64   `env:"MAX_ASSET_BYTES" env-default:"52428800"` // 50 MiB
	VideoFrameOffset float64 `env:"VIDEO_FRAME_OFFSET" env-default:"1.0"`
	FrameSelection   string  `env:"FRAME_SELECTION" env-default:"first"`
	FFmpegPath       string  `env:"FFMPEG_PATH" env-default:"ffmpeg"`
}

// RabbitMQConfig конфигурация уведомлений о завершении запуска.
type RabbitMQConfig struct {
	URL         string `env:"RABBITMQ_URL"` // пусто - уведомления выключены
	ResultQueue string `env:"RABBITMQ_RESULT_QUEUE" env-default:"procedure_review_results"`
}

// Load загружает конфигурацию из .env файла и переменных окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyFlags разбирает флаги командной строки; заданные флаги перекрывают окружение.
func (c *Config) ApplyFlags(fs *flag.FlagSet, args []string) error {
	procedure := fs.String("procedure", c.Input.Procedure, "name of the procedure to process")
	proceduresFile := fs.String("procedures-file", c.Input.ProceduresFile, "YAML file with procedure definitions")
	inputJSON := fs.String("input-json", c.Input.InputJSON, "pre-resolved procedure JSON (skips asset resolution)")
	endpoint := fs.String("endpoint", c.Delivery.Endpoint, "review service endpoint")
	output := fs.String("output", c.Delivery.OutputDir, "output directory for the rendered document")
	extract := fs.Bool("extract", c.Delivery.Extract, "extract mode: copy assets and render HTML instead of embedding")
	dev := fs.Bool("dev", c.Delivery.Dev, "send the payload to the local review service at "+DevEndpoint)
	devLog := fs.Bool("log", c.Delivery.DevLog, "write intermediate resolved/payload JSON to the dev log directory")
	list := fs.Bool("list", false, "list procedure names in the procedures file and exit")
	history := fs.Int("history", 0, "print the last N journal runs (of -procedure, if given) and exit; needs JOURNAL_PATH")

	if err := fs.Parse(args); err != nil {
		return err
	}

	c.Input.Procedure = *procedure
	c.Input.ProceduresFile = *proceduresFile
	c.Input.InputJSON = *inputJSON
	c.Delivery.Endpoint = *endpoint
	c.Delivery.OutputDir = *output
	c.Delivery.Extract = *extract
	c.Delivery.Dev = *dev
	c.Delivery.DevLog = *devLog
	c.Input.List = *list
	c.Input.History = *history
	return nil
}

// Endpoint возвращает адрес review-сервиса с учётом режима -dev, либо пустую строку.
func (c *Config) Endpoint() string {
	if c.Delivery.Dev {
		return DevEndpoint
	}
	return c.Delivery.Endpoint
}

// RemoteRequested - запрошена ли отправка в review-сервис.
func (c *Config) RemoteRequested() bool {
	return c.Endpoint() != ""
}

// LocalRequested - запрошена ли локальная запись: явный каталог вывода либо отсутствие удалённой доставки.
func (c *Config) LocalRequested() bool {
	return c.Delivery.OutputDir != "" || !c.RemoteRequested()
}

// OutputDir возвращает каталог вывода ("." по умолчанию).
func (c *Config) OutputDir() string {
	if c.Delivery.OutputDir == "" {
		return "."
	}
	return c.Delivery.OutputDir
}

// Mode returns the payload mode selected by the extract flag.
func (c *Config) Mode() models.Mode {
	return models.ParseMode(c.Delivery.Extract)
}

// Informational - запрошен служебный режим (-list, -history) вместо запуска.
func (c *Config) Informational() bool {
	return c.Input.List || c.Input.History > 0
}

// Validate проверяет, что запуску есть что делать.
func (c *Config) Validate() error {
	if c.Input.History < 0 {
		return fmt.Errorf("-history must not be negative, got %d", c.Input.History)
	}
	if c.Input.List && c.Input.ProceduresFile == "" {
		return errors.New("procedures file is not configured")
	}
	if c.Input.History > 0 && c.JournalPath == "" {
		return errors.New("-history needs JOURNAL_PATH")
	}
	if c.Informational() {
		return nil
	}
	if c.Input.Procedure == "" && c.Input.InputJSON == "" && !c.RemoteRequested() {
		return models.ErrNothingToDo
	}
	if c.Input.Procedure == "" && c.Input.InputJSON == "" {
		return models.ErrNoProcedureInput
	}
	if c.Input.InputJSON == "" && c.Input.ProceduresFile == "" {
		return errors.New("procedures file is not configured")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.Delivery.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Delivery.HTTPTimeout)
	}
	if !models.FrameSelection(c.Resolver.FrameSelection).IsValid() {
		return fmt.Errorf("FRAME_SELECTION must be %q or %q, got %q", models.FrameSelectionFirst, models.FrameSelectionAll, c.Resolver.FrameSelection)
	}
	if c.Resolver.VideoFrameOffset < 0 {
		return fmt.Errorf("VIDEO_FRAME_OFFSET must not be negative, got %v", c.Resolver.VideoFrameOffset)
	}
	return nil
}
