package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"20s"`
	} `envconfig:""`

	Matching struct {
		RatioCutoff          float64       `envconfig:"MATCH_RATIO_CUTOFF" default:"0.4"`
		FreshnessWindow      time.Duration `envconfig:"MATCH_FRESHNESS_WINDOW" default:"336h"`
		BatchThreshold       int           `envconfig:"MATCH_BATCH_THRESHOLD" default:"5"`
		Workers              int           `envconfig:"MATCH_WORKERS" default:"4"`
		MaxSourceShare       float64       `envconfig:"MATCH_MAX_SOURCE_SHARE" default:"0.6"`
		SourceSwapPenalty    float64       `envconfig:"MATCH_SOURCE_SWAP_PENALTY" default:"5"`
		MinOtherSourceSupply int           `envconfig:"MATCH_MIN_OTHER_SOURCE_SUPPLY" default:"10"`
	} `envconfig:""`

	Lock struct {
		Key string        `envconfig:"MATCH_LOCK_KEY" default:"match_run_lock"`
		TTL time.Duration `envconfig:"MATCH_LOCK_TTL" default:"30s"`
	} `envconfig:""`

	RateLimit struct {
		PerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	} `envconfig:""`

	Queues struct {
		Match   string `envconfig:"MATCH_QUEUE_KEY" default:"match_jobs"`
		Backend string `envconfig:"MATCH_QUEUE_BACKEND" default:"redis"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
