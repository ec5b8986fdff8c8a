package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang/glog"
	"github.com/joho/godotenv"
)

var loadEnv sync.Once

// Settings is the typed view of the service environment.
type Settings struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"3000"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       []int  `env:"REDIS_DB" envDefault:"0,1" envSeparator:","`

	RabbitMQHost     string `env:"RABBITMQ_HOST" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUser     string `env:"RABBITMQ_USER" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`

	JWTAccessKey    string `env:"JWT_ACCESS_KEY"`
	JWTAccessExpire int    `env:"JWT_ACCESS_EXPIRE" envDefault:"15"`

	// EVENT_MODE selects event log replay on startup: IN_SEND_LOG, IN_SEND, IN, OUT or DISABLE.
	EventMode   string `env:"EVENT_MODE" envDefault:"DISABLE"`
	EventLogDir string `env:"EVENT_LOG_DIR" envDefault:"log"`

	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	PushBuffer   int           `env:"PUSH_BUFFER" envDefault:"64"`

	TranslatorURL     string        `env:"TRANSLATOR_URL" envDefault:"https://api.mymemory.translated.net/get"`
	TranslatorTimeout time.Duration `env:"TRANSLATOR_TIMEOUT" envDefault:"10s"`

	CasbinModel string `env:"CASBIN_MODEL" envDefault:"config/restful_rbac_model.conf"`
}

func dotenv() {
	loadEnv.Do(func() {
		if err := godotenv.Load(); err != nil {
			glog.V(1).Infof("config: no .env file loaded: %v", err)
		}
	})
}

// Config returns the value of a single environment key, loading .env on first use.
func Config(key string) string {
	dotenv()
	return os.Getenv(key)
}

// Load parses the whole environment into Settings.
func Load() (*Settings, error) {
	dotenv()

	settings := new(Settings)
	if err := env.Parse(settings); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return settings, nil
}
