package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	TransportRedis  = "redis"
	TransportMemory = "memory"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"auction_db"`

	StoreDriver      string `env:"STORE_DRIVER"      envDefault:"postgres" validate:"oneof=postgres memory"`
	OutcomeTransport string `env:"OUTCOME_TRANSPORT" envDefault:"redis"    validate:"oneof=redis memory"`
	// stream consumer name inside each group; empty means the hostname
	ConsumerName string `env:"CONSUMER_NAME"`

	// floor applied to the 5% increment rule
	MinBidIncrement int64 `env:"MIN_BID_INCREMENT" envDefault:"100" validate:"min=1"`

	SweepInterval    time.Duration `env:"SWEEP_INTERVAL"    envDefault:"60s" validate:"min=1s"`
	SweepBatchSize   int           `env:"SWEEP_BATCH_SIZE"  envDefault:"500" validate:"min=1"`
	SweepParallelism int           `env:"SWEEP_PARALLELISM" envDefault:"8"   validate:"min=1,max=256"`
	ResolveLockTTL   time.Duration `env:"RESOLVE_LOCK_TTL"  envDefault:"30s" validate:"min=1s"`

	ReminderLead time.Duration `env:"REMINDER_LEAD" envDefault:"30m" validate:"min=1m"`
	ReminderBand time.Duration `env:"REMINDER_BAND" envDefault:"1m"  validate:"min=1s"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
