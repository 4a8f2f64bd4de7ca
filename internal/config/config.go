package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/AzizTN01/autorent-back/internal/ledger"
	"github.com/AzizTN01/autorent-back/pkg/config"
	"github.com/AzizTN01/autorent-back/pkg/database"
)

// Storage drivers.
const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Lock drivers.
const (
	LockLocal = "local"
	LockRedis = "redis"
	LockMongo = "mongo"
)

// MongoConfig holds the document store connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// LockConfig selects and tunes the per-car lock.
type LockConfig struct {
	Driver      string
	WaitTimeout time.Duration
	TTL         time.Duration
}

// ServiceConfig holds all configuration for the rental service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	StorageDriver  string
	Mongo          MongoConfig
	DBConfig       database.PostgresConfig
	Redis          database.RedisConfig
	Lock           LockConfig
	Ledger         ledger.Options
	KafkaConfig    config.KafkaConfig
	AllowedOrigins []string
	SweepSpec      string
	MetricsEnabled bool
}

// Load reads configuration from AUTORENT_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("AUTORENT")
	if err != nil {
		return nil, err
	}
	// An empty LIFECYCLE_SWEEP_SPEC disables the sweep.
	v.AllowEmptyEnv(true)
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:          config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:        config.GetAppEnv(v),
		StorageDriver: v.GetString("STORAGE_DRIVER"),
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DATABASE"),
		},
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: database.RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Lock: LockConfig{
			Driver:      v.GetString("LOCK_DRIVER"),
			WaitTimeout: v.GetDuration("LOCK_WAIT_TIMEOUT"),
			TTL:         v.GetDuration("LOCK_TTL"),
		},
		KafkaConfig:    config.LoadKafkaConfig(v),
		AllowedOrigins: config.SplitList(v.GetString("ALLOWED_ORIGINS")),
		SweepSpec:      v.GetString("LIFECYCLE_SWEEP_SPEC"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
	}
	cfg.Ledger = ledger.Options{
		LockWait:     cfg.Lock.WaitTimeout,
		WriteTimeout: v.GetDuration("WRITE_TIMEOUT"),
		MaxRetries:   v.GetInt("VERSION_RETRIES"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("STORAGE_DRIVER", StorageMongo)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "autorent")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "autorent")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_DRIVER", LockLocal)
	v.SetDefault("LOCK_WAIT_TIMEOUT", ledger.DefaultOptions.LockWait)
	v.SetDefault("LOCK_TTL", 30*time.Second)
	v.SetDefault("WRITE_TIMEOUT", ledger.DefaultOptions.WriteTimeout)
	v.SetDefault("VERSION_RETRIES", ledger.DefaultOptions.MaxRetries)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("LIFECYCLE_SWEEP_SPEC", "@every 1m")
	v.SetDefault("METRICS_ENABLED", true)
}

func (c *ServiceConfig) validate() error {
	switch c.StorageDriver {
	case StorageMongo, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.Lock.Driver {
	case LockLocal, LockRedis, LockMongo:
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.Lock.Driver)
	}
	if c.Lock.Driver == LockMongo && c.StorageDriver != StorageMongo {
		return fmt.Errorf("LOCK_DRIVER=mongo requires STORAGE_DRIVER=mongo")
	}
	if c.Lock.TTL <= c.Ledger.WriteTimeout {
		return fmt.Errorf("LOCK_TTL (%s) must exceed WRITE_TIMEOUT (%s)", c.Lock.TTL, c.Ledger.WriteTimeout)
	}
	return nil
}
