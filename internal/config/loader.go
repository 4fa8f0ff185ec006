// Package config loads service settings from config.yaml and TRAVELCMS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/travelcms/internal/db"

	"github.com/spf13/viper"
)

const EnvPrefix = "TRAVELCMS"

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Store       StoreConfig       `mapstructure:"store"`
	Supabase    SupabaseConfig    `mapstructure:"supabase"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Translation TranslationConfig `mapstructure:"translation"`
	Templates   TemplatesConfig   `mapstructure:"templates"`
	Log         LogConfig         `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StoreConfig selects the repository back end: postgres, supabase or memory.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type SupabaseConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig selects how upload jobs are run. Mode is inline or asynq;
// LockDriver is none, memory or redis.
type QueueConfig struct {
	Mode        string        `mapstructure:"mode"`
	Name        string        `mapstructure:"name"`
	Concurrency int           `mapstructure:"concurrency"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	LockDriver  string        `mapstructure:"lock_driver"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

// StorageConfig selects where uploaded files are archived: none, memory or
// minio.
type StorageConfig struct {
	Driver    string `mapstructure:"driver"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
}

type TranslationConfig struct {
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	ImageModel     string        `mapstructure:"image_model"`
	GenerateImages bool          `mapstructure:"generate_images"`
	BatchSize      int           `mapstructure:"batch_size"`
	ChunkDelay     time.Duration `mapstructure:"chunk_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// TemplatesConfig.Dir overrides the embedded template catalog when set.
type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	dbDefaults := db.DefaultConfig()
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)

	v.SetDefault("store.driver", "memory")

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.mode", "inline")
	v.SetDefault("queue.name", "uploads")
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.job_timeout", time.Duration(0))
	v.SetDefault("queue.lock_driver", "memory")
	v.SetDefault("queue.lock_ttl", 30*time.Minute)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "travelcms-uploads")

	v.SetDefault("translation.provider", "none")
	v.SetDefault("translation.base_url", "https://api.openai.com")
	v.SetDefault("translation.api_key", "")
	v.SetDefault("translation.model", "gpt-4o-mini")
	v.SetDefault("translation.image_model", "gpt-image-1")
	v.SetDefault("translation.generate_images", false)
	v.SetDefault("translation.batch_size", 25)
	v.SetDefault("translation.chunk_delay", 500*time.Millisecond)
	v.SetDefault("translation.timeout", 120*time.Second)
	v.SetDefault("translation.max_retries", 2)

	v.SetDefault("templates.dir", "")

	v.SetDefault("log.mode", "development")
}

// Load reads config.yaml from configPath (when present) and applies
// environment overrides such as TRAVELCMS_DATABASE_HOST.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "memory", "postgres":
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return errors.New("supabase store requires supabase.url and supabase.key")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Queue.Mode {
	case "inline", "asynq":
	default:
		return fmt.Errorf("unknown queue mode %q", c.Queue.Mode)
	}
	switch c.Queue.LockDriver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("unknown lock driver %q", c.Queue.LockDriver)
	}
	switch c.Storage.Driver {
	case "none", "memory", "minio":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Translation.Provider {
	case "none":
	case "openai":
		if c.Translation.APIKey == "" {
			return errors.New("openai provider requires translation.api_key")
		}
	default:
		return fmt.Errorf("unknown translation provider %q", c.Translation.Provider)
	}
	return nil
}

// DB converts the database section into a connection config.
func (c Config) DB() db.Config {
	return db.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
		MaxConns: c.Database.MaxConns,
	}
}
