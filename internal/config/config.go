package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

/*
init : 設置 viper watch 與 onConfigChange
read : 一般讀取，使用讀寫鎖
設定檔不存在時只讀環境變數
*/
var configSingleton *ConfigSingleton
var muonce sync.Once

const configFileEnv = "CONFIG_FILE"

type ConfigSingleton struct {
	Config    *Config
	mu        sync.RWMutex
	listeners []func(*Config)
}

// OnChange 設定檔重新載入後呼叫 fn，已取得的 *Config 不會被修改
func OnChange(fn func(*Config)) {
	initConfig()
	configSingleton.mu.Lock()
	defer configSingleton.mu.Unlock()
	configSingleton.listeners = append(configSingleton.listeners, fn)
}

func (s *ConfigSingleton) replace(cf *Config) {
	s.mu.Lock()
	s.Config = cf
	listeners := append([]func(*Config){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cf)
	}
}

type Config struct {
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	DbName               string `mapstructure:"POSTGRES_DB"`
	DbHost               string `mapstructure:"POSTGRES_HOST"`
	DbPort               string `mapstructure:"POSTGRES_PORT"`
	DbUser               string `mapstructure:"POSTGRES_USER"`
	DbPas                string `mapstructure:"POSTGRES_PASSWORD"`
	DbMaxOpenConns       int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DbMaxIdleConns       int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DbLockTimeoutMs      int    `mapstructure:"DB_LOCK_TIMEOUT_MS"`
	DbStatementTimeoutMs int    `mapstructure:"DB_STATEMENT_TIMEOUT_MS"`

	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int    `mapstructure:"REDIS_DB"`
	IdempotencyTTLSec int    `mapstructure:"IDEMPOTENCY_TTL_SEC"`
	RateLimitCapacity int    `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitRatePS   int    `mapstructure:"RATE_LIMIT_RATE_PS"`

	KafkaBrokers         string `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderTopic      string `mapstructure:"KAFKA_ORDER_TOPIC"`
	OutboxPollIntervalMs int    `mapstructure:"OUTBOX_POLL_INTERVAL_MS"`
	OutboxBatchSize      int    `mapstructure:"OUTBOX_BATCH_SIZE"`

	SeedFile string `mapstructure:"SEED_FILE"`
}

var defaults = map[string]any{
	"ENV":                     "dev",
	"LOG_LEVEL":               "info",
	"SERVER_PORT":             "8080",
	"POSTGRES_DB":             "storefront",
	"POSTGRES_HOST":           "localhost",
	"POSTGRES_PORT":           "5432",
	"POSTGRES_USER":           "postgres",
	"POSTGRES_PASSWORD":       "",
	"DB_MAX_OPEN_CONNS":       20,
	"DB_MAX_IDLE_CONNS":       5,
	"DB_LOCK_TIMEOUT_MS":      3000,
	"DB_STATEMENT_TIMEOUT_MS": 10000,
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"IDEMPOTENCY_TTL_SEC":     86400,
	"RATE_LIMIT_CAPACITY":     20,
	"RATE_LIMIT_RATE_PS":      5,
	"KAFKA_BROKERS":           "",
	"KAFKA_ORDER_TOPIC":       "storefront.orders",
	"OUTBOX_POLL_INTERVAL_MS": 500,
	"OUTBOX_BATCH_SIZE":       100,
	"SEED_FILE":               "",
}

func GetConfig() *Config {
	initConfig()
	configSingleton.mu.RLock()
	defer configSingleton.mu.RUnlock()
	return configSingleton.Config
}

func initConfig() {
	muonce.Do(func() {
		configSingleton = &ConfigSingleton{}
		v := viper.New()
		path := configFilePath()

		cf, err := LoadConfig(v, path)
		if err != nil {
			log.Fatalf("error read config: %v", err)
		}
		configSingleton.Config = cf

		if v.ConfigFileUsed() == "" {
			return
		}
		v.OnConfigChange(func(e fsnotify.Event) {
			cf, err := unmarshal(v)
			if err != nil {
				log.Printf("failed to reload config file %s: %v", e.Name, err)
				return
			}
			configSingleton.replace(cf)
		})
		v.WatchConfig()
	})
}

func configFilePath() string {
	if path := os.Getenv(configFileEnv); path != "" {
		return path
	}
	return ".env"
}

// LoadConfig 讀取設定檔與環境變數，環境變數優先
// 單純回傳錯誤，由外部決定要不要 Fatal
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cf := &Config{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, err
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.DbHost == "" || c.DbName == "" {
		errs = append(errs, errors.New("POSTGRES_HOST and POSTGRES_DB are required"))
	}
	if c.DbLockTimeoutMs < 0 || c.DbStatementTimeoutMs < 0 {
		errs = append(errs, errors.New("db timeouts must not be negative"))
	}
	if c.DbMaxOpenConns <= 0 || c.DbMaxIdleConns < 0 || c.DbMaxIdleConns > c.DbMaxOpenConns {
		errs = append(errs, errors.New("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.OutboxPollIntervalMs <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL_MS must be positive"))
	}
	if c.RateLimitCapacity < 0 || c.RateLimitRatePS < 0 {
		errs = append(errs, errors.New("rate limit settings must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.DbLockTimeoutMs) * time.Millisecond
}

func (c *Config) StatementTimeout() time.Duration {
	return time.Duration(c.DbStatementTimeoutMs) * time.Millisecond
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSec) * time.Second
}

func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMs) * time.Millisecond
}

// Brokers KAFKA_BROKERS 以逗號分隔，空字串代表不啟用 kafka
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// RateLimitEnabled 容量或速率為 0 時關閉限流
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitCapacity > 0 && c.RateLimitRatePS > 0
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}
