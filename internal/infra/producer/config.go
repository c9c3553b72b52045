package producer

import (
	"errors"
	"time"
)

// Config Kafka producer 設定
type Config struct {
	Brokers []string

	// 生產者配置
	RequiredAcks int
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration

	// 重試
	RetryLimit int
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with default settings
func DefaultConfig(brokers ...string) *Config {
	return &Config{
		Brokers:      brokers,
		RequiredAcks: -1, // 等待所有副本確認
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RetryLimit:   3,
		RetryDelay:   200 * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	if c.RetryLimit < 0 {
		return errors.New("retry limit must not be negative")
	}
	return nil
}
