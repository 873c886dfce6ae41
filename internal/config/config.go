// Package config loads the exchange's runtime configuration via viper,
// grounded on how Aidin1998-finalex's fiat service and UmarFarooq-MP-Loki's
// bookkeeper/identities services load configuration: environment
// variables, with an optional .env file as a local-development override,
// and defaults set before the config file is read so every option is
// always populated.
package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// WaitStrategy selects the ring buffer's consumer wait strategy.
type WaitStrategy string

const (
	WaitStrategyBusy     WaitStrategy = "busy"
	WaitStrategyYielding WaitStrategy = "yielding"
	WaitStrategyParking  WaitStrategy = "parking"
)

// Config holds every option the exchange recognizes.
type Config struct {
	DBURL      string
	DBUsername string
	DBPassword string

	InputRingSize  int64
	OutputRingSize int64
	WaitStrategy   WaitStrategy

	BatchSize      int
	BatchTimeoutMs int
	QueueCapacity  int

	KafkaBrokers    []string
	KafkaAuditTopic string

	LogLevel    string
	MetricsAddr string

	HTTPAddr string
}

// Load reads configuration from environment variables (and a local .env
// file if present), applying defaults for anything unset.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("input_ring_size", 1<<20)
	viper.SetDefault("output_ring_size", 1<<20)
	viper.SetDefault("wait_strategy", string(WaitStrategyYielding))
	viper.SetDefault("batch_size", 1000)
	viper.SetDefault("batch_timeout_ms", 100)
	viper.SetDefault("queue_capacity", 100000)
	viper.SetDefault("kafka_brokers", "localhost:9092")
	viper.SetDefault("kafka_audit_topic", "exchange.audit")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("metrics_addr", ":9090")
	viper.SetDefault("http_addr", ":8080")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("config: no .env file found, using environment and defaults: %v", err)
	}

	return &Config{
		DBURL:      viper.GetString("db_url"),
		DBUsername: viper.GetString("db_username"),
		DBPassword: viper.GetString("db_password"),

		InputRingSize:  viper.GetInt64("input_ring_size"),
		OutputRingSize: viper.GetInt64("output_ring_size"),
		WaitStrategy:   WaitStrategy(viper.GetString("wait_strategy")),

		BatchSize:      viper.GetInt("batch_size"),
		BatchTimeoutMs: viper.GetInt("batch_timeout_ms"),
		QueueCapacity:  viper.GetInt("queue_capacity"),

		KafkaBrokers:    viper.GetStringSlice("kafka_brokers"),
		KafkaAuditTopic: viper.GetString("kafka_audit_topic"),

		LogLevel:    viper.GetString("log_level"),
		MetricsAddr: viper.GetString("metrics_addr"),

		HTTPAddr: viper.GetString("http_addr"),
	}
}

// PostgresDSN builds a libpq-style DSN from the loaded configuration.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=exchange sslmode=disable",
		dsnHost(c.DBURL), c.DBUsername, c.DBPassword)
}

func dsnHost(dbURL string) string {
	if dbURL == "" {
		return "localhost"
	}
	return dbURL
}
