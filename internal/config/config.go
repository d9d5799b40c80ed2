package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Env                    string `mapstructure:"env"`
	Port                   int    `mapstructure:"port"`
	MetricsPort            int    `mapstructure:"metrics_port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type MongoCfg struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JwtCfg struct {
	Secret string `mapstructure:"secret"`
}

type Config struct {
	App   AppCfg   `mapstructure:"app"`
	Mongo MongoCfg `mapstructure:"mongo"`
	Redis RedisCfg `mapstructure:"redis"`
	Kafka KafkaCfg `mapstructure:"kafka"`
	JWT   JwtCfg   `mapstructure:"jwt"`
	// Derived
	ShutdownTimeout time.Duration
}

func (c *Config) Development() bool { return c.App.Env != "production" }

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8084)
	v.SetDefault("app.metrics_port", 9094)
	v.SetDefault("app.shutdown_timeout_seconds", 10)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.db", "chat")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("kafka.topic", "chat.events")

	// config file is optional, env + defaults are enough
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownTimeoutSeconds) * time.Second
	return &cfg, nil
}
