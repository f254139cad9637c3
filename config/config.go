/*
Package config loads application configuration.

PURPOSE:
  One Config struct for the whole binary, loaded from an optional YAML
  file with APP_-prefixed environment overrides. Every knob has a
  default so the binary runs with no config file at all - this is a
  single-device application, zero-setup matters.

PRECEDENCE:
  defaults < config file < environment (APP_DB_PATH, APP_HTTP_PORT, ...)
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeoutSec  int      `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int      `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int      `mapstructure:"idle_timeout_sec"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"` // empty disables file rotation
}

type DB struct {
	Driver string `mapstructure:"driver"` // "", "sqlite", "memory"
	Path   string `mapstructure:"path"`
}

type Cache struct {
	MembersTTLSec    int `mapstructure:"members_ttl_sec"`
	ActivitiesTTLSec int `mapstructure:"activities_ttl_sec"`
}

type Import struct {
	BatchSize int `mapstructure:"batch_size"`
	PauseMs   int `mapstructure:"pause_ms"`
}

type Pricing struct {
	SingleSession float64 `mapstructure:"single_session"`
	Sessions13    float64 `mapstructure:"sessions_13"`
	Sessions15    float64 `mapstructure:"sessions_15"`
	Sessions30    float64 `mapstructure:"sessions_30"`
}

type Config struct {
	HTTP    HTTP    `mapstructure:"http"`
	Log     Log     `mapstructure:"log"`
	DB      DB      `mapstructure:"db"`
	Cache   Cache   `mapstructure:"cache"`
	Import  Import  `mapstructure:"import"`
	Pricing Pricing `mapstructure:"pricing"`
}

func (c Cache) MembersTTL() time.Duration {
	return time.Duration(c.MembersTTLSec) * time.Second
}

func (c Cache) ActivitiesTTL() time.Duration {
	return time.Duration(c.ActivitiesTTLSec) * time.Second
}

func (i Import) Pause() time.Duration {
	return time.Duration(i.PauseMs) * time.Millisecond
}

// Load reads configuration. A missing file is not an error; a malformed
// one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.host", "")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout_sec", 15)
	v.SetDefault("http.write_timeout_sec", 15)
	v.SetDefault("http.idle_timeout_sec", 60)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")

	v.SetDefault("db.driver", "")
	v.SetDefault("db.path", "gym.db")

	v.SetDefault("cache.members_ttl_sec", 30)
	v.SetDefault("cache.activities_ttl_sec", 15)

	v.SetDefault("import.batch_size", 10)
	v.SetDefault("import.pause_ms", 100)

	v.SetDefault("pricing.single_session", 200)
	v.SetDefault("pricing.sessions_13", 1500)
	v.SetDefault("pricing.sessions_15", 1800)
	v.SetDefault("pricing.sessions_30", 1800)

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
