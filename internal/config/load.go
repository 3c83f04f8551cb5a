package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/pkg/obis"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "obis2mqtt"

// keys without a default still need a binding so AutomaticEnv values reach Unmarshal
var unsetKeys = []string{
	"obis.url",
	"mqtt.host",
	"mqtt.username",
	"mqtt.password",
	"influx.url",
	"influx.token",
	"influx.org",
	"influx.bucket",
	"http_log",
	"cors_origins",
}

// Load reads defaults, the optional CONFIG_FILE yaml and OBIS2MQTT_* env vars,
// in increasing precedence. Nested keys map to env as OBIS2MQTT_MQTT_HOST.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range unsetKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	// alias PORT => OBIS2MQTT_PORT
	if err := v.BindEnv("port", "OBIS2MQTT_PORT", "PORT"); err != nil {
		return nil, err
	}

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			if err := v.ReadInConfig(); err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = parseLogLevel(v.GetString("log_level"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("obis.timeout_millis", 10000)
	v.SetDefault("obis.poll_interval_millis", 30000)
	v.SetDefault("obis.device_name", domain.DEFAULT_METER_NAME)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.ha_discovery_enable", true)
	v.SetDefault("mqtt.base_topic", "obis2mqtt")
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("influx.enable", false)
	v.SetDefault("port", 8080)
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	case "warn":
		return zapcore.WarnLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// validate checks bounds and normalizes topics in place.
func (cfg *Config) validate() error {
	if err := obis.ValidateURL(cfg.Obis.URL); err != nil {
		return fmt.Errorf("config param obis.url: %w", err)
	}

	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if cfg.Obis.PollIntervalMillis < 1000 {
		return errors.New("config param obis.poll_interval_millis should be >= 1000")
	}
	if cfg.Obis.TimeoutMillis == 0 {
		return errors.New("config param obis.timeout_millis should be > 0")
	}
	if cfg.Influx.Enable && (cfg.Influx.URL == "" || cfg.Influx.Bucket == "") {
		return errors.New("config params influx.url and influx.bucket are required when influx is enabled")
	}
	return nil
}
