package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CHATFLOW"

var defaults = map[string]any{
	"stream_system":           "kinesis",
	"stream_name":             "chat-stream",
	"kafka_brokers":           []string{},
	"kafka_consumer_group":    "chatflow",
	"aws_region":              "us-east-1",
	"aws_access_key_id":       "",
	"aws_secret_access_key":   "",
	"aws_endpoint":            "",
	"publish_policy":          PublishPolicySync,
	"async_publish_timeout":   10 * time.Second,
	"partition_key_algorithm": "sha256",
	"partition_key_length":    16,
	"envelope_id_format":      "uuid",
	"http_port":               3000,
	"request_timeout":         15 * time.Second,
	"metrics_enabled":         false,
	"metrics_port":            9090,
	"alert_on_decode_failure": false,
	"batch_size":              100,
	"batch_linger":            time.Second,
	"log_level":               "info",
}

// aliases are the unprefixed variable names deployments already use.
var aliases = map[string][]string{
	"http_port":             {"PORT"},
	"aws_region":            {"AWS_REGION"},
	"aws_access_key_id":     {"AWS_ACCESS_KEY_ID"},
	"aws_secret_access_key": {"AWS_SECRET_ACCESS_KEY"},
	"stream_name":           {"KINESIS_STREAM_NAME"},
}

// Load reads the configuration from defaults, an optional file at path and the
// environment, in increasing order of precedence. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	for key := range defaults {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(key)}, aliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
