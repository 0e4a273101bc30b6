// Package config defines all configuration for the arbitrage engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via CEXARB_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cexarb/pkg/domain"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Exchanges   map[string]ExchangeConfig `mapstructure:"exchanges"`
	Scheduler   SchedulerConfig           `mapstructure:"scheduler"`
	Persistence PersistenceConfig         `mapstructure:"persistence"`
	Logging     LoggingConfig             `mapstructure:"logging"`
	Admin       AdminConfig               `mapstructure:"admin"`
}

// CredentialsConfig holds the API key pair used for private REST/WS auth.
type CredentialsConfig struct {
	ApiKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// NetworkConfig tunes REST client timeouts and retry behavior.
type NetworkConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// RateLimitConfig tunes the nested global+endpoint token-bucket limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             float64 `mapstructure:"burst"`
	GlobalConcurrency int     `mapstructure:"global_concurrency"`
}

// WebsocketConfig tunes the reconnecting WS client.
type WebsocketConfig struct {
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	ReconnectBackoff     float64       `mapstructure:"reconnect_backoff"`
	MaxReconnectDelay    time.Duration `mapstructure:"max_reconnect_delay"`
	MaxMessageSize       int64         `mapstructure:"max_message_size"`
	MaxQueueSize         int           `mapstructure:"max_queue_size"`
	EnableCompression    bool          `mapstructure:"enable_compression"`
}

// ExchangeConfig is the per-exchange collaborator contract from spec §6.2.
type ExchangeConfig struct {
	Name          string             `mapstructure:"name"`
	BaseURL       string             `mapstructure:"base_url"`
	WebsocketURL  string             `mapstructure:"websocket_url"`
	Credentials   *CredentialsConfig `mapstructure:"credentials"`
	Network       NetworkConfig      `mapstructure:"network"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	Websocket     WebsocketConfig    `mapstructure:"websocket"`
}

// SchedulerConfig tunes the strategy task engine.
type SchedulerConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	TaskErrorBackoff time.Duration `mapstructure:"task_error_backoff"`
	StopGracePeriod  time.Duration `mapstructure:"stop_grace_period"`
}

// PersistenceConfig sets where task contexts are persisted (JSON files).
type PersistenceConfig struct {
	DataDir       string        `mapstructure:"data_dir"`
	SchemaVersion int           `mapstructure:"schema_version"`
	MaxContextAge time.Duration `mapstructure:"max_context_age"`
	RecoverOnBoot bool          `mapstructure:"recover_on_boot"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AdminConfig controls the read-only observability HTTP+WS server.
type AdminConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars of the form CEXARB_<EXCHANGE>_API_KEY and
// CEXARB_<EXCHANGE>_SECRET_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CEXARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for name, ex := range cfg.Exchanges {
		envPrefix := "CEXARB_" + strings.ToUpper(name) + "_"
		if key := os.Getenv(envPrefix + "API_KEY"); key != "" {
			if ex.Credentials == nil {
				ex.Credentials = &CredentialsConfig{}
			}
			ex.Credentials.ApiKey = key
		}
		if secret := os.Getenv(envPrefix + "SECRET_KEY"); secret != "" {
			if ex.Credentials == nil {
				ex.Credentials = &CredentialsConfig{}
			}
			ex.Credentials.SecretKey = secret
		}
		cfg.Exchanges[name] = ex
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("at least one entry under exchanges is required")
	}
	for name, ex := range c.Exchanges {
		if ex.BaseURL == "" {
			return fmt.Errorf("exchanges.%s.base_url is required", name)
		}
		if ex.WebsocketURL == "" {
			return fmt.Errorf("exchanges.%s.websocket_url is required", name)
		}
		if ex.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("exchanges.%s.rate_limit.requests_per_second must be > 0", name)
		}
		switch domain.ExchangeEnum(name) {
		case domain.MexcSpot, domain.GateioSpot, domain.GateioFutures:
		default:
			return fmt.Errorf("exchanges.%s is not a recognized exchange tag", name)
		}
	}
	if c.Persistence.DataDir == "" {
		return fmt.Errorf("persistence.data_dir is required")
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be > 0")
	}
	return nil
}
