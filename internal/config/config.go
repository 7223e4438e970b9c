package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/streamhub/streamhub/internal/env"
	"github.com/streamhub/streamhub/internal/util"
)

const (
	DefaultPort = 19841
	DefaultHost = "localhost"

	DefaultFileWriteDelay = 150 * time.Millisecond // Small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // zero: subscribe connections stream indefinitely
			ShutdownTimeout: 10 * time.Second,
			RequestLimits: ServerRequestLimits{
				MaxBodySize:   10 << 20, // 10MB
				MaxHeaderSize: 64 << 10, // 64KB
			},
			RateLimits: ServerRateLimits{
				GlobalRequestsPerMinute: 1000,
				PerIPRequestsPerMinute:  100,
				BurstSize:               50,
				HealthRequestsPerMinute: 1000,
				CleanupInterval:         5 * time.Minute,
				TrustProxyHeaders:       false,
				TrustedProxyCIDRs: []string{
					"127.0.0.0/8",
					"10.0.0.0/8",
					"172.16.0.0/12",
					"192.168.0.0/16",
				},
			},
		},
		Broker: BrokerConfig{
			MaxChannels:           100000,
			MaxMessagesPerChannel: 20,
			MaxArenaMessages:      1000000,
			MessageTTL:            1 * time.Hour,
			CleanupTTL:            2 * time.Minute,
			MemoryCleanupInterval: 1 * time.Minute,
			BufferCleanupInterval: 1 * time.Minute,
			PingInterval:          30 * time.Second,
			DisconnectInterval:    0, // zero: no forced disconnect timer by default
			WorkerCount:           4,
			AutoCreateChannels:    true,
			Broadcast:             false,
			SSEEnabled:            true,
			ChannelDeletedMessage: "Channel has been deleted",
			PingMessage:           "",
			Templates: []Template{
				{Name: "chunked", Body: "~text~"},
				{Name: "eventsource", Body: "data: ~text~", EventSource: true},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			LogDir:     "",
			FileOutput: false,
			PrettyLogs: true,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Engineering: EngineeringConfig{
			ShowNerdStats: false,
		},
	}
}

// Load loads configuration from file and environment variables.
func Load(onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("STREAMHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("STREAMHUB_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Server.Host = env.GetEnvOrDefault("STREAMHUB_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = env.GetEnvIntOrDefault("STREAMHUB_SERVER_PORT", cfg.Server.Port)
	cfg.Logging.Level = env.GetEnvOrDefault("STREAMHUB_LOGGING_LEVEL", cfg.Logging.Level)
	cfg.Server.RequestLimits.MaxBodySize = int64(env.GetEnvIntOrDefault("STREAMHUB_SERVER_REQUEST_LIMITS_MAX_BODY_SIZE", int(cfg.Server.RequestLimits.MaxBodySize)))

	if err := cfg.parseDerived(); err != nil {
		return nil, err
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return // Ignore rapid-fire duplicate events
			}
			lastReload = now

			// On some platforms this event fires before the file write
			// completes.
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return cfg, nil
}

// parseDerived populates fields computed from raw config values, such as
// parsed CIDR blocks, after unmarshalling.
func (c *Config) parseDerived() error {
	cidrs, err := util.ParseTrustedCIDRs(c.Server.RateLimits.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("invalid trusted_proxy_cidrs: %w", err)
	}
	c.Server.RateLimits.TrustedProxyCIDRsParsed = cidrs
	return nil
}

// Validate checks the config for internally inconsistent values that would
// otherwise surface as a confusing runtime panic or silent misbehaviour.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	if c.Broker.MaxChannels <= 0 {
		return fmt.Errorf("broker.max_channels must be positive")
	}
	if c.Broker.MaxMessagesPerChannel <= 0 {
		return fmt.Errorf("broker.max_messages_per_channel must be positive")
	}
	if c.Broker.WorkerCount <= 0 {
		return fmt.Errorf("broker.worker_count must be positive")
	}
	if len(c.Broker.Templates) == 0 {
		return fmt.Errorf("broker.templates must contain at least one template")
	}
	return nil
}
