package config

import (
	"net"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Broker      BrokerConfig      `yaml:"broker"`
	Logging     LoggingConfig     `yaml:"logging"`
	Engineering EngineeringConfig `yaml:"engineering"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string              `yaml:"host"`
	Port            int                 `yaml:"port"`
	ReadTimeout     time.Duration       `yaml:"read_timeout"`
	WriteTimeout    time.Duration       `yaml:"write_timeout"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
	RequestLimits   ServerRequestLimits `yaml:"request_limits"`
	RateLimits      ServerRateLimits    `yaml:"rate_limits"`
}

// ServerRequestLimits defines request size and validation limits.
type ServerRequestLimits struct {
	MaxBodySize   int64 `yaml:"max_body_size"`
	MaxHeaderSize int64 `yaml:"max_header_size"`
}

// ServerRateLimits defines rate limiting configuration.
type ServerRateLimits struct {
	GlobalRequestsPerMinute int           `yaml:"global_requests_per_minute"`
	PerIPRequestsPerMinute  int           `yaml:"per_ip_requests_per_minute"`
	BurstSize               int           `yaml:"burst_size"`
	HealthRequestsPerMinute int           `yaml:"health_requests_per_minute"`
	CleanupInterval         time.Duration `yaml:"cleanup_interval"`
	TrustProxyHeaders       bool          `yaml:"trust_proxy_headers"`
	TrustedProxyCIDRs       []string      `yaml:"trusted_proxy_cidrs"`

	// TrustedProxyCIDRsParsed is derived from TrustedProxyCIDRs by Load; it is
	// not itself a config source.
	TrustedProxyCIDRsParsed []*net.IPNet `yaml:"-"`
}

// BrokerConfig holds the publish/subscribe broker's tunables - arena sizing,
// message retention, reclamation cadence and the wire templates applied to
// every published message. Field names and units follow spec.md §6.
type BrokerConfig struct {
	MaxChannels           int           `yaml:"max_channels"`
	MaxMessagesPerChannel int           `yaml:"max_messages_per_channel"`
	MaxArenaMessages      int           `yaml:"max_arena_messages"`
	MessageTTL            time.Duration `yaml:"message_ttl"`
	CleanupTTL            time.Duration `yaml:"cleanup_ttl"`
	MemoryCleanupInterval time.Duration `yaml:"memory_cleanup_interval"`
	BufferCleanupInterval time.Duration `yaml:"buffer_cleanup_interval"`
	PingInterval          time.Duration `yaml:"ping_interval"`
	DisconnectInterval    time.Duration `yaml:"disconnect_interval"`
	WorkerCount           int           `yaml:"worker_count"`
	AutoCreateChannels    bool          `yaml:"auto_create_channels"`
	Broadcast             bool          `yaml:"broadcast"`
	SSEEnabled            bool          `yaml:"sse_enabled"`
	ChannelDeletedMessage string        `yaml:"channel_deleted_message"`
	PingMessage           string        `yaml:"ping_message"`
	HeaderTemplate        string        `yaml:"header_template"`
	FooterTemplate        string        `yaml:"footer_template"`
	Templates             []Template    `yaml:"templates"`
}

// Template names one of the message-rendering templates a subscriber can
// select, e.g. a plain chunked template and an eventsource-flavoured one.
type Template struct {
	Name        string `yaml:"name"`
	Body        string `yaml:"body"`
	EventSource bool   `yaml:"eventsource"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	LogDir     string `yaml:"log_dir"`
	FileOutput bool   `yaml:"file_output"`
	PrettyLogs bool   `yaml:"pretty_logs"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// EngineeringConfig holds development/debugging configuration.
type EngineeringConfig struct {
	ShowNerdStats bool `yaml:"show_nerdstats"`
}
