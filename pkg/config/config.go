package config

import "time"

// Database type constants
const (
	// DatabaseTypeMongoDB represents MongoDB document storage
	DatabaseTypeMongoDB = "mongodb"
)

// Event bus type constants
const (
	// EventBusTypeKafka represents Apache Kafka event bus
	EventBusTypeKafka = "kafka"
	// EventBusTypeRabbitMQ represents RabbitMQ event bus
	EventBusTypeRabbitMQ = "rabbitmq"
	// EventBusTypeSQS represents AWS SQS event bus
	EventBusTypeSQS = "sqs"
)

// Environment constants
const (
	// EnvironmentDevelopment enables developer conveniences such as error
	// stack detail in responses.
	EnvironmentDevelopment = "development"
	// EnvironmentProduction hides internal error detail from responses.
	EnvironmentProduction = "production"
)

// Config is the root configuration structure for a data service.
type Config struct {
	RouterType    string `mapstructure:"router_type"`
	Service       ServiceConfig
	HTTP          HTTPConfig
	Management    ManagementConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	EventBus      EventBusConfig  `mapstructure:"eventbus"`
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
	Observability ObservabilityConfig
	OpenAPI       OpenAPIConfig `mapstructure:"openapi"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// IsProduction reports whether the service runs with production hardening,
// which suppresses error stack detail on the wire.
func (s ServiceConfig) IsProduction() bool {
	return s.Environment == EnvironmentProduction
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ManagementConfig configures the management server serving health probes,
// metrics and the OpenAPI document.
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TLSCertFile  string        `mapstructure:"tls_cert_file"`
	TLSKeyFile   string        `mapstructure:"tls_key_file"`
	TLSCAFile    string        `mapstructure:"tls_ca_file"`
}

// DatabaseConfig configures the document database connection
type DatabaseConfig struct {
	Type           string        `mapstructure:"type"` // mongodb
	URL            string        `mapstructure:"url"`
	DatabaseName   string        `mapstructure:"database_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

// CacheConfig configures cache connections
type CacheConfig struct {
	Type             string          `mapstructure:"type"` // redis, inmemory
	URL              string          `mapstructure:"url"`
	MaxConns         int             `mapstructure:"max_conns"`
	OperationTimeout time.Duration   `mapstructure:"operation_timeout"`
	HTTP             HTTPCacheConfig `mapstructure:"http"`
}

// HTTPCacheConfig configures the GET response cache middleware. The cache
// is keyed per collection route and stays disabled unless switched on.
// InvalidateOnWrite drops a collection's cached reads after a successful
// write to it.
type HTTPCacheConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	TTL                  time.Duration `mapstructure:"ttl"`
	StaleWhileRevalidate time.Duration `mapstructure:"stale_while_revalidate"`
	KeyPrefix            string        `mapstructure:"key_prefix"`
	InvalidateOnWrite    bool          `mapstructure:"invalidate_on_write"`
}

// EventBusConfig configures message broker connections for entity change
// events. An empty Type disables publishing.
type EventBusConfig struct {
	Type              string        `mapstructure:"type"` // kafka, rabbitmq, sqs
	TopicPrefix       string        `mapstructure:"topic_prefix"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	Brokers           []string      `mapstructure:"brokers"`
	GroupID           string        `mapstructure:"group_id"`
	URL               string        `mapstructure:"url"`
	Exchange          string        `mapstructure:"exchange"`
	ExchangeType      string        `mapstructure:"exchange_type"`
	QueueName         string        `mapstructure:"queue_name"`
	RoutingKey        string        `mapstructure:"routing_key"`
	ConsumerTag       string        `mapstructure:"consumer_tag"`
	Region            string        `mapstructure:"region"`
	QueueURL          string        `mapstructure:"queue_url"`
	Endpoint          string        `mapstructure:"endpoint"`
	AccessKeyID       string        `mapstructure:"access_key_id"`
	SecretAccessKey   string        `mapstructure:"secret_access_key"`
	SessionToken      string        `mapstructure:"session_token"`
	WaitTimeSeconds   int32         `mapstructure:"wait_time_seconds"`
	MaxMessages       int32         `mapstructure:"max_messages"`
	VisibilityTimeout int32         `mapstructure:"visibility_timeout"`
}

// RateLimitConfig configures the rate limit middleware.
type RateLimitConfig struct {
	Enabled           bool                 `mapstructure:"enabled"`
	Type              string               `mapstructure:"type"` // local, redis
	RequestsPerSecond int                  `mapstructure:"requests_per_second"`
	Burst             int                  `mapstructure:"burst"`
	Window            time.Duration        `mapstructure:"window"`
	Redis             RateLimitRedisConfig `mapstructure:"redis"`
}

// RateLimitRedisConfig configures the Redis-backed rate limiter backend.
type RateLimitRedisConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	Prefix           string        `mapstructure:"prefix"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string               `mapstructure:"log_level"`
	LogFormat         string               `mapstructure:"log_format"` // json, text
	ServiceName       string               `mapstructure:"service_name"`
	TracingEnabled    bool                 `mapstructure:"tracing_enabled"`
	TracingSampleRate float64              `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string               `mapstructure:"tracing_endpoint"`
	AsyncLogging      AsyncLoggingConfig   `mapstructure:"async_logging"`
	RequestLogging    RequestLoggingConfig `mapstructure:"request_logging"`
	RequestTimeout    RequestTimeoutConfig `mapstructure:"request_timeout"`
	RequestTracing    RequestTracingConfig `mapstructure:"request_tracing"`
}

// AsyncLoggingConfig configures optional asynchronous logger dispatching.
type AsyncLoggingConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	QueueSize    int  `mapstructure:"queue_size"`
	WorkerCount  int  `mapstructure:"worker_count"`
	DropWhenFull bool `mapstructure:"drop_when_full"`
}

// RequestLoggingConfig configures HTTP request logging middleware behavior.
type RequestLoggingConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	LogStart             bool     `mapstructure:"log_start"`
	ExcludedPathPrefixes []string `mapstructure:"excluded_path_prefixes"`
}

// RequestTimeoutConfig configures HTTP timeout middleware behavior.
type RequestTimeoutConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Default              time.Duration `mapstructure:"default"`
	ExcludedPathPrefixes []string      `mapstructure:"excluded_path_prefixes"`
}

// RequestTracingConfig configures the HTTP tracing middleware. It only
// takes effect when tracing itself is enabled.
type RequestTracingConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	ExcludedPathPrefixes []string `mapstructure:"excluded_path_prefixes"`
}

// OpenAPIConfig configures serving of the generated API document.
type OpenAPIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SpecPath string `mapstructure:"spec_path"`
}

// DefaultConfig returns the baseline configuration applied before file and
// environment overrides.
func DefaultConfig() *Config {
	return &Config{
		RouterType: "nethttp",
		Service: ServiceConfig{
			Name:        "data-service",
			Environment: EnvironmentDevelopment,
		},
		HTTP: HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			ConnectTimeout: 5 * time.Second,
			QueryTimeout:   5 * time.Second,
			MaxPoolSize:    100,
		},
		Cache: CacheConfig{
			Type:             "inmemory",
			MaxConns:         10,
			OperationTimeout: 2 * time.Second,
			HTTP: HTTPCacheConfig{
				TTL:               30 * time.Second,
				KeyPrefix:         "http-cache",
				InvalidateOnWrite: true,
			},
		},
		EventBus: EventBusConfig{
			TopicPrefix:       "entity",
			OperationTimeout:  5 * time.Second,
			ExchangeType:      "topic",
			WaitTimeSeconds:   10,
			MaxMessages:       10,
			VisibilityTimeout: 30,
		},
		RateLimit: RateLimitConfig{
			Type:              "local",
			RequestsPerSecond: 100,
			Burst:             50,
			Window:            time.Second,
			Redis: RateLimitRedisConfig{
				MaxConns:         10,
				OperationTimeout: 500 * time.Millisecond,
				Prefix:           "ratelimit",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingSampleRate: 1.0,
			AsyncLogging: AsyncLoggingConfig{
				QueueSize:   1024,
				WorkerCount: 1,
			},
			RequestLogging: RequestLoggingConfig{
				Enabled:              true,
				ExcludedPathPrefixes: []string{"/healthz", "/readyz", "/metrics"},
			},
			RequestTimeout: RequestTimeoutConfig{
				Enabled: true,
				Default: 30 * time.Second,
			},
			RequestTracing: RequestTracingConfig{
				Enabled:              true,
				ExcludedPathPrefixes: []string{"/healthz", "/readyz", "/metrics"},
			},
		},
		OpenAPI: OpenAPIConfig{
			Enabled:  true,
			SpecPath: "/openapi.json",
		},
	}
}
