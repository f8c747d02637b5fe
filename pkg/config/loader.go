package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "APP")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	l.setDefaults(v, defaults)

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	// Environment variables override file config through explicit bindings.
	v.SetEnvPrefix(l.envPrefix)
	l.bindLegacyEnvVars()
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	// Router
	v.BindEnv("router_type", l.prefixedEnv("ROUTER_TYPE"))
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))

	// Management
	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))
	v.BindEnv("management.read_timeout", l.prefixedEnv("MGMT_READ_TIMEOUT"))
	v.BindEnv("management.write_timeout", l.prefixedEnv("MGMT_WRITE_TIMEOUT"))
	v.BindEnv("management.tls_cert_file", l.prefixedEnv("MGMT_TLS_CERT_FILE"))
	v.BindEnv("management.tls_key_file", l.prefixedEnv("MGMT_TLS_KEY_FILE"))
	v.BindEnv("management.tls_ca_file", l.prefixedEnv("MGMT_TLS_CA_FILE"))

	// Database
	v.BindEnv("database.type", l.prefixedEnv("DB_TYPE"))
	v.BindEnv("database.url", l.prefixedEnv("DB_URL"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_DATABASE_NAME"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DB_QUERY_TIMEOUT"))
	v.BindEnv("database.max_pool_size", l.prefixedEnv("DB_MAX_POOL_SIZE"))

	// Cache
	v.BindEnv("cache.type", l.prefixedEnv("CACHE_TYPE"))
	v.BindEnv("cache.url", l.prefixedEnv("CACHE_URL"))
	v.BindEnv("cache.max_conns", l.prefixedEnv("CACHE_MAX_CONNS"))
	v.BindEnv("cache.operation_timeout", l.prefixedEnv("CACHE_OPERATION_TIMEOUT"))
	v.BindEnv("cache.http.enabled", l.prefixedEnv("CACHE_HTTP_ENABLED"))
	v.BindEnv("cache.http.ttl", l.prefixedEnv("CACHE_HTTP_TTL"))
	v.BindEnv("cache.http.stale_while_revalidate", l.prefixedEnv("CACHE_HTTP_STALE_WHILE_REVALIDATE"))
	v.BindEnv("cache.http.key_prefix", l.prefixedEnv("CACHE_HTTP_KEY_PREFIX"))
	v.BindEnv("cache.http.invalidate_on_write", l.prefixedEnv("CACHE_HTTP_INVALIDATE_ON_WRITE"))

	// EventBus
	v.BindEnv("eventbus.type", l.prefixedEnv("EVENTBUS_TYPE"))
	v.BindEnv("eventbus.topic_prefix", l.prefixedEnv("EVENTBUS_TOPIC_PREFIX"))
	v.BindEnv("eventbus.operation_timeout", l.prefixedEnv("EVENTBUS_OPERATION_TIMEOUT"))
	v.BindEnv("eventbus.brokers", l.prefixedEnv("EVENTBUS_BROKERS"))
	v.BindEnv("eventbus.group_id", l.prefixedEnv("EVENTBUS_GROUP_ID"))
	v.BindEnv("eventbus.url", l.prefixedEnv("EVENTBUS_URL"))
	v.BindEnv("eventbus.exchange", l.prefixedEnv("EVENTBUS_EXCHANGE"))
	v.BindEnv("eventbus.exchange_type", l.prefixedEnv("EVENTBUS_EXCHANGE_TYPE"))
	v.BindEnv("eventbus.queue_name", l.prefixedEnv("EVENTBUS_QUEUE_NAME"))
	v.BindEnv("eventbus.routing_key", l.prefixedEnv("EVENTBUS_ROUTING_KEY"))
	v.BindEnv("eventbus.consumer_tag", l.prefixedEnv("EVENTBUS_CONSUMER_TAG"))
	v.BindEnv("eventbus.region", l.prefixedEnv("EVENTBUS_REGION"))
	v.BindEnv("eventbus.queue_url", l.prefixedEnv("EVENTBUS_QUEUE_URL"))
	v.BindEnv("eventbus.endpoint", l.prefixedEnv("EVENTBUS_ENDPOINT"))
	v.BindEnv("eventbus.access_key_id", l.prefixedEnv("EVENTBUS_ACCESS_KEY_ID"))
	v.BindEnv("eventbus.secret_access_key", l.prefixedEnv("EVENTBUS_SECRET_ACCESS_KEY"))
	v.BindEnv("eventbus.session_token", l.prefixedEnv("EVENTBUS_SESSION_TOKEN"))
	v.BindEnv("eventbus.wait_time_seconds", l.prefixedEnv("EVENTBUS_WAIT_TIME_SECONDS"))
	v.BindEnv("eventbus.max_messages", l.prefixedEnv("EVENTBUS_MAX_MESSAGES"))
	v.BindEnv("eventbus.visibility_timeout", l.prefixedEnv("EVENTBUS_VISIBILITY_TIMEOUT"))

	// Rate limiting
	v.BindEnv("rate_limit.enabled", l.prefixedEnv("RATE_LIMIT_ENABLED"))
	v.BindEnv("rate_limit.type", l.prefixedEnv("RATE_LIMIT_TYPE"))
	v.BindEnv("rate_limit.requests_per_second", l.prefixedEnv("RATE_LIMIT_REQUESTS_PER_SECOND"))
	v.BindEnv("rate_limit.burst", l.prefixedEnv("RATE_LIMIT_BURST"))
	v.BindEnv("rate_limit.window", l.prefixedEnv("RATE_LIMIT_WINDOW"))
	v.BindEnv("rate_limit.redis.url", l.prefixedEnv("RATE_LIMIT_REDIS_URL"))
	v.BindEnv("rate_limit.redis.max_conns", l.prefixedEnv("RATE_LIMIT_REDIS_MAX_CONNS"))
	v.BindEnv("rate_limit.redis.operation_timeout", l.prefixedEnv("RATE_LIMIT_REDIS_OPERATION_TIMEOUT"))
	v.BindEnv("rate_limit.redis.prefix", l.prefixedEnv("RATE_LIMIT_REDIS_PREFIX"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("OBSERVABILITY_LOG_LEVEL"), l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("OBSERVABILITY_LOG_FORMAT"), l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.service_name", l.prefixedEnv("OBSERVABILITY_SERVICE_NAME"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("OBSERVABILITY_TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("OBSERVABILITY_TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("OBSERVABILITY_TRACING_ENDPOINT"))
	v.BindEnv("observability.async_logging.enabled", l.prefixedEnv("OBSERVABILITY_ASYNC_LOGGING_ENABLED"))
	v.BindEnv("observability.async_logging.queue_size", l.prefixedEnv("OBSERVABILITY_ASYNC_LOGGING_QUEUE_SIZE"))
	v.BindEnv("observability.async_logging.worker_count", l.prefixedEnv("OBSERVABILITY_ASYNC_LOGGING_WORKER_COUNT"))
	v.BindEnv("observability.async_logging.drop_when_full", l.prefixedEnv("OBSERVABILITY_ASYNC_LOGGING_DROP_WHEN_FULL"))
	v.BindEnv("observability.request_logging.enabled", l.prefixedEnv("OBSERVABILITY_REQUEST_LOGGING_ENABLED"))
	v.BindEnv("observability.request_logging.log_start", l.prefixedEnv("OBSERVABILITY_REQUEST_LOGGING_LOG_START"))
	v.BindEnv("observability.request_logging.excluded_path_prefixes", l.prefixedEnv("OBSERVABILITY_REQUEST_LOGGING_EXCLUDED_PATH_PREFIXES"))
	v.BindEnv("observability.request_timeout.enabled", l.prefixedEnv("OBSERVABILITY_REQUEST_TIMEOUT_ENABLED"))
	v.BindEnv("observability.request_timeout.default", l.prefixedEnv("OBSERVABILITY_REQUEST_TIMEOUT_DEFAULT"))
	v.BindEnv("observability.request_timeout.excluded_path_prefixes", l.prefixedEnv("OBSERVABILITY_REQUEST_TIMEOUT_EXCLUDED_PATH_PREFIXES"))

	// OpenAPI
	v.BindEnv("openapi.enabled", l.prefixedEnv("OPENAPI_ENABLED"))
	v.BindEnv("openapi.spec_path", l.prefixedEnv("OPENAPI_SPEC_PATH"))
}

// bindLegacyEnvVars maps legacy env vars to current abbreviated names when abbreviated vars are absent.
func (l *ViperLoader) bindLegacyEnvVars() {
	aliases := []struct {
		abbrevSuffix string
		legacySuffix string
	}{
		{"MGMT_ENABLED", "MANAGEMENT_ENABLED"},
		{"MGMT_PORT", "MANAGEMENT_PORT"},
		{"MGMT_READ_TIMEOUT", "MANAGEMENT_READ_TIMEOUT"},
		{"MGMT_WRITE_TIMEOUT", "MANAGEMENT_WRITE_TIMEOUT"},
		{"MGMT_TLS_CERT_FILE", "MANAGEMENT_TLS_CERT_FILE"},
		{"MGMT_TLS_KEY_FILE", "MANAGEMENT_TLS_KEY_FILE"},
		{"MGMT_TLS_CA_FILE", "MANAGEMENT_TLS_CA_FILE"},
		{"DB_TYPE", "DATABASE_TYPE"},
		{"DB_URL", "DATABASE_URL"},
		{"DB_DATABASE_NAME", "DATABASE_DATABASE_NAME"},
		{"DB_CONNECT_TIMEOUT", "DATABASE_CONNECT_TIMEOUT"},
		{"DB_QUERY_TIMEOUT", "DATABASE_QUERY_TIMEOUT"},
		{"DB_MAX_POOL_SIZE", "DATABASE_MAX_POOL_SIZE"},
	}

	for _, alias := range aliases {
		abbrevEnv := l.prefixedEnv(alias.abbrevSuffix)
		if _, hasAbbrev := os.LookupEnv(abbrevEnv); hasAbbrev {
			continue
		}
		if legacyValue, hasLegacy := os.LookupEnv(l.prefixedEnv(alias.legacySuffix)); hasLegacy {
			_ = os.Setenv(abbrevEnv, legacyValue)
		}
	}
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "APP"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	// Router defaults
	v.SetDefault("router_type", cfg.RouterType)
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))
	v.SetDefault("service.environment", cfg.Service.Environment)

	// HTTP defaults
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)

	// Management defaults
	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)
	v.SetDefault("management.read_timeout", cfg.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", cfg.Management.WriteTimeout)
	v.SetDefault("management.tls_cert_file", cfg.Management.TLSCertFile)
	v.SetDefault("management.tls_key_file", cfg.Management.TLSKeyFile)
	v.SetDefault("management.tls_ca_file", cfg.Management.TLSCAFile)

	// Database defaults
	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)
	v.SetDefault("database.max_pool_size", cfg.Database.MaxPoolSize)

	// Cache defaults
	v.SetDefault("cache.type", cfg.Cache.Type)
	v.SetDefault("cache.url", cfg.Cache.URL)
	v.SetDefault("cache.max_conns", cfg.Cache.MaxConns)
	v.SetDefault("cache.operation_timeout", cfg.Cache.OperationTimeout)
	v.SetDefault("cache.http.enabled", cfg.Cache.HTTP.Enabled)
	v.SetDefault("cache.http.ttl", cfg.Cache.HTTP.TTL)
	v.SetDefault("cache.http.stale_while_revalidate", cfg.Cache.HTTP.StaleWhileRevalidate)
	v.SetDefault("cache.http.key_prefix", cfg.Cache.HTTP.KeyPrefix)
	v.SetDefault("cache.http.invalidate_on_write", cfg.Cache.HTTP.InvalidateOnWrite)

	// EventBus defaults
	v.SetDefault("eventbus.type", cfg.EventBus.Type)
	v.SetDefault("eventbus.topic_prefix", cfg.EventBus.TopicPrefix)
	v.SetDefault("eventbus.operation_timeout", cfg.EventBus.OperationTimeout)
	v.SetDefault("eventbus.brokers", cfg.EventBus.Brokers)
	v.SetDefault("eventbus.group_id", cfg.EventBus.GroupID)
	v.SetDefault("eventbus.url", cfg.EventBus.URL)
	v.SetDefault("eventbus.exchange", cfg.EventBus.Exchange)
	v.SetDefault("eventbus.exchange_type", cfg.EventBus.ExchangeType)
	v.SetDefault("eventbus.queue_name", cfg.EventBus.QueueName)
	v.SetDefault("eventbus.routing_key", cfg.EventBus.RoutingKey)
	v.SetDefault("eventbus.consumer_tag", cfg.EventBus.ConsumerTag)
	v.SetDefault("eventbus.region", cfg.EventBus.Region)
	v.SetDefault("eventbus.queue_url", cfg.EventBus.QueueURL)
	v.SetDefault("eventbus.endpoint", cfg.EventBus.Endpoint)
	v.SetDefault("eventbus.wait_time_seconds", cfg.EventBus.WaitTimeSeconds)
	v.SetDefault("eventbus.max_messages", cfg.EventBus.MaxMessages)
	v.SetDefault("eventbus.visibility_timeout", cfg.EventBus.VisibilityTimeout)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.type", cfg.RateLimit.Type)
	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
	v.SetDefault("rate_limit.window", cfg.RateLimit.Window)
	v.SetDefault("rate_limit.redis.max_conns", cfg.RateLimit.Redis.MaxConns)
	v.SetDefault("rate_limit.redis.operation_timeout", cfg.RateLimit.Redis.OperationTimeout)
	v.SetDefault("rate_limit.redis.prefix", cfg.RateLimit.Redis.Prefix)

	// Observability defaults
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.service_name", cfg.Observability.ServiceName)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.async_logging.enabled", cfg.Observability.AsyncLogging.Enabled)
	v.SetDefault("observability.async_logging.queue_size", cfg.Observability.AsyncLogging.QueueSize)
	v.SetDefault("observability.async_logging.worker_count", cfg.Observability.AsyncLogging.WorkerCount)
	v.SetDefault("observability.async_logging.drop_when_full", cfg.Observability.AsyncLogging.DropWhenFull)
	v.SetDefault("observability.request_logging.enabled", cfg.Observability.RequestLogging.Enabled)
	v.SetDefault("observability.request_logging.log_start", cfg.Observability.RequestLogging.LogStart)
	v.SetDefault("observability.request_logging.excluded_path_prefixes", cfg.Observability.RequestLogging.ExcludedPathPrefixes)
	v.SetDefault("observability.request_timeout.enabled", cfg.Observability.RequestTimeout.Enabled)
	v.SetDefault("observability.request_timeout.default", cfg.Observability.RequestTimeout.Default)
	v.SetDefault("observability.request_timeout.excluded_path_prefixes", cfg.Observability.RequestTimeout.ExcludedPathPrefixes)

	// OpenAPI defaults
	v.SetDefault("openapi.enabled", cfg.OpenAPI.Enabled)
	v.SetDefault("openapi.spec_path", cfg.OpenAPI.SpecPath)
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Observability.RequestLogging.ExcludedPathPrefixes = normalizeStringSlice(cfg.Observability.RequestLogging.ExcludedPathPrefixes)
	cfg.Observability.RequestTimeout.ExcludedPathPrefixes = normalizeStringSlice(cfg.Observability.RequestTimeout.ExcludedPathPrefixes)

	validRouterTypes := []string{"nethttp", "gin", "gorilla"}
	if !contains(validRouterTypes, strings.ToLower(cfg.RouterType)) {
		errs = append(errs, fmt.Errorf("invalid router_type: %s (must be one of: %v)", cfg.RouterType, validRouterTypes))
	}

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	// Validate Database configuration
	if cfg.Database.Type != "" {
		if cfg.Database.Type != DatabaseTypeMongoDB {
			errs = append(errs, fmt.Errorf("invalid database.type: %s (must be %s)", cfg.Database.Type, DatabaseTypeMongoDB))
		}
		if cfg.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required when database.type is set"))
		}
		if cfg.Database.DatabaseName == "" {
			errs = append(errs, errors.New("database.database_name is required when database.type is set"))
		}
	}

	// Validate Cache configuration
	validCacheTypes := []string{"", "inmemory", "redis"}
	if !contains(validCacheTypes, cfg.Cache.Type) {
		errs = append(errs, fmt.Errorf("invalid cache.type: %s (must be one of: redis, inmemory)", cfg.Cache.Type))
	}
	if cfg.Cache.Type == "redis" && cfg.Cache.URL == "" {
		errs = append(errs, errors.New("cache.url is required when cache.type is redis"))
	}

	// Validate EventBus configuration
	if cfg.EventBus.Type != "" {
		switch cfg.EventBus.Type {
		case EventBusTypeKafka:
			if len(cfg.EventBus.Brokers) == 0 {
				errs = append(errs, errors.New("eventbus.brokers is required for Kafka"))
			}
		case EventBusTypeRabbitMQ:
			if cfg.EventBus.URL == "" {
				errs = append(errs, errors.New("eventbus.url is required for RabbitMQ"))
			}
		case EventBusTypeSQS:
			if cfg.EventBus.Region == "" {
				errs = append(errs, errors.New("eventbus.region is required for SQS"))
			}
			if cfg.EventBus.QueueURL == "" {
				errs = append(errs, errors.New("eventbus.queue_url is required for SQS"))
			}
		default:
			errs = append(errs, fmt.Errorf("invalid eventbus.type: %s (must be one of: %s, %s, %s)",
				cfg.EventBus.Type, EventBusTypeKafka, EventBusTypeRabbitMQ, EventBusTypeSQS))
		}
	}

	// Validate RateLimit configuration
	if cfg.RateLimit.Enabled {
		validRateTypes := []string{"local", "redis"}
		if !contains(validRateTypes, strings.ToLower(cfg.RateLimit.Type)) {
			errs = append(errs, fmt.Errorf("invalid rate_limit.type: %s (must be one of: %v)", cfg.RateLimit.Type, validRateTypes))
		}
		if strings.ToLower(cfg.RateLimit.Type) == "redis" && cfg.RateLimit.Redis.URL == "" {
			errs = append(errs, errors.New("rate_limit.redis.url is required when rate_limit.type=redis"))
		}
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, errors.New("rate_limit.requests_per_second must be greater than zero when rate limiting is enabled"))
		}
	}

	// Validate Observability configuration
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Observability.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLogLevels))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, cfg.Observability.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validLogFormats))
	}

	if cfg.Observability.TracingEnabled && cfg.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}

	if cfg.Observability.AsyncLogging.Enabled {
		if cfg.Observability.AsyncLogging.QueueSize <= 0 {
			errs = append(errs, errors.New("observability.async_logging.queue_size must be greater than 0 when async logging is enabled"))
		}
		if cfg.Observability.AsyncLogging.WorkerCount <= 0 {
			errs = append(errs, errors.New("observability.async_logging.worker_count must be greater than 0 when async logging is enabled"))
		}
	}

	if cfg.Observability.RequestTimeout.Enabled && cfg.Observability.RequestTimeout.Default <= 0 {
		errs = append(errs, errors.New("observability.request_timeout.default must be greater than zero when request timeout is enabled"))
	}

	// Validate port numbers
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http.port: %d (must be between 1 and 65535)", cfg.HTTP.Port))
	}
	if cfg.Management.Enabled {
		if cfg.Management.Port <= 0 || cfg.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid management.port: %d (must be between 1 and 65535)", cfg.Management.Port))
		}
		if cfg.HTTP.Port == cfg.Management.Port {
			errs = append(errs, errors.New("http.port and management.port must be different"))
		}
		if (cfg.Management.TLSCertFile == "") != (cfg.Management.TLSKeyFile == "") {
			errs = append(errs, errors.New("management.tls_cert_file and management.tls_key_file must be set together"))
		}
		if cfg.Management.TLSCAFile != "" && cfg.Management.TLSCertFile == "" {
			errs = append(errs, errors.New("management.tls_ca_file requires management.tls_cert_file and management.tls_key_file"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// normalizeStringSlice removes empty strings and trims whitespace
func normalizeStringSlice(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
