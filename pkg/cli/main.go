package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"syscall"
	"time"

	cliopenapi "github.com/crudkit/crudkit/pkg/cli/openapi"
	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/crud"
	crudmongo "github.com/crudkit/crudkit/pkg/crud/mongodb"
	busfactory "github.com/crudkit/crudkit/pkg/eventbus/factory"
	"github.com/crudkit/crudkit/pkg/health"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/observability/metrics"
	"github.com/crudkit/crudkit/pkg/schema"
	"github.com/crudkit/crudkit/pkg/server"
	storemongo "github.com/crudkit/crudkit/pkg/store/mongodb"
	storeredis "github.com/crudkit/crudkit/pkg/store/redis"
	"github.com/crudkit/crudkit/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	policiesAnnotationPrefix = "policies."
	defaultPolicyContext     = "run"

	defaultIndexTimeout = 30 * time.Second
)

// CommandPolicy defines the supported command policy values.
type CommandPolicy string

const (
	PolicyAlways      CommandPolicy = "always"
	PolicyNever       CommandPolicy = "never"
	PolicyOnce        CommandPolicy = "once"
	PolicyMigration   CommandPolicy = "migration"
	PolicyRun         CommandPolicy = "run"
	PolicyManual      CommandPolicy = "manual"
	PolicyOnDemand    CommandPolicy = "on_demand"
	PolicyScheduled   CommandPolicy = "scheduled"
	PolicyConditional CommandPolicy = "conditional"
)

// ServiceCommandOptions describes the data service the CLI fronts.
type ServiceCommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	// Optional: called with the resolved path to the configuration file after flags are parsed.
	ConfigPathResolved func(string)
	EnvPrefix          string

	// Optional: config extensions to load alongside core config.
	ConfigExtensions []any

	// Models are the descriptors the service exposes. They drive the serve,
	// indexes and openapi commands.
	Models []crud.Descriptor

	// Optional: replaces the built-in server assembly of the serve command.
	RunServer func(ctx context.Context, cfg *config.Config, log logger.Logger) error

	// Optional: custom config validation (runs after the built-in validation)
	ValidateConfig func(cfg *config.Config) error

	// Optional: additional custom commands
	CustomCommands []*cobra.Command

	// Optional: run before the servers accept traffic and after they stop.
	StartupHooks  []server.LifecycleHook
	ShutdownHooks []server.LifecycleHook
}

// NewServiceCommand creates a standardized CLI with serve, indexes, openapi,
// version, healthcheck, and config subcommands.
func NewServiceCommand(opts ServiceCommandOptions) *cobra.Command {
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "APP"
	}

	rootCmd := &cobra.Command{
		Use:   opts.Name,
		Short: opts.Description,
	}
	SetCommandPolicies(rootCmd, map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})

	var cfgPath string
	var secretFilePath string
	var serviceNameOverride string
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&secretFilePath, "secret-file", "", "path to secrets file (sets APP_SECRETS_FILE)")
	rootCmd.PersistentFlags().StringVar(&serviceNameOverride, "service-name", "", "service name override")

	loadConfig := func(flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
		if opts.ConfigPathResolved != nil {
			opts.ConfigPathResolved(cfgPath)
		}
		return LoadConfigAndLogger(
			cfgPath,
			opts.EnvPrefix,
			secretFilePath,
			opts.ValidateConfig,
			flags,
			opts.ConfigExtensions,
			opts.Name,
			serviceNameOverride,
		)
	}

	for _, ext := range opts.ConfigExtensions {
		if err := config.RegisterFlagsFromStruct(rootCmd.PersistentFlags(), ext); err != nil {
			fmt.Fprintf(os.Stderr, "failed to register config flags: %v\n", err)
			os.Exit(1)
		}
	}

	// version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(opts.Name)
			fmt.Printf("Service:    %s\n", info.Service)
			fmt.Printf("Version:    %s\n", info.Version)
			fmt.Printf("Commit:     %s\n", info.Commit)
			fmt.Printf("Build Time: %s\n", info.BuildTime)
		},
	})
	SetCommandPolicies(rootCmd.Commands()[len(rootCmd.Commands())-1], map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})

	// serve command
	if opts.RunServer != nil || len(opts.Models) > 0 {
		serveCmd := &cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP servers",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig(cmd.Flags())
				if err != nil {
					return err
				}
				if opts.RunServer != nil {
					return opts.RunServer(cmd.Context(), cfg, log)
				}
				return runDataService(cmd.Context(), cfg, log, opts)
			},
		}
		SetCommandPolicies(serveCmd, map[string]CommandPolicy{defaultPolicyContext: PolicyRun})
		rootCmd.AddCommand(serveCmd)
		rootCmd.RunE = serveCmd.RunE
	}

	// indexes command
	if len(opts.Models) > 0 {
		var indexTimeout time.Duration
		indexesCmd := &cobra.Command{
			Use:   "indexes",
			Short: "Ensure unique indexes for the registered models",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig(cmd.Flags())
				if err != nil {
					return err
				}
				return runEnsureIndexes(cmd.Context(), cfg, log, opts.Models, indexTimeout)
			},
		}
		SetCommandPolicies(indexesCmd, map[string]CommandPolicy{"migration": PolicyMigration})
		indexesCmd.Flags().DurationVar(&indexTimeout, "timeout", defaultIndexTimeout, "overall timeout for index creation")
		rootCmd.AddCommand(indexesCmd)
	}

	// healthcheck command
	healthcheckCmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to the configured dependencies (database, cache, eventbus)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runHealthcheck(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	}
	SetCommandPolicies(healthcheckCmd, map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})
	rootCmd.AddCommand(healthcheckCmd)

	// config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	SetCommandPolicies(configCmd, map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applySecretFileFlag(opts.EnvPrefix, secretFilePath); err != nil {
				return err
			}
			if opts.ConfigPathResolved != nil {
				opts.ConfigPathResolved(cfgPath)
			}
			cfg := &config.Config{}
			provider := config.NewConfigProvider(cfgPath, opts.EnvPrefix).
				WithServiceNameDefault(opts.Name).
				WithFlags(cmd.Flags())
			// Load runs the built-in validation; a config that loads is valid.
			if _, err := provider.LoadWithSecrets(cfg, opts.ConfigExtensions...); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyResolvedServiceName(cfg, opts.Name, serviceNameOverride)
			if opts.ValidateConfig != nil {
				if err := opts.ValidateConfig(cfg); err != nil {
					return fmt.Errorf("custom validation failed: %w", err)
				}
			}
			fmt.Println("✓ Configuration is valid")
			return nil
		},
	})
	SetCommandPolicies(configCmd.Commands()[len(configCmd.Commands())-1], map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applySecretFileFlag(opts.EnvPrefix, secretFilePath); err != nil {
				return err
			}
			if opts.ConfigPathResolved != nil {
				opts.ConfigPathResolved(cfgPath)
			}
			cfg := &config.Config{}
			provider := config.NewConfigProvider(cfgPath, opts.EnvPrefix).
				WithServiceNameDefault(opts.Name).
				WithFlags(cmd.Flags())
			secrets, err := provider.LoadWithSecrets(cfg, opts.ConfigExtensions...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyResolvedServiceName(cfg, opts.Name, serviceNameOverride)

			settings := provider.AllSettings()
			settings = setServiceNameSetting(settings, cfg.Service.Name)
			if !showSecrets {
				settings = redactSettingsMap(settings, secrets)
			}
			formatted, err := formatSettings(settings)
			if err != nil {
				return err
			}
			fmt.Print(formatted)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	SetCommandPolicies(showCmd, map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})
	configCmd.AddCommand(showCmd)

	rootCmd.AddCommand(configCmd)

	// openapi command (requires models)
	if openAPICmd := cliopenapi.NewCommand(cliopenapi.CommandOptions{
		Models:         opts.Models,
		LoadConfig:     loadConfig,
		ServiceName:    opts.Name,
		ServiceVersion: version.Current(opts.Name).Version,
	}); openAPICmd != nil {
		SetCommandPolicies(openAPICmd, map[string]CommandPolicy{defaultPolicyContext: PolicyOnDemand})
		for _, subcommand := range openAPICmd.Commands() {
			SetCommandPolicies(subcommand, map[string]CommandPolicy{defaultPolicyContext: PolicyOnDemand})
		}
		rootCmd.AddCommand(openAPICmd)
	}

	// Add custom service-specific commands
	for _, customCmd := range opts.CustomCommands {
		ensureDefaultPolicy(customCmd)
		rootCmd.AddCommand(customCmd)
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = false
	rootCmd.InitDefaultCompletionCmd()
	for _, subCmd := range rootCmd.Commands() {
		if subCmd != nil && subCmd.Name() == "completion" {
			SetCommandPolicies(subCmd, map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})
			break
		}
	}

	return rootCmd
}

// runDataService assembles the data service from config and runs it until
// the context is canceled or a signal arrives. Dependencies opened here are
// released through shutdown hooks so they outlive in-flight requests.
func runDataService(ctx context.Context, cfg *config.Config, log logger.Logger, opts ServiceCommandOptions) error {
	registry, err := newModelRegistry(opts.Models)
	if err != nil {
		return err
	}

	adapter, err := openDocumentStore(cfg, log)
	if err != nil {
		return err
	}

	sink, bus, err := busfactory.NewChangeSink(cfg.EventBus, cfg.Service.Name, log)
	if err != nil {
		closeQuietly(log, "document store", adapter.Close)
		return fmt.Errorf("connect event bus: %w", err)
	}
	closeDeps := func() {
		if bus != nil {
			closeQuietly(log, "event bus", bus.Close)
		}
		closeQuietly(log, "document store", adapter.Close)
	}

	store, err := crudmongo.NewStore(adapter, log)
	if err != nil {
		closeDeps()
		return fmt.Errorf("create store: %w", err)
	}

	serviceOpts := crud.ServiceOptions{
		Registry:  registry,
		Validator: schema.NewValidator(),
		Metrics:   metrics.NewRecorder(),
	}
	if sink != nil {
		serviceOpts.Events = sink
	}
	service, err := crud.NewService(store, log, serviceOpts)
	if err != nil {
		closeDeps()
		return fmt.Errorf("create service: %w", err)
	}

	healthRegistry := health.NewRegistry()
	healthRegistry.Register(health.NewDatabaseChecker("mongodb", adapter))
	if bus != nil {
		healthRegistry.Register(health.NewBrokerChecker("eventbus", bus))
	}

	shutdownHooks := append([]server.LifecycleHook{}, opts.ShutdownHooks...)
	if bus != nil {
		shutdownHooks = append(shutdownHooks, server.LifecycleHook{
			Name: "eventbus",
			Fn:   func(context.Context) error { return bus.Close() },
		})
	}
	shutdownHooks = append(shutdownHooks, server.LifecycleHook{
		Name: "document-store",
		Fn:   func(context.Context) error { return adapter.Close() },
	})

	runOpts := &server.RunHTTPServersOptions{
		Config:         cfg,
		Logger:         log,
		Registry:       registry,
		Service:        service,
		HealthRegistry: healthRegistry,
		StartupHooks:   opts.StartupHooks,
		ShutdownHooks:  shutdownHooks,
	}
	servers, err := server.BuildHTTPServers(runOpts)
	if err != nil {
		closeDeps()
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.RunHTTPServers(runCtx, servers, runOpts)
}

// runEnsureIndexes materializes the unique keys of every model as store
// indexes. Collections without unique keys are skipped.
func runEnsureIndexes(ctx context.Context, cfg *config.Config, log logger.Logger, models []crud.Descriptor, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultIndexTimeout
	}

	adapter, err := openDocumentStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "document store", adapter.Close)

	store, err := crudmongo.NewStore(adapter, log)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, desc := range models {
		names, err := store.EnsureDescriptorIndexes(opCtx, desc)
		if err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", desc.Collection, err)
		}
		if len(names) == 0 {
			log.Info("no unique keys declared", "collection", desc.Collection)
			continue
		}
		log.Info("indexes ensured", "collection", desc.Collection, "indexes", strings.Join(names, ", "))
	}
	return nil
}

// runHealthcheck dials every dependency named in config, runs one aggregated
// health check and prints one line per dependency. Dependencies that cannot
// be dialed are reported alongside the probe results instead of aborting the
// command, so a single outage never hides the state of the others.
func runHealthcheck(ctx context.Context, cfg *config.Config, log logger.Logger, out io.Writer) error {
	registry := health.NewRegistry()
	var closers []func() error
	defer func() {
		for _, closeFn := range closers {
			closeQuietly(log, "dependency", closeFn)
		}
	}()

	var dialErrs []error

	if adapter, err := openDocumentStore(cfg, log); err != nil {
		dialErrs = append(dialErrs, fmt.Errorf("mongodb: %w", err))
	} else {
		closers = append(closers, adapter.Close)
		registry.Register(health.NewDatabaseChecker("mongodb", adapter))
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Cache.Type), "redis") && cfg.Cache.URL != "" {
		cacheAdapter, err := storeredis.NewAdapter(storeredis.Config{
			URL:              cfg.Cache.URL,
			MaxConns:         cfg.Cache.MaxConns,
			OperationTimeout: cfg.Cache.OperationTimeout,
		}, log)
		if err != nil {
			dialErrs = append(dialErrs, fmt.Errorf("redis: %w", err))
		} else {
			closers = append(closers, cacheAdapter.Close)
			registry.Register(health.NewCacheChecker("redis", cacheAdapter))
		}
	}

	if strings.TrimSpace(cfg.EventBus.Type) != "" {
		bus, err := busfactory.NewEventBusAdapter(cfg.EventBus, log)
		if err != nil {
			dialErrs = append(dialErrs, fmt.Errorf("eventbus: %w", err))
		} else {
			closers = append(closers, bus.Close)
			registry.Register(health.NewBrokerChecker("eventbus", bus))
		}
	}

	result := registry.Check(ctx)
	for _, check := range result.Checks {
		if check.Error != "" {
			fmt.Fprintf(out, "%s: %s (%s)\n", check.Name, check.Status, check.Error)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", check.Name, check.Status)
	}
	for _, dialErr := range dialErrs {
		fmt.Fprintf(out, "%v\n", dialErr)
	}

	if len(dialErrs) > 0 {
		return fmt.Errorf("dependency connections failed: %w", errors.Join(dialErrs...))
	}
	if !result.IsHealthy() {
		return fmt.Errorf("dependencies are %s", result.Status)
	}
	return nil
}

// newModelRegistry registers every descriptor, failing on the first invalid
// or duplicate one.
func newModelRegistry(models []crud.Descriptor) (*crud.Registry, error) {
	registry := crud.NewRegistry()
	for _, desc := range models {
		if err := registry.Register(desc); err != nil {
			return nil, fmt.Errorf("register model %q: %w", desc.Collection, err)
		}
	}
	return registry, nil
}

// openDocumentStore dials the document database named in config. Only
// MongoDB is supported.
func openDocumentStore(cfg *config.Config, log logger.Logger) (*storemongo.Adapter, error) {
	dbType := strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	if dbType != "" && dbType != config.DatabaseTypeMongoDB {
		return nil, fmt.Errorf("unsupported database.type %q (supported: %s)", cfg.Database.Type, config.DatabaseTypeMongoDB)
	}

	adapter, err := storemongo.NewAdapter(storemongo.Config{
		URL:              cfg.Database.URL,
		Database:         cfg.Database.DatabaseName,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		OperationTimeout: cfg.Database.QueryTimeout,
		MaxPoolSize:      cfg.Database.MaxPoolSize,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}
	return adapter, nil
}

func closeQuietly(log logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Warn("failed to close "+name, "error", err)
	}
}

// SetCommandPolicies stores policies as a map[string]string on command annotations using the "policies." prefix.
func SetCommandPolicies(cmd *cobra.Command, policies map[string]CommandPolicy) {
	if cmd == nil {
		return
	}
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	for _, key := range policyAnnotationKeys(cmd.Annotations) {
		delete(cmd.Annotations, key)
	}
	for context, policy := range policies {
		trimmedContext := strings.TrimSpace(context)
		if trimmedContext == "" {
			continue
		}
		cmd.Annotations[policiesAnnotationPrefix+trimmedContext] = string(policy)
	}
}

// GetCommandPolicies returns command policies from annotations.
func GetCommandPolicies(cmd *cobra.Command) map[string]string {
	out := map[string]string{}
	if cmd == nil {
		return out
	}
	for key, value := range cmd.Annotations {
		if !strings.HasPrefix(key, policiesAnnotationPrefix) {
			continue
		}
		context := strings.TrimPrefix(key, policiesAnnotationPrefix)
		if strings.TrimSpace(context) == "" {
			continue
		}
		out[context] = value
	}
	return out
}

func ensureDefaultPolicy(cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	if len(GetCommandPolicies(cmd)) == 0 {
		SetCommandPolicies(cmd, map[string]CommandPolicy{defaultPolicyContext: PolicyAlways})
	}
}

func policyAnnotationKeys(annotations map[string]string) []string {
	keys := make([]string, 0, len(annotations))
	for key := range annotations {
		if strings.HasPrefix(key, policiesAnnotationPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func LoadConfigAndLogger(
	cfgPath,
	envPrefix,
	secretFilePath string,
	customValidator func(*config.Config) error,
	flags *pflag.FlagSet,
	extensions []any,
	defaultServiceName string,
	serviceNameOverride string,
) (*config.Config, logger.Logger, error) {
	if envPrefix == "" {
		envPrefix = "APP"
	}
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, err
	}
	cfg := &config.Config{}
	provider := config.NewConfigProvider(cfgPath, envPrefix).
		WithServiceNameDefault(defaultServiceName).
		WithFlags(flags)
	secrets, err := provider.LoadWithSecrets(cfg, extensions...)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	applyResolvedServiceName(cfg, defaultServiceName, serviceNameOverride)

	// Custom validation runs after the built-in validation in Load.
	if customValidator != nil {
		if err := customValidator(cfg); err != nil {
			return nil, nil, fmt.Errorf("custom validation failed: %w", err)
		}
	}

	logCfg := logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
	}
	log, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logConfigIfDebug(log, cfg, secrets)
	return cfg, log, nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(resolveEnvPrefix(envPrefix)+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func formatSettings(settings map[string]interface{}) (string, error) {
	if settings == nil {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func redactSettingsMap(settings, secrets map[string]interface{}) map[string]interface{} {
	if len(settings) == 0 || len(secrets) == 0 {
		return settings
	}
	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		mask, ok := secrets[key]
		if !ok {
			out[key] = value
			continue
		}
		out[key] = redactSettingValue(value, mask)
	}
	return out
}

func redactSettingValue(value, mask interface{}) interface{} {
	maskMap, maskIsMap := mask.(map[string]interface{})
	if maskIsMap {
		valueMap, valueIsMap := value.(map[string]interface{})
		if !valueIsMap {
			if shouldRedactSetting(mask) {
				return "***"
			}
			return value
		}
		out := make(map[string]interface{}, len(valueMap))
		for key, item := range valueMap {
			childMask, ok := maskMap[key]
			if !ok {
				out[key] = item
				continue
			}
			out[key] = redactSettingValue(item, childMask)
		}
		return out
	}
	if shouldRedactSetting(mask) {
		return "***"
	}
	return value
}

// shouldRedactSetting treats a non-zero mask value as "this key carries a
// secret". Masks come from the secrets file, which mirrors the config tree.
func shouldRedactSetting(mask interface{}) bool {
	if mask == nil {
		return false
	}
	switch value := mask.(type) {
	case string:
		return strings.TrimSpace(value) != ""
	case bool:
		return value
	case []interface{}:
		return len(value) > 0
	case map[string]interface{}:
		return len(value) > 0
	default:
		return !reflect.ValueOf(mask).IsZero()
	}
}

// Execute runs the command and exits with appropriate code.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// logConfigIfDebug logs the effective configuration at debug level with
// secrets-file values masked, so a debug run never prints credentials.
func logConfigIfDebug(log logger.Logger, cfg *config.Config, secrets map[string]interface{}) {
	if log == nil || cfg == nil {
		return
	}

	if !strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		return
	}

	log.Debug("effective configuration", "config", cfg.Redacted(secrets))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return "APP"
	}
	return strings.ToUpper(trimmed)
}

func applyResolvedServiceName(cfg *config.Config, defaultServiceName, serviceNameOverride string) {
	if cfg == nil {
		return
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, defaultServiceName, serviceNameOverride)
}

func resolveServiceNameValue(currentConfigName, defaultServiceName, serviceNameOverride string) string {
	if override := strings.TrimSpace(serviceNameOverride); override != "" {
		return override
	}
	if configured := strings.TrimSpace(currentConfigName); configured != "" {
		return configured
	}
	if fallback := strings.TrimSpace(defaultServiceName); fallback != "" {
		return fallback
	}
	return "app"
}

func setServiceNameSetting(settings map[string]interface{}, serviceName string) map[string]interface{} {
	if settings == nil {
		settings = map[string]interface{}{}
	}
	service, ok := settings["service"].(map[string]interface{})
	if !ok || service == nil {
		service = map[string]interface{}{}
	}
	service["name"] = serviceName
	settings["service"] = service
	return settings
}
