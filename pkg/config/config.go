package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/rollkit/sequencer-relayer/types"
)

const (
	// Base configuration flags

	// FlagRootDir is a flag for specifying the root directory
	FlagRootDir = "home"
	// FlagChainID is a flag for specifying the sequencer chain ID
	FlagChainID = "chain_id"

	// Sequencer configuration flags

	// FlagSequencerURL is a flag for specifying the sequencer block subscription URL
	FlagSequencerURL = "sequencer.url"
	// FlagSequencerInitialBackoff is a flag for specifying the first reconnect delay
	FlagSequencerInitialBackoff = "sequencer.initial_backoff"
	// FlagSequencerMaxBackoff is a flag for specifying the largest reconnect delay
	FlagSequencerMaxBackoff = "sequencer.max_backoff"
	// FlagSequencerMaxElapsed is a flag for specifying how long to keep reconnecting
	FlagSequencerMaxElapsed = "sequencer.max_elapsed"
	// FlagSequencerHashCacheSize is a flag for specifying how many block hashes are kept for fork detection
	FlagSequencerHashCacheSize = "sequencer.hash_cache_size"

	// Data Availability configuration flags

	// FlagDAURL is a flag for specifying the DA JSON-RPC endpoint
	FlagDAURL = "da.url"
	// FlagDAAuthToken is a flag for specifying the DA auth token
	FlagDAAuthToken = "da.auth_token" // #nosec G101
	// FlagDAGasPrice is a flag for specifying the DA gas price
	FlagDAGasPrice = "da.gas_price"
	// FlagDAConfirmationDepth is a flag for specifying the DA confirmation depth
	FlagDAConfirmationDepth = "da.confirmation_depth"
	// FlagDAMaxRetries is a flag for specifying the retries of a transient DA failure
	FlagDAMaxRetries = "da.max_retries"

	// Relayer configuration flags

	// FlagStartHeight is a flag for specifying the first height relayed on a fresh start
	FlagStartHeight = "relayer.start_height"
	// FlagSubmitParallelism is a flag for specifying the number of concurrent DA submissions
	FlagSubmitParallelism = "relayer.submit_parallelism"
	// FlagPendingWindow is a flag for specifying the maximum heights pending confirmation
	FlagPendingWindow = "relayer.pending_window"
	// FlagCursorPath is a flag for specifying the cursor file path
	FlagCursorPath = "relayer.cursor_path"
	// FlagJournalPath is a flag for specifying the payload journal directory
	FlagJournalPath = "relayer.journal_path"
	// FlagBatchMaxHeights is a flag for specifying the maximum heights per batch
	FlagBatchMaxHeights = "relayer.batch_max_heights"
	// FlagBatchInterval is a flag for specifying how long a partial batch waits
	FlagBatchInterval = "relayer.batch_interval"
	// FlagConfirmInterval is a flag for specifying the DA confirmation poll interval
	FlagConfirmInterval = "relayer.confirm_interval"
	// FlagSubmitTimeout is a flag for specifying the timeout of one submission
	FlagSubmitTimeout = "relayer.submit_timeout"
	// FlagConfirmTimeout is a flag for specifying the timeout of one confirmation query
	FlagConfirmTimeout = "relayer.confirm_timeout"
	// FlagResubmitAfter is a flag for specifying when an unconfirmed batch is resubmitted
	FlagResubmitAfter = "relayer.resubmit_after"
	// FlagMaxSubmitAttempts is a flag for specifying the submit attempts before halting
	FlagMaxSubmitAttempts = "relayer.max_submit_attempts"
	// FlagShutdownGrace is a flag for specifying how long in-flight calls may finish on shutdown
	FlagShutdownGrace = "relayer.shutdown_grace"
	// FlagReadyGrace is a flag for specifying how long a dependency may be in backoff while ready
	FlagReadyGrace = "relayer.ready_grace"
	// FlagValidatorSetPath is a flag for specifying the trusted validator set file
	FlagValidatorSetPath = "relayer.validator_set_path"
	// FlagValidatorStatePath is a flag for specifying where validator set rotations are recorded
	FlagValidatorStatePath = "relayer.validator_state_path"
	// FlagValidatorAddress is a flag for relaying only blocks proposed by this validator
	FlagValidatorAddress = "relayer.validator_address"
	// FlagOnlyIncludeRollups is a flag for limiting the rollups relayed
	FlagOnlyIncludeRollups = "relayer.only_include_rollups"
	// FlagDisableWriting is a flag for validating blocks without writing to DA
	FlagDisableWriting = "relayer.disable_writing"

	// API configuration flags

	// FlagAPIListenAddress is a flag for specifying the API listen address
	FlagAPIListenAddress = "api.listen_address"
	// FlagAPICORSAllowedOrigins is a flag for specifying the CORS allowed origins
	FlagAPICORSAllowedOrigins = "api.cors_allowed_origins"

	// Instrumentation configuration flags

	// FlagPrometheus is a flag for enabling Prometheus metrics
	FlagPrometheus = "instrumentation.prometheus"
	// FlagPrometheusNamespace is a flag for specifying the metrics namespace
	FlagPrometheusNamespace = "instrumentation.namespace"

	// Logging configuration flags

	// FlagLogLevel is a flag for specifying the log level
	FlagLogLevel = "log.level"
	// FlagLogFormat is a flag for specifying the log format
	FlagLogFormat = "log.format"
	// FlagLogTrace is a flag for enabling stack traces in error logs
	FlagLogTrace = "log.trace"
)

// envBindings maps configuration keys to the environment variables that set
// them.
var envBindings = map[string]string{
	FlagChainID:               "CHAIN_ID",
	FlagSequencerURL:          "SEQUENCER_URL",
	FlagDAURL:                 "DA_URL",
	FlagDAAuthToken:           "DA_AUTH_TOKEN",
	FlagDAGasPrice:            "DA_GAS_PRICE",
	FlagDAConfirmationDepth:   "CONFIRMATION_DEPTH",
	FlagStartHeight:           "START_HEIGHT",
	FlagSubmitParallelism:     "SUBMIT_PARALLELISM",
	FlagPendingWindow:         "PENDING_WINDOW",
	FlagCursorPath:            "CURSOR_PATH",
	FlagJournalPath:           "JOURNAL_PATH",
	FlagBatchMaxHeights:       "BATCH_MAX_HEIGHTS",
	FlagBatchInterval:         "BATCH_INTERVAL",
	FlagConfirmInterval:       "CONFIRM_INTERVAL",
	FlagSubmitTimeout:         "SUBMIT_TIMEOUT",
	FlagConfirmTimeout:        "CONFIRM_TIMEOUT",
	FlagResubmitAfter:         "RESUBMIT_AFTER",
	FlagMaxSubmitAttempts:     "MAX_SUBMIT_ATTEMPTS",
	FlagShutdownGrace:         "SHUTDOWN_GRACE",
	FlagReadyGrace:            "READY_GRACE",
	FlagValidatorSetPath:      "VALIDATOR_SET_PATH",
	FlagValidatorStatePath:    "VALIDATOR_STATE_PATH",
	FlagValidatorAddress:      "VALIDATOR_ADDRESS",
	FlagOnlyIncludeRollups:    "ONLY_INCLUDE_ROLLUPS",
	FlagDisableWriting:        "DISABLE_WRITING",
	FlagAPIListenAddress:      "API_LISTEN_ADDRESS",
	FlagAPICORSAllowedOrigins: "API_CORS_ALLOWED_ORIGINS",
	FlagPrometheus:            "PROMETHEUS",
	FlagLogLevel:              "LOG_LEVEL",
	FlagLogFormat:             "LOG_FORMAT",
	FlagLogTrace:              "LOG_TRACE",
}

// ErrConfigInvalid wraps every configuration error.
var ErrConfigInvalid = errors.New("invalid configuration")

// DurationWrapper is a wrapper for time.Duration that implements encoding.TextMarshaler and encoding.TextUnmarshaler
// needed for YAML marshalling/unmarshalling especially for time.Duration
type DurationWrapper struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler to format the duration as text
func (d DurationWrapper) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler to parse the duration from text
func (d *DurationWrapper) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config stores the relayer configuration.
type Config struct {
	// Base configuration
	RootDir string `mapstructure:"-" yaml:"-" comment:"Root directory where relayer files are located"`
	ChainID string `mapstructure:"chain_id" yaml:"chain_id" comment:"Chain ID of the sequencer whose blocks are relayed"`

	// Sequencer connection
	Sequencer SequencerConfig `mapstructure:"sequencer" yaml:"sequencer"`

	// Data availability configuration
	DA DAConfig `mapstructure:"da" yaml:"da"`

	// Relayer pipeline configuration
	Relayer RelayerConfig `mapstructure:"relayer" yaml:"relayer"`

	// HTTP API configuration
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Instrumentation configuration
	Instrumentation InstrumentationConfig `mapstructure:"instrumentation" yaml:"instrumentation"`

	// Logging configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// SequencerConfig contains the sequencer subscription parameters
type SequencerConfig struct {
	URL            string          `mapstructure:"url" yaml:"url" comment:"Websocket URL of the sequencer block subscription (ws:// or wss://)."`
	InitialBackoff DurationWrapper `mapstructure:"initial_backoff" yaml:"initial_backoff" comment:"First delay before reconnecting to the sequencer."`
	MaxBackoff     DurationWrapper `mapstructure:"max_backoff" yaml:"max_backoff" comment:"Largest delay between reconnect attempts."`
	MaxElapsed     DurationWrapper `mapstructure:"max_elapsed" yaml:"max_elapsed" comment:"How long to keep reconnecting before the relayer halts. Zero retries forever."`
	HashCacheSize  int             `mapstructure:"hash_cache_size" yaml:"hash_cache_size" comment:"Recent block hashes remembered to detect a forked chain on re-delivery."`
}

// DAConfig contains all Data Availability configuration parameters
type DAConfig struct {
	URL               string  `mapstructure:"url" yaml:"url" comment:"JSON-RPC endpoint of the data availability layer."`
	AuthToken         string  `mapstructure:"auth_token" yaml:"auth_token" comment:"Authentication token for the data availability layer service."`
	GasPrice          float64 `mapstructure:"gas_price" yaml:"gas_price" comment:"Gas price for blob submissions. Use -1 for automatic gas price determination."`
	ConfirmationDepth uint64  `mapstructure:"confirmation_depth" yaml:"confirmation_depth" comment:"DA blocks, including the inclusion block, required before a batch counts as confirmed."`
	MaxRetries        uint64  `mapstructure:"max_retries" yaml:"max_retries" comment:"Retries of a transient DA failure inside a single call."`
}

// RelayerConfig contains the relay pipeline parameters
type RelayerConfig struct {
	StartHeight        uint64          `mapstructure:"start_height" yaml:"start_height" comment:"First sequencer height relayed when no cursor exists."`
	SubmitParallelism  int             `mapstructure:"submit_parallelism" yaml:"submit_parallelism" comment:"Maximum concurrent DA submissions."`
	PendingWindow      int             `mapstructure:"pending_window" yaml:"pending_window" comment:"Maximum sequencer heights submitted but not yet confirmed. Ingest pauses when the window is full."`
	CursorPath         string          `mapstructure:"cursor_path" yaml:"cursor_path" comment:"Cursor file path. Relative paths are resolved against the root directory."`
	JournalPath        string          `mapstructure:"journal_path" yaml:"journal_path" comment:"Payload journal directory. Relative paths are resolved against the root directory."`
	BatchMaxHeights    int             `mapstructure:"batch_max_heights" yaml:"batch_max_heights" comment:"Maximum sequencer heights packed into one batch."`
	BatchInterval      DurationWrapper `mapstructure:"batch_interval" yaml:"batch_interval" comment:"How long a partial batch waits for more heights."`
	ConfirmInterval    DurationWrapper `mapstructure:"confirm_interval" yaml:"confirm_interval" comment:"Interval between DA confirmation polls."`
	SubmitTimeout      DurationWrapper `mapstructure:"submit_timeout" yaml:"submit_timeout" comment:"Timeout of one DA submission."`
	ConfirmTimeout     DurationWrapper `mapstructure:"confirm_timeout" yaml:"confirm_timeout" comment:"Timeout of one DA confirmation query."`
	ResubmitAfter      DurationWrapper `mapstructure:"resubmit_after" yaml:"resubmit_after" comment:"Resubmit a batch still unconfirmed after this long. Zero disables it."`
	MaxSubmitAttempts  uint32          `mapstructure:"max_submit_attempts" yaml:"max_submit_attempts" comment:"Submit attempts of one batch before the relayer halts."`
	ShutdownGrace      DurationWrapper `mapstructure:"shutdown_grace" yaml:"shutdown_grace" comment:"How long in-flight DA calls may finish on shutdown."`
	ReadyGrace         DurationWrapper `mapstructure:"ready_grace" yaml:"ready_grace" comment:"How long the sequencer or DA connection may be in backoff while still reported ready."`
	ValidatorSetPath   string          `mapstructure:"validator_set_path" yaml:"validator_set_path" comment:"JSON file holding the trusted validator set. Relative paths are resolved against the root directory."`
	ValidatorStatePath string          `mapstructure:"validator_state_path" yaml:"validator_state_path" comment:"File recording validator set rotations. It takes precedence over validator_set_path once written."`
	ValidatorAddress   string          `mapstructure:"validator_address" yaml:"validator_address" comment:"Hex validator address. When set, only blocks proposed by this validator are written."`
	OnlyIncludeRollups []string        `mapstructure:"only_include_rollups" yaml:"only_include_rollups" comment:"Rollup IDs to relay. Empty relays every rollup."`
	DisableWriting     bool            `mapstructure:"disable_writing" yaml:"disable_writing" comment:"Validate and track blocks without writing to the DA layer."`
}

// APIConfig contains the HTTP API parameters
type APIConfig struct {
	ListenAddress      string   `mapstructure:"listen_address" yaml:"listen_address" comment:"Address the health, readiness and cursor API listens on (host:port). Empty disables it."`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins" comment:"Origins allowed to call the API."`
}

// InstrumentationConfig contains the metrics parameters
type InstrumentationConfig struct {
	Prometheus bool   `mapstructure:"prometheus" yaml:"prometheus" comment:"Serve Prometheus metrics on the API under /metrics."`
	Namespace  string `mapstructure:"namespace" yaml:"namespace" comment:"Namespace prefixed to every metric name."`
}

// IsPrometheusEnabled returns true if Prometheus metrics are enabled.
func (cfg *InstrumentationConfig) IsPrometheusEnabled() bool {
	return cfg.Prometheus
}

// LogConfig contains all logging configuration parameters
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" comment:"Log level (debug, info, warn, error)"`
	Format string `mapstructure:"format" yaml:"format" comment:"Log format (text, json)"`
	Trace  bool   `mapstructure:"trace" yaml:"trace" comment:"Enable stack traces in error logs"`
}

// AddGlobalFlags registers the flags shared by every command: logging
// configuration and the root directory.
func AddGlobalFlags(cmd *cobra.Command, appName string) {
	def := DefaultConfig
	cmd.PersistentFlags().String(FlagLogLevel, def.Log.Level, "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String(FlagLogFormat, def.Log.Format, "Set the log format (text, json)")
	cmd.PersistentFlags().Bool(FlagLogTrace, def.Log.Trace, "Enable stack traces in error logs")
	cmd.PersistentFlags().String(FlagRootDir, DefaultRootDirWithName(appName), "Root directory for application data")
}

// AddFlags adds the relayer configuration options to cobra Command.
func AddFlags(cmd *cobra.Command) {
	def := DefaultConfig

	cmd.Flags().String(FlagChainID, def.ChainID, "sequencer chain ID")

	// Sequencer flags
	cmd.Flags().String(FlagSequencerURL, def.Sequencer.URL, "sequencer block subscription URL (ws:// or wss://)")
	cmd.Flags().Duration(FlagSequencerInitialBackoff, def.Sequencer.InitialBackoff.Duration, "first delay before reconnecting to the sequencer")
	cmd.Flags().Duration(FlagSequencerMaxBackoff, def.Sequencer.MaxBackoff.Duration, "largest delay between sequencer reconnect attempts")
	cmd.Flags().Duration(FlagSequencerMaxElapsed, def.Sequencer.MaxElapsed.Duration, "how long to keep reconnecting to the sequencer (0 retries forever)")
	cmd.Flags().Int(FlagSequencerHashCacheSize, def.Sequencer.HashCacheSize, "block hashes remembered for fork detection")

	// Data Availability flags
	cmd.Flags().String(FlagDAURL, def.DA.URL, "DA JSON-RPC endpoint")
	cmd.Flags().String(FlagDAAuthToken, def.DA.AuthToken, "DA auth token")
	cmd.Flags().Float64(FlagDAGasPrice, def.DA.GasPrice, "DA gas price for blob transactions")
	cmd.Flags().Uint64(FlagDAConfirmationDepth, def.DA.ConfirmationDepth, "DA blocks required before a batch counts as confirmed")
	cmd.Flags().Uint64(FlagDAMaxRetries, def.DA.MaxRetries, "retries of a transient DA failure inside a single call")

	// Relayer flags
	cmd.Flags().Uint64(FlagStartHeight, def.Relayer.StartHeight, "first sequencer height relayed when no cursor exists")
	cmd.Flags().Int(FlagSubmitParallelism, def.Relayer.SubmitParallelism, "maximum concurrent DA submissions")
	cmd.Flags().Int(FlagPendingWindow, def.Relayer.PendingWindow, "maximum sequencer heights submitted but not yet confirmed")
	cmd.Flags().String(FlagCursorPath, def.Relayer.CursorPath, "cursor file path")
	cmd.Flags().String(FlagJournalPath, def.Relayer.JournalPath, "payload journal directory")
	cmd.Flags().Int(FlagBatchMaxHeights, def.Relayer.BatchMaxHeights, "maximum sequencer heights per batch")
	cmd.Flags().Duration(FlagBatchInterval, def.Relayer.BatchInterval.Duration, "how long a partial batch waits for more heights")
	cmd.Flags().Duration(FlagConfirmInterval, def.Relayer.ConfirmInterval.Duration, "interval between DA confirmation polls")
	cmd.Flags().Duration(FlagSubmitTimeout, def.Relayer.SubmitTimeout.Duration, "timeout of one DA submission")
	cmd.Flags().Duration(FlagConfirmTimeout, def.Relayer.ConfirmTimeout.Duration, "timeout of one DA confirmation query")
	cmd.Flags().Duration(FlagResubmitAfter, def.Relayer.ResubmitAfter.Duration, "resubmit a batch still unconfirmed after this long (0 disables)")
	cmd.Flags().Uint32(FlagMaxSubmitAttempts, def.Relayer.MaxSubmitAttempts, "submit attempts of one batch before halting")
	cmd.Flags().Duration(FlagShutdownGrace, def.Relayer.ShutdownGrace.Duration, "how long in-flight DA calls may finish on shutdown")
	cmd.Flags().Duration(FlagReadyGrace, def.Relayer.ReadyGrace.Duration, "how long a dependency may be in backoff while ready")
	cmd.Flags().String(FlagValidatorSetPath, def.Relayer.ValidatorSetPath, "trusted validator set JSON file")
	cmd.Flags().String(FlagValidatorStatePath, def.Relayer.ValidatorStatePath, "file recording validator set rotations")
	cmd.Flags().String(FlagValidatorAddress, def.Relayer.ValidatorAddress, "only write blocks proposed by this hex validator address")
	cmd.Flags().StringSlice(FlagOnlyIncludeRollups, def.Relayer.OnlyIncludeRollups, "comma separated rollup IDs to relay (empty relays all)")
	cmd.Flags().Bool(FlagDisableWriting, def.Relayer.DisableWriting, "validate and track blocks without writing to DA")

	// API flags
	cmd.Flags().String(FlagAPIListenAddress, def.API.ListenAddress, "API listen address (host:port)")
	cmd.Flags().StringSlice(FlagAPICORSAllowedOrigins, def.API.CORSAllowedOrigins, "comma separated CORS allowed origins")

	// Instrumentation flags
	cmd.Flags().Bool(FlagPrometheus, def.Instrumentation.Prometheus, "serve Prometheus metrics under /metrics")
	cmd.Flags().String(FlagPrometheusNamespace, def.Instrumentation.Namespace, "metrics namespace")
}

// Load loads the relayer configuration in the following order of precedence:
// 1. DefaultConfig (lowest priority)
// 2. YAML configuration file in the root directory
// 3. Environment variables
// 4. Command line flags (highest priority)
func Load(cmd *cobra.Command) (Config, error) {
	// Create a new Viper instance to avoid conflicts with any global Viper
	v := viper.New()

	config := DefaultConfig
	home, _ := cmd.Flags().GetString(FlagRootDir)
	if home == "" {
		home = DefaultRootDir()
	}
	config.RootDir = home

	v.SetConfigName(ConfigBaseName)
	v.SetConfigType(ConfigExtension)
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) {
			return config, fmt.Errorf("%w: error reading YAML configuration: %w", ErrConfigInvalid, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return config, fmt.Errorf("unable to bind environment variable %s: %w", env, err)
		}
	}

	var flagErrs error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == FlagRootDir {
			return
		}
		flagErrs = multierr.Append(flagErrs, v.BindPFlag(f.Name, f))
	})
	if flagErrs != nil {
		return config, fmt.Errorf("unable to bind flags: %w", flagErrs)
	}

	if err := v.Unmarshal(&config, decoderOptions); err != nil {
		return config, fmt.Errorf("%w: unable to decode configuration: %w", ErrConfigInvalid, err)
	}
	config.RootDir = home
	return config, nil
}

func decoderOptions(c *mapstructure.DecoderConfig) {
	c.TagName = "mapstructure"
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToSliceHookFunc(","),
		func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
			if t == reflect.TypeOf(DurationWrapper{}) && f.Kind() == reflect.String {
				if str, ok := data.(string); ok {
					duration, err := time.ParseDuration(str)
					if err != nil {
						return nil, err
					}
					return DurationWrapper{Duration: duration}, nil
				}
			}
			return data, nil
		},
	)
}

// stringToSliceHookFunc splits comma separated strings like
// mapstructure.StringToSliceHookFunc, but decodes the empty string as an
// empty slice and trims the brackets pflag adds to slice defaults.
func stringToSliceHookFunc(sep string) mapstructure.DecodeHookFuncKind {
	return func(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
		if f != reflect.String || t != reflect.Slice {
			return data, nil
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(data.(string), "["), "]")
		if strings.TrimSpace(raw) == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}

// CursorFilePath returns the absolute cursor file path.
func (c Config) CursorFilePath() string {
	return rootify(c.RootDir, c.Relayer.CursorPath)
}

// JournalDir returns the absolute payload journal directory.
func (c Config) JournalDir() string {
	return rootify(c.RootDir, c.Relayer.JournalPath)
}

// ValidatorSetFile returns the absolute validator set file path.
func (c Config) ValidatorSetFile() string {
	return rootify(c.RootDir, c.Relayer.ValidatorSetPath)
}

// ValidatorStateFile returns the absolute validator rotation record path.
func (c Config) ValidatorStateFile() string {
	return rootify(c.RootDir, c.Relayer.ValidatorStatePath)
}

func rootify(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Validate checks the configuration for values the relayer cannot start with.
// Every returned error wraps ErrConfigInvalid.
func (c *Config) Validate() error {
	var err error
	fail := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	if c.ChainID == "" {
		fail("chain id is required")
	}
	if u, perr := url.Parse(c.Sequencer.URL); perr != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		fail("sequencer url %q must be a ws:// or wss:// URL", c.Sequencer.URL)
	}
	if c.Sequencer.HashCacheSize <= 0 {
		fail("sequencer hash cache size must be positive, got %d", c.Sequencer.HashCacheSize)
	}
	if c.Sequencer.InitialBackoff.Duration <= 0 || c.Sequencer.MaxBackoff.Duration < c.Sequencer.InitialBackoff.Duration {
		fail("sequencer backoff must satisfy 0 < initial_backoff <= max_backoff")
	}
	if c.DA.URL == "" {
		fail("DA url is required")
	}
	if c.DA.ConfirmationDepth == 0 {
		fail("DA confirmation depth must be positive")
	}

	r := c.Relayer
	if r.StartHeight == 0 {
		fail("start height must be positive")
	}
	if r.SubmitParallelism <= 0 {
		fail("submit parallelism must be positive, got %d", r.SubmitParallelism)
	}
	if r.PendingWindow <= 0 {
		fail("pending window must be positive, got %d", r.PendingWindow)
	}
	if r.BatchMaxHeights <= 0 || r.BatchMaxHeights > r.PendingWindow {
		fail("batch max heights must be in [1, %d], got %d", r.PendingWindow, r.BatchMaxHeights)
	}
	if r.CursorPath == "" {
		fail("cursor path is required")
	}
	if r.JournalPath == "" {
		fail("journal path is required")
	}
	if r.BatchInterval.Duration <= 0 || r.ConfirmInterval.Duration <= 0 {
		fail("batch and confirm intervals must be positive")
	}
	if r.SubmitTimeout.Duration <= 0 || r.ConfirmTimeout.Duration <= 0 {
		fail("submit and confirm timeouts must be positive")
	}
	if r.ResubmitAfter.Duration < 0 || r.ShutdownGrace.Duration < 0 || r.ReadyGrace.Duration < 0 {
		fail("durations must not be negative")
	}
	if r.MaxSubmitAttempts == 0 {
		fail("max submit attempts must be positive")
	}
	if r.ValidatorSetPath == "" {
		fail("validator set path is required")
	}
	if r.ValidatorStatePath == "" {
		fail("validator state path is required")
	}
	if r.ValidatorAddress != "" {
		if _, aerr := types.ParseAddress(r.ValidatorAddress); aerr != nil {
			fail("%w", aerr)
		}
	}
	for _, id := range r.OnlyIncludeRollups {
		if id == "" {
			fail("rollup ids must not be empty")
			break
		}
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		fail("log format must be text or json, got %q", c.Log.Format)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}
