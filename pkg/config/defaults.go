package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDirPerm is the default permissions used when creating directories.
	DefaultDirPerm = 0750

	// DefaultConfigDir is the default directory for configuration files (e.g. relayer.yaml).
	DefaultConfigDir = "config"

	// DefaultDataDir is the default directory for the cursor and the payload journal.
	DefaultDataDir = "data"

	// AppName is the name of the relayer binary and of its default home directory.
	AppName = "sequencer-relayer"

	// Version is the current relayer version
	// Please keep updated with each new release
	Version = "0.1.0"

	// DefaultChainID is the chain ID of a local sequencer devnet
	DefaultChainID = "sequencer-local"
	// DefaultSequencerURL is the default sequencer block subscription endpoint
	DefaultSequencerURL = "ws://localhost:26657/blocks"
	// DefaultDAAddress is the default address for the data availability layer
	DefaultDAAddress = "http://localhost:26658"
	// DefaultLogLevel is the default log level for the application
	DefaultLogLevel = "info"
)

// DefaultRootDir returns the default root directory for the relayer
func DefaultRootDir() string {
	return DefaultRootDirWithName(AppName)
}

// DefaultRootDirWithName returns the default root directory for an application,
// based on the app name and the user's home directory
func DefaultRootDirWithName(appName string) string {
	if appName == "" {
		appName = AppName
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "."+appName)
}

// DefaultConfig keeps default values of Config
var DefaultConfig = Config{
	RootDir: DefaultRootDir(),
	ChainID: DefaultChainID,
	Sequencer: SequencerConfig{
		URL:            DefaultSequencerURL,
		InitialBackoff: DurationWrapper{500 * time.Millisecond},
		MaxBackoff:     DurationWrapper{30 * time.Second},
		MaxElapsed:     DurationWrapper{5 * time.Minute},
		HashCacheSize:  1024,
	},
	DA: DAConfig{
		URL:               DefaultDAAddress,
		AuthToken:         "",
		GasPrice:          -1,
		ConfirmationDepth: 1,
		MaxRetries:        3,
	},
	Relayer: RelayerConfig{
		StartHeight:        1,
		SubmitParallelism:  4,
		PendingWindow:      16,
		CursorPath:         filepath.Join(DefaultDataDir, "cursor.bin"),
		JournalPath:        filepath.Join(DefaultDataDir, "journal"),
		BatchMaxHeights:    1,
		BatchInterval:      DurationWrapper{time.Second},
		ConfirmInterval:    DurationWrapper{3 * time.Second},
		SubmitTimeout:      DurationWrapper{60 * time.Second},
		ConfirmTimeout:     DurationWrapper{10 * time.Second},
		ResubmitAfter:      DurationWrapper{10 * time.Minute},
		MaxSubmitAttempts:  10,
		ShutdownGrace:      DurationWrapper{30 * time.Second},
		ReadyGrace:         DurationWrapper{30 * time.Second},
		ValidatorSetPath:   filepath.Join(DefaultConfigDir, "validator_set.json"),
		ValidatorStatePath: filepath.Join(DefaultDataDir, "validator_state.json"),
		ValidatorAddress:   "",
		OnlyIncludeRollups: []string{},
		DisableWriting:     false,
	},
	API: APIConfig{
		ListenAddress:      "127.0.0.1:2450",
		CORSAllowedOrigins: []string{},
	},
	Instrumentation: DefaultInstrumentationConfig(),
	Log: LogConfig{
		Level:  DefaultLogLevel,
		Format: "text",
		Trace:  false,
	},
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() InstrumentationConfig {
	return InstrumentationConfig{
		Prometheus: false,
		Namespace:  "sequencer_relayer",
	}
}
