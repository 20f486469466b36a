package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/da/jsonrpc"
	rollconf "github.com/rollkit/sequencer-relayer/pkg/config"
	"github.com/rollkit/sequencer-relayer/pkg/rpc/server"
	"github.com/rollkit/sequencer-relayer/pkg/sequencer"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/pkg/validator"
	"github.com/rollkit/sequencer-relayer/relayer"
	"github.com/rollkit/sequencer-relayer/types"
)

// ParseConfig is an helper that loads the relayer configuration and validates it.
func ParseConfig(cmd *cobra.Command) (rollconf.Config, error) {
	config, err := rollconf.Load(cmd)
	if err != nil {
		return rollconf.Config{}, fmt.Errorf("failed to load relayer config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return rollconf.Config{}, fmt.Errorf("failed to validate relayer config: %w", err)
	}

	return config, nil
}

// SetupLogger configures and returns a logger based on the provided configuration.
// It applies the following settings from the config:
//   - Log format (text or JSON)
//   - Log level (debug, info, warn, error)
//   - Stack traces for error logs
//
// The returned logger is already configured with the "module" field set to "main".
func SetupLogger(w io.Writer, config rollconf.LogConfig) log.Logger {
	var opts []log.Option

	if config.Format == "json" {
		opts = append(opts, log.OutputJSONOption())
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		// Default to info if parsing fails
		level = zerolog.InfoLevel
	}
	opts = append(opts, log.LevelOption(level), log.TraceOption(config.Trace))

	return log.NewLogger(w, opts...).With("module", "main")
}

// NewRunCmd returns the command that runs the relayer until it is
// interrupted or fails.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"start"},
		Short:   "Relay sequencer blocks to the DA layer",
		Args:    cobra.NoArgs,
		RunE:    RunRelayer,
	}
	rollconf.AddFlags(cmd)
	return cmd
}

// RunRelayer is the RunE of the run command. Root commands use it to default
// to run; they need the flags of rollconf.AddFlags.
func RunRelayer(cmd *cobra.Command, _ []string) error {
	config, err := ParseConfig(cmd)
	if err != nil {
		return err
	}
	logger := SetupLogger(cmd.ErrOrStderr(), config.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return StartRelayer(ctx, logger, config)
}

// StartRelayer wires the sequencer subscription, the DA client, the cursor
// and journal, the relayer and its HTTP API, and runs them until ctx is
// cancelled or one of them fails.
func StartRelayer(ctx context.Context, logger log.Logger, config rollconf.Config) (err error) {
	relayerCfg, err := relayerConfig(config)
	if err != nil {
		return err
	}

	set, err := validator.LoadValidatorSet(config.ValidatorSetFile())
	if err != nil {
		return fmt.Errorf("%w: %w", rollconf.ErrConfigInvalid, err)
	}

	seqCfg := sequencer.DefaultConfig(config.Sequencer.URL)
	seqCfg.InitialBackoff = config.Sequencer.InitialBackoff.Duration
	seqCfg.MaxBackoff = config.Sequencer.MaxBackoff.Duration
	seqCfg.MaxElapsedTime = config.Sequencer.MaxElapsed.Duration
	seqCfg.HashCacheSize = config.Sequencer.HashCacheSize
	seqClient, err := sequencer.NewClient(seqCfg, logger)
	if err != nil {
		return fmt.Errorf("%w: %w", rollconf.ErrConfigInvalid, err)
	}

	rpcClient, err := jsonrpc.NewClient(ctx, logger, config.DA.URL, config.DA.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to create DA client: %w", err)
	}
	defer rpcClient.Close()

	daCfg := coreda.DefaultClientConfig()
	daCfg.GasPrice = config.DA.GasPrice
	daCfg.MaxRetries = config.DA.MaxRetries
	daCfg.ConfirmNamespace = types.NamespaceFromChainID(config.ChainID).Bytes()
	daClient := coreda.NewClient(&rpcClient.DA, logger, daCfg)

	kv, err := store.NewDefaultKVStore(config.RootDir, config.Relayer.JournalPath, "")
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	journal := store.NewJournal(kv)
	defer func() {
		err = multierr.Append(err, journal.Close())
	}()

	metrics := relayer.NopMetrics()
	var gatherer prometheus.Gatherer
	if config.Instrumentation.IsPrometheusEnabled() {
		metrics = relayer.PrometheusMetrics(config.Instrumentation.Namespace, "chain_id", config.ChainID)
		gatherer = prometheus.DefaultGatherer
	}

	subscribe := func(ctx context.Context, startHeight uint64) (relayer.BlockSource, error) {
		stream, err := seqClient.Subscribe(ctx, startHeight)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}

	r, err := relayer.New(
		relayerCfg,
		daClient,
		subscribe,
		validator.New(config.ChainID, set, logger,
			validator.WithSnapshotFile(validator.NewSnapshotFile(config.ValidatorStateFile(), config.ChainID))),
		store.NewCursorFile(config.CursorFilePath()),
		journal,
		logger,
		relayer.WithMetrics(metrics),
		relayer.WithSequencerStatus(seqClient),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", rollconf.ErrConfigInvalid, err)
	}

	api := server.New(server.Config{
		ListenAddress:      config.API.ListenAddress,
		CORSAllowedOrigins: config.API.CORSAllowedOrigins,
		Gatherer:           gatherer,
	}, r, logger)

	logger.Info("starting relayer",
		"chain_id", config.ChainID,
		"sequencer", config.Sequencer.URL,
		"da", config.DA.URL,
		"cursor", config.CursorFilePath(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})
	g.Go(func() error {
		return api.Run(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relayer stopped", "error", err)
		return err
	}
	logger.Info("relayer stopped")
	return nil
}

func relayerConfig(config rollconf.Config) (relayer.Config, error) {
	rc := relayer.DefaultConfig(config.ChainID)
	rc.StartHeight = config.Relayer.StartHeight
	rc.SubmitParallelism = config.Relayer.SubmitParallelism
	rc.PendingWindow = config.Relayer.PendingWindow
	rc.ConfirmationDepth = config.DA.ConfirmationDepth
	rc.BatchMaxHeights = config.Relayer.BatchMaxHeights
	rc.BatchInterval = config.Relayer.BatchInterval.Duration
	rc.ConfirmInterval = config.Relayer.ConfirmInterval.Duration
	rc.SubmitTimeout = config.Relayer.SubmitTimeout.Duration
	rc.ConfirmTimeout = config.Relayer.ConfirmTimeout.Duration
	rc.ResubmitAfter = config.Relayer.ResubmitAfter.Duration
	rc.MaxSubmitAttempts = config.Relayer.MaxSubmitAttempts
	rc.ShutdownGrace = config.Relayer.ShutdownGrace.Duration
	rc.ReadyGrace = config.Relayer.ReadyGrace.Duration
	rc.DisableWriting = config.Relayer.DisableWriting

	for _, id := range config.Relayer.OnlyIncludeRollups {
		rc.OnlyIncludeRollups = append(rc.OnlyIncludeRollups, types.NewRollupID(id))
	}
	if config.Relayer.ValidatorAddress != "" {
		addr, err := types.ParseAddress(config.Relayer.ValidatorAddress)
		if err != nil {
			return rc, fmt.Errorf("%w: %w", rollconf.ErrConfigInvalid, err)
		}
		rc.ValidatorAddress = &addr
	}
	return rc, nil
}
