package relayer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/pkg/queue"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/types"
)

// Config holds the relayer tuning knobs.
type Config struct {
	// ChainID is the sequencer chain relayed.
	ChainID string
	// StartHeight is the first height relayed when no cursor exists.
	StartHeight uint64

	// SubmitParallelism is the number of concurrent DA submissions.
	SubmitParallelism int
	// PendingWindow bounds the number of heights dispatched but not yet
	// confirmed.
	PendingWindow int
	// ConfirmationDepth is the number of DA blocks, including the inclusion
	// block, required before a batch counts as confirmed.
	ConfirmationDepth uint64

	// A batch is flushed once it holds BatchMaxHeights heights or
	// BatchInterval after its first height, whichever comes first.
	BatchMaxHeights int
	BatchInterval   time.Duration

	// ConfirmInterval is the DA polling period for submitted batches.
	ConfirmInterval time.Duration
	// SubmitTimeout and ConfirmTimeout bound a single DA call.
	SubmitTimeout  time.Duration
	ConfirmTimeout time.Duration
	// ResubmitAfter resubmits a batch whose DA inclusion is still unconfirmed
	// after this long. Zero disables it.
	ResubmitAfter time.Duration

	// MaxSubmitAttempts caps the submissions of one batch before the relayer
	// halts with ErrSubmissionFailed. Retries back off exponentially from
	// SubmitBackoff up to SubmitMaxBackoff.
	MaxSubmitAttempts uint32
	SubmitBackoff     time.Duration
	SubmitMaxBackoff  time.Duration

	// ShutdownGrace is how long in-flight DA calls may run after shutdown
	// begins.
	ShutdownGrace time.Duration
	// ReadyGrace is how long the sequencer or DA may be in backoff before
	// Ready reports failure.
	ReadyGrace time.Duration

	// OnlyIncludeRollups limits the rollup namespaces written. Empty relays
	// every rollup.
	OnlyIncludeRollups []types.RollupID
	// ValidatorAddress, when set, skips blocks proposed by anyone else.
	ValidatorAddress *types.Address
	// DisableWriting validates and tracks blocks without writing to DA.
	DisableWriting bool
}

// DefaultConfig returns the default relayer settings for chainID.
func DefaultConfig(chainID string) Config {
	return Config{
		ChainID:           chainID,
		StartHeight:       1,
		SubmitParallelism: 4,
		PendingWindow:     16,
		ConfirmationDepth: 1,
		BatchMaxHeights:   1,
		BatchInterval:     time.Second,
		ConfirmInterval:   3 * time.Second,
		SubmitTimeout:     60 * time.Second,
		ConfirmTimeout:    10 * time.Second,
		ResubmitAfter:     10 * time.Minute,
		MaxSubmitAttempts: 10,
		SubmitBackoff:     time.Second,
		SubmitMaxBackoff:  time.Minute,
		ShutdownGrace:     30 * time.Second,
		ReadyGrace:        30 * time.Second,
	}
}

// DAClient is the subset of the DA client used by the relayer.
type DAClient interface {
	Submit(ctx context.Context, blobs []coreda.NamespacedBlob) (coreda.SubmitReceipt, error)
	Confirm(ctx context.Context, daHeight uint64, commitment coreda.Commitment) (coreda.Confirmation, error)
	Commitment(ctx context.Context, blob coreda.NamespacedBlob) (coreda.Commitment, error)
	MaxBlobSize(ctx context.Context) (uint64, error)
	Head(ctx context.Context) (uint64, error)
}

// BlockSource yields sequencer blocks in strictly increasing height order.
type BlockSource interface {
	Next(ctx context.Context) (*types.SequencerBlock, error)
	Close() error
}

// Subscriber opens a block source starting at startHeight.
type Subscriber func(ctx context.Context, startHeight uint64) (BlockSource, error)

// BlockValidator verifies blocks and follows validator set rotation.
type BlockValidator interface {
	Accept(block *types.SequencerBlock) error
	// Resume restores the set trusted at nextHeight, the first height
	// relayed by this run.
	Resume(nextHeight uint64) error
}

// SequencerStatus reports the sequencer connection state for readiness.
type SequencerStatus interface {
	Connected() bool
	InBackoffSince() time.Time
}

// Relayer moves validated sequencer blocks to the DA layer and tracks them
// until they are confirmed at depth.
type Relayer struct {
	cfg       Config
	logger    log.Logger
	metrics   *Metrics
	da        DAClient
	subscribe Subscriber
	validator BlockValidator
	seqStatus SequencerStatus
	cursor    *store.CursorFile
	journal   store.Journal

	sequencerNS types.Namespace
	include     func(types.Namespace) bool
	maxBlobSize int

	window  *semaphore.Weighted
	heights chan *types.HeightRecords
	batches chan *types.Batch
	jobs    *queue.Queue[submitJob]
	results chan submitResult
	// ownerDone is closed when the owner stops consuming results.
	ownerDone chan struct{}

	status         atomic.Pointer[Status]
	started        atomic.Bool
	daReachable    atomic.Bool
	daFailingSince atomic.Int64
}

// Option configures optional relayer collaborators.
type Option func(*Relayer)

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(r *Relayer) { r.metrics = m }
}

// WithSequencerStatus lets readiness follow the sequencer connection.
func WithSequencerStatus(s SequencerStatus) Option {
	return func(r *Relayer) { r.seqStatus = s }
}

// New returns a relayer. Run starts it.
func New(
	cfg Config,
	da DAClient,
	subscribe Subscriber,
	validator BlockValidator,
	cursor *store.CursorFile,
	journal store.Journal,
	logger log.Logger,
	opts ...Option,
) (*Relayer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Relayer{
		cfg:         cfg,
		logger:      logger.With("module", "relayer"),
		metrics:     NopMetrics(),
		da:          da,
		subscribe:   subscribe,
		validator:   validator,
		cursor:      cursor,
		journal:     journal,
		sequencerNS: types.NamespaceFromChainID(cfg.ChainID),
	}
	if len(cfg.OnlyIncludeRollups) > 0 {
		allowed := make(map[types.Namespace]struct{}, len(cfg.OnlyIncludeRollups))
		for _, id := range cfg.OnlyIncludeRollups {
			allowed[id.Namespace()] = struct{}{}
		}
		r.include = func(ns types.Namespace) bool {
			_, ok := allowed[ns]
			return ok
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	r.status.Store(&Status{})
	return r, nil
}

func (cfg Config) validate() error {
	switch {
	case cfg.ChainID == "":
		return errors.New("chain id is required")
	case cfg.StartHeight == 0:
		return errors.New("start height must be positive")
	case cfg.SubmitParallelism <= 0:
		return errors.New("submit parallelism must be positive")
	case cfg.PendingWindow <= 0:
		return errors.New("pending window must be positive")
	case cfg.ConfirmationDepth == 0:
		return errors.New("confirmation depth must be positive")
	case cfg.BatchMaxHeights <= 0:
		return errors.New("batch max heights must be positive")
	case cfg.BatchMaxHeights > cfg.PendingWindow:
		return fmt.Errorf("batch max heights %d exceeds pending window %d", cfg.BatchMaxHeights, cfg.PendingWindow)
	case cfg.BatchInterval <= 0 || cfg.ConfirmInterval <= 0:
		return errors.New("batch and confirm intervals must be positive")
	case cfg.SubmitTimeout <= 0 || cfg.ConfirmTimeout <= 0:
		return errors.New("submit and confirm timeouts must be positive")
	case cfg.MaxSubmitAttempts == 0:
		return errors.New("max submit attempts must be positive")
	}
	return nil
}

// Run relays until ctx is cancelled or a fatal error occurs. On cancellation
// in-flight DA calls get ShutdownGrace to finish and the cursor is flushed
// before Run returns nil.
func (r *Relayer) Run(ctx context.Context) (err error) {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("relayer already started")
	}

	cursor, err := r.loadCursor()
	if err != nil {
		return err
	}
	if err := r.validator.Resume(cursor.LastSubmittedHeight + 1); err != nil {
		return fmt.Errorf("failed to restore validator set: %w", err)
	}

	size, err := r.da.MaxBlobSize(ctx)
	if err != nil {
		return fmt.Errorf("failed to query DA max blob size: %w", err)
	}
	r.markDA(nil)
	r.maxBlobSize = int(min(size, uint64(maxInt)))

	inflight, err := r.recover(ctx, cursor)
	if err != nil {
		return err
	}

	pendingHeights := int(cursor.LastSubmittedHeight - cursor.LastConfirmedHeight)
	window := r.cfg.PendingWindow
	if pendingHeights > window {
		r.logger.Warn("pending heights exceed the configured window, widening it until they retire",
			"pending", pendingHeights, "window", window)
		window = pendingHeights
	}
	r.window = semaphore.NewWeighted(int64(window))
	if pendingHeights > 0 && !r.window.TryAcquire(int64(pendingHeights)) {
		return errors.New("failed to reserve window for pending heights")
	}

	r.heights = make(chan *types.HeightRecords)
	r.batches = make(chan *types.Batch)
	r.jobs = queue.New[submitJob]()
	r.results = make(chan submitResult, r.cfg.SubmitParallelism)
	r.ownerDone = make(chan struct{})

	o := newOwner(r, cursor, inflight)
	o.publish()

	source, err := r.subscribe(ctx, cursor.LastSubmittedHeight+1)
	if err != nil {
		return fmt.Errorf("failed to subscribe to sequencer: %w", err)
	}
	defer func() {
		err = multierr.Append(err, source.Close())
	}()

	writerCtx, stopWriter := context.WithCancel(context.WithoutCancel(ctx))
	writer := store.NewCursorWriter(r.cursor, r.logger)
	writerErr := make(chan error, 1)
	go func() { writerErr <- writer.Run(writerCtx) }()
	defer func() {
		stopWriter()
		err = multierr.Append(err, <-writerErr)
	}()
	o.writer = writer

	g, gctx := errgroup.WithContext(ctx)

	// DA calls in flight at shutdown keep running on graceCtx for up to
	// ShutdownGrace.
	graceCtx, cancelGrace := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelGrace()
	go func() {
		select {
		case <-graceCtx.Done():
			return
		case <-gctx.Done():
		}
		t := time.NewTimer(r.cfg.ShutdownGrace)
		defer t.Stop()
		select {
		case <-graceCtx.Done():
		case <-t.C:
			cancelGrace()
		}
	}()

	var workers sync.WaitGroup
	for i := 0; i < r.cfg.SubmitParallelism; i++ {
		workers.Add(1)
		safeGo(g, fmt.Sprintf("submitter-%d", i), func() error {
			defer workers.Done()
			return r.submitLoop(gctx, graceCtx)
		})
	}
	workersDone := make(chan struct{})
	go func() {
		workers.Wait()
		close(workersDone)
	}()

	safeGo(g, "ingest", func() error { return r.ingestLoop(gctx, source) })
	safeGo(g, "batcher", func() error { return r.batchLoop(gctx) })
	safeGo(g, "owner", func() error {
		defer close(r.ownerDone)
		return o.run(gctx, graceCtx, workersDone)
	})

	r.logger.Info("relayer started",
		"chain_id", r.cfg.ChainID,
		"next_height", cursor.LastSubmittedHeight+1,
		"last_confirmed_height", cursor.LastConfirmedHeight,
		"pending_batches", len(inflight),
		"max_blob_size", r.maxBlobSize,
		"disable_writing", r.cfg.DisableWriting)

	err = g.Wait()
	// Jobs no worker picked up stay journaled and are resubmitted on restart.
	if dropped := r.jobs.Drain(); len(dropped) > 0 {
		r.logger.Info("left queued submissions for the next run", "batches", len(dropped))
	}
	if err != nil {
		r.logger.Error("relayer halted", "error", err)
		return err
	}
	r.logger.Info("relayer stopped")
	return nil
}

const maxInt = int(^uint(0) >> 1)

func (r *Relayer) loadCursor() (*store.Cursor, error) {
	cursor, err := r.cursor.Load()
	switch {
	case errors.Is(err, store.ErrCursorNotFound):
		r.logger.Info("no cursor found, starting fresh", "start_height", r.cfg.StartHeight)
		return store.NewCursor(r.cfg.StartHeight), nil
	case err != nil:
		return nil, err
	}
	r.logger.Info("loaded cursor",
		"last_submitted_height", cursor.LastSubmittedHeight,
		"last_confirmed_height", cursor.LastConfirmedHeight,
		"pending", len(cursor.Pending))
	return cursor, nil
}

// markDA records the outcome of a DA call for readiness.
func (r *Relayer) markDA(err error) {
	if err == nil {
		r.daReachable.Store(true)
		r.daFailingSince.Store(0)
		return
	}
	r.daFailingSince.CompareAndSwap(0, time.Now().UnixNano())
}

// safeGo runs fn in g and turns a panic into a TaskPanicError.
func safeGo(g *errgroup.Group, name string, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = &TaskPanicError{Task: name, Value: p, Stack: debug.Stack()}
			}
		}()
		return fn()
	})
}
