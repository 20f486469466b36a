package relayer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/crypto/ed25519"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/pkg/validator"
	"github.com/rollkit/sequencer-relayer/types"
)

const (
	testChainID     = "test-sequencer"
	testMaxBlobSize = 1 << 20
)

// fakeSource feeds blocks pushed by the test.
type fakeSource struct {
	blocks chan *types.SequencerBlock
	errs   chan error
	closed atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		blocks: make(chan *types.SequencerBlock, 64),
		errs:   make(chan error, 1),
	}
}

func (s *fakeSource) Next(ctx context.Context) (*types.SequencerBlock, error) {
	select {
	case b := <-s.blocks:
		return b, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

// recordingDA is an in-memory DA that records every accepted submission.
type recordingDA struct {
	*coreda.DummyDA

	// hook runs before every submission; set it before the relayer starts.
	hook func(ctx context.Context) error

	mu          sync.Mutex
	submissions [][]coreda.Blob
	namespaces  [][][]byte

	active    atomic.Int32
	maxActive atomic.Int32
}

func newRecordingDA(maxBlobSize uint64) *recordingDA {
	return &recordingDA{DummyDA: coreda.NewDummyDA(maxBlobSize, 10*time.Millisecond)}
}

func (d *recordingDA) Submit(ctx context.Context, blobs []coreda.Blob, gasPrice float64, namespaces [][]byte) ([]coreda.ID, error) {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		m := d.maxActive.Load()
		if n <= m || d.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if d.hook != nil {
		if err := d.hook(ctx); err != nil {
			return nil, err
		}
	}
	ids, err := d.DummyDA.Submit(ctx, blobs, gasPrice, namespaces)
	if err == nil {
		d.mu.Lock()
		d.submissions = append(d.submissions, blobs)
		d.namespaces = append(d.namespaces, namespaces)
		d.mu.Unlock()
	}
	return ids, err
}

func (d *recordingDA) submitted() [][]coreda.Blob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]coreda.Blob(nil), d.submissions...)
}

// startTicker advances the DA head every 10ms until the test ends.
func (d *recordingDA) startTicker(t *testing.T) {
	d.StartHeightTicker()
	t.Cleanup(d.StopHeightTicker)
}

type harness struct {
	t       *testing.T
	cfg     Config
	vals    []types.TestValidator
	da      *recordingDA
	cursor  *store.CursorFile
	journal store.Journal
	// snapshots records validator set rotations when set.
	snapshots *validator.SnapshotFile

	src    *fakeSource
	starts []uint64
}

func testRelayerConfig() Config {
	cfg := DefaultConfig(testChainID)
	cfg.BatchInterval = 50 * time.Millisecond
	cfg.ConfirmInterval = 10 * time.Millisecond
	cfg.SubmitTimeout = 5 * time.Second
	cfg.ConfirmTimeout = time.Second
	cfg.SubmitBackoff = 5 * time.Millisecond
	cfg.SubmitMaxBackoff = 20 * time.Millisecond
	cfg.MaxSubmitAttempts = 3
	cfg.ShutdownGrace = 200 * time.Millisecond
	cfg.ResubmitAfter = 0
	return cfg
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:       t,
		cfg:     testRelayerConfig(),
		vals:    types.GenerateValidators(3, 10),
		da:      newRecordingDA(testMaxBlobSize),
		cursor:  store.NewCursorFile(filepath.Join(t.TempDir(), "cursor.bin")),
		journal: store.NewJournal(dssync.MutexWrap(ds.NewMapDatastore())),
	}
}

func (h *harness) validatorSet() *validator.ValidatorSet {
	members := make([]validator.Member, len(h.vals))
	for i, v := range h.vals {
		members[i] = validator.Member{PubKey: v.PrivKey.PubKey().(ed25519.PubKey), Power: v.Power}
	}
	set, err := validator.NewValidatorSet(members)
	require.NoError(h.t, err)
	return set
}

func (h *harness) daClient() *coreda.Client {
	return coreda.NewClient(h.da, log.NewNopLogger(), coreda.ClientConfig{
		GasPrice:         -1,
		ConfirmNamespace: types.NamespaceFromChainID(testChainID).Bytes(),
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
	})
}

func (h *harness) newRelayer(opts ...Option) *Relayer {
	h.src = newFakeSource()
	src := h.src
	return h.newRelayerWith(func(_ context.Context, start uint64) (BlockSource, error) {
		h.starts = append(h.starts, start)
		return src, nil
	}, opts...)
}

func (h *harness) newRelayerWith(subscribe Subscriber, opts ...Option) *Relayer {
	var valOpts []validator.Option
	if h.snapshots != nil {
		valOpts = append(valOpts, validator.WithSnapshotFile(h.snapshots))
	}
	r, err := New(h.cfg, h.daClient(), subscribe, validator.New(testChainID, h.validatorSet(), log.NewNopLogger(), valOpts...),
		h.cursor, h.journal, log.NewTestLogger(h.t), opts...)
	require.NoError(h.t, err)
	return r
}

// start runs a relayer in the background. The returned stop function
// cancels it and returns the Run error.
func (h *harness) start(opts ...Option) (*Relayer, func() error) {
	r := h.newRelayer(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-done:
			case <-time.After(10 * time.Second):
				h.t.Fatal("relayer did not stop")
			}
		})
		return runErr
	}
	h.t.Cleanup(func() { _ = stop() })
	return r, stop
}

// runToError runs r until it fails on its own.
func runToError(t *testing.T, r *Relayer) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := r.Run(ctx)
	require.NoError(t, ctx.Err(), "relayer did not fail before the deadline")
	return err
}

func (h *harness) block(height uint64, txs ...types.SignedTransaction) *types.SequencerBlock {
	return types.MakeSignedBlock(testChainID, height, txs, h.vals)
}

func (h *harness) feed(blocks ...*types.SequencerBlock) {
	for _, b := range blocks {
		h.src.blocks <- b
	}
}

func (h *harness) loadCursor() *store.Cursor {
	c, err := h.cursor.Load()
	require.NoError(h.t, err)
	return c
}

func (h *harness) loadCursorOrNil() *store.Cursor {
	c, err := h.cursor.Load()
	if err != nil {
		return nil
	}
	return c
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 10*time.Second, 5*time.Millisecond, msg)
}

func decodeBlob(t *testing.T, data []byte) *types.Blob {
	t.Helper()
	var blob types.Blob
	require.NoError(t, blob.UnmarshalBinary(data))
	return &blob
}
