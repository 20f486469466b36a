package relayer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	"github.com/rollkit/sequencer-relayer/pkg/sequencer"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/pkg/validator"
	"github.com/rollkit/sequencer-relayer/types"
)

func TestRelayer_SubmitsAndConfirmsEveryHeight(t *testing.T) {
	h := newHarness(t)
	h.cfg.StartHeight = 10
	h.da.startTicker(t)

	_, stop := h.start()
	h.feed(
		h.block(10, types.RollupDataTx("rollup-n", []byte("a"))),
		h.block(11, types.RollupDataTx("rollup-n", []byte("b"))),
		h.block(12, types.RollupDataTx("rollup-n", []byte("c"))),
	)

	waitFor(t, func() bool {
		c, err := h.cursor.Load()
		return err == nil && c.LastConfirmedHeight == 12
	}, "heights were not confirmed")
	require.NoError(t, stop())

	c := h.loadCursor()
	assert.Equal(t, uint64(12), c.LastSubmittedHeight)
	assert.Equal(t, uint64(12), c.LastConfirmedHeight)
	assert.Empty(t, c.Pending)

	subs := h.da.submitted()
	require.Len(t, subs, 3)
	for i, blobs := range subs {
		require.Len(t, blobs, 2, "header blob and rollup blob")
		header := decodeBlob(t, blobs[0])
		assert.Equal(t, uint64(10+i), header.FirstHeight)
		assert.Equal(t, uint64(10+i), header.LastHeight)
		assert.Equal(t, testChainID, header.ChainID)
	}

	batches, err := h.journal.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches, "retired batches left in the journal")
	assert.Equal(t, []uint64{10}, h.starts)
}

func TestRelayer_BatchesContiguousHeights(t *testing.T) {
	h := newHarness(t)
	h.cfg.StartHeight = 10
	h.cfg.BatchMaxHeights = 3
	h.cfg.BatchInterval = time.Hour
	h.da.startTicker(t)

	_, stop := h.start()
	for height := uint64(10); height <= 12; height++ {
		h.feed(h.block(height, types.RollupDataTx("rollup-n", []byte{byte(height)})))
	}

	waitFor(t, func() bool { return len(h.da.submitted()) == 1 }, "batch not submitted")
	require.NoError(t, stop())

	blobs := h.da.submitted()[0]
	require.Len(t, blobs, 2)
	ns := h.da.namespaces[0]
	assert.Equal(t, types.NamespaceFromChainID(testChainID).Bytes(), ns[0])
	assert.Equal(t, types.NewRollupID("rollup-n").Namespace().Bytes(), ns[1])

	for _, data := range blobs {
		blob := decodeBlob(t, data)
		assert.Equal(t, uint64(10), blob.FirstHeight)
		assert.Equal(t, uint64(12), blob.LastHeight)
		require.Len(t, blob.Records, 3)
		for i, rec := range blob.Records {
			assert.Equal(t, uint64(10+i), rec.SequencerHeight)
		}
	}
	header := decodeBlob(t, blobs[0])
	rollup := decodeBlob(t, blobs[1])
	assert.Equal(t, header.SubmissionID, rollup.SubmissionID)
}

func TestRelayer_FlushesPartialBatchAfterInterval(t *testing.T) {
	h := newHarness(t)
	h.cfg.BatchMaxHeights = 5
	h.da.startTicker(t)

	_, stop := h.start()
	h.feed(h.block(1), h.block(2))

	waitFor(t, func() bool { return h.loadCursorOrNil() != nil && h.loadCursorOrNil().LastConfirmedHeight == 2 },
		"partial batch not flushed")
	require.NoError(t, stop())

	subs := h.da.submitted()
	require.Len(t, subs, 1)
	header := decodeBlob(t, subs[0][0])
	assert.Equal(t, uint64(1), header.FirstHeight)
	assert.Equal(t, uint64(2), header.LastHeight)
}

func TestRelayer_SplitsBatchesAtBlobLimit(t *testing.T) {
	h := newHarness(t)
	blocks := make([]*types.SequencerBlock, 5)
	for i := range blocks {
		blocks[i] = h.block(uint64(i+1), types.RollupDataTx("rollup-n", make([]byte, 64)))
	}

	builder := types.NewBatchBuilder(testChainID)
	for _, b := range blocks[:2] {
		hr, err := types.BlockRecords(b, nil)
		require.NoError(t, err)
		require.NoError(t, builder.Add(hr))
	}
	hr, err := types.BlockRecords(blocks[2], nil)
	require.NoError(t, err)
	limit := builder.MaxBlobSizeWith(hr) - 1

	h.da = newRecordingDA(uint64(limit))
	h.cfg.BatchMaxHeights = 10
	h.cfg.BatchInterval = time.Hour

	_, stop := h.start()
	h.feed(blocks...)

	waitFor(t, func() bool { return len(h.da.submitted()) == 2 }, "batches not submitted")
	require.NoError(t, stop())

	subs := h.da.submitted()
	first := decodeBlob(t, subs[0][0])
	second := decodeBlob(t, subs[1][0])
	assert.Equal(t, [2]uint64{1, 2}, [2]uint64{first.FirstHeight, first.LastHeight})
	assert.Equal(t, [2]uint64{3, 4}, [2]uint64{second.FirstHeight, second.LastHeight})
	for _, blobs := range subs {
		for _, blob := range blobs {
			assert.LessOrEqual(t, len(blob), limit)
		}
	}
}

// runUntilDAHeight relays height 10 and stops once its DA height is on disk,
// without the DA head ever reaching it.
func runUntilDAHeight(t *testing.T, h *harness) *store.Cursor {
	t.Helper()
	h.cfg.StartHeight = 10
	_, stop := h.start()
	h.feed(h.block(10, types.RollupDataTx("rollup-n", []byte("payload"))))

	waitFor(t, func() bool {
		c := h.loadCursorOrNil()
		return c != nil && len(c.Pending) == 1 && c.Pending[0].HasDAHeight
	}, "DA height not persisted")
	require.NoError(t, stop())

	c := h.loadCursor()
	assert.Equal(t, uint64(10), c.LastSubmittedHeight)
	assert.Equal(t, uint64(9), c.LastConfirmedHeight)
	assert.Equal(t, uint64(1), c.Pending[0].DAHeight)
	require.Len(t, h.da.submitted(), 1)
	return c
}

func TestRelayer_RestartConfirmsIncludedBatch(t *testing.T) {
	h := newHarness(t)
	runUntilDAHeight(t, h)

	h.da.Produce()
	r, stop := h.start()
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 10 }, "recovered batch not confirmed")
	require.NoError(t, stop())

	assert.Len(t, h.da.submitted(), 1, "included batch was resubmitted")
	assert.Equal(t, []uint64{10, 11}, h.starts)
	c := h.loadCursor()
	assert.Equal(t, uint64(10), c.LastConfirmedHeight)
	assert.Empty(t, c.Pending)
}

func TestRelayer_RestartKeepsWaitingOnPendingInclusion(t *testing.T) {
	h := newHarness(t)
	runUntilDAHeight(t, h)

	r, stop := h.start()
	waitFor(t, func() bool { return r.Status().InflightBatches == 1 }, "recovered batch not tracked")
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, stop())

	assert.Len(t, h.da.submitted(), 1)
	c := h.loadCursor()
	assert.Equal(t, uint64(9), c.LastConfirmedHeight)
	require.Len(t, c.Pending, 1)
	assert.True(t, c.Pending[0].HasDAHeight)
}

func TestRelayer_RestartResubmitsLostBatch(t *testing.T) {
	h := newHarness(t)
	before := runUntilDAHeight(t, h)
	original := h.da.submitted()[0]

	// the new DA layer never saw the first submission
	h.da = newRecordingDA(testMaxBlobSize)
	h.da.startTicker(t)
	r, stop := h.start()
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 10 }, "lost batch not confirmed")
	require.NoError(t, stop())

	subs := h.da.submitted()
	require.Len(t, subs, 1)
	assert.Equal(t, original, subs[0], "resubmission differs from the original")
	assert.Equal(t, before.Pending[0].SubmissionID, decodeBlob(t, subs[0][0]).SubmissionID)
}

func TestRelayer_ResubmitsJournaledBatchWithoutDAHeight(t *testing.T) {
	h := newHarness(t)
	h.da.startTicker(t)

	hr, err := types.BlockRecords(h.block(1, types.RollupDataTx("rollup-n", []byte("x"))), nil)
	require.NoError(t, err)
	builder := types.NewBatchBuilder(testChainID)
	require.NoError(t, builder.Add(hr))
	batch, err := builder.Build()
	require.NoError(t, err)

	staleBuilder := types.NewBatchBuilder(testChainID)
	staleHR, err := types.BlockRecords(h.block(2), nil)
	require.NoError(t, err)
	require.NoError(t, staleBuilder.Add(staleHR))
	stale, err := staleBuilder.Build()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.journal.Put(ctx, batch))
	require.NoError(t, h.journal.Put(ctx, stale))
	require.NoError(t, h.cursor.Save(&store.Cursor{
		LastSubmittedHeight: 1,
		LastConfirmedHeight: 0,
		Pending: []store.PendingSubmission{{
			SequencerHeight:  1,
			SubmissionID:     batch.SubmissionID,
			AttemptCount:     1,
			FirstAttemptedAt: time.Unix(1700000000, 0),
		}},
	}))

	r, stop := h.start()
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 1 }, "journaled batch not confirmed")
	require.NoError(t, stop())

	subs := h.da.submitted()
	require.Len(t, subs, 1)
	require.Len(t, subs[0], len(batch.Blobs))
	for i, blob := range batch.Blobs {
		assert.Equal(t, blob.Data, []byte(subs[0][i]))
	}
	left, err := h.journal.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Equal(t, []uint64{2}, h.starts)
}

func TestRelayer_MissingJournalEntry(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cursor.Save(&store.Cursor{
		LastSubmittedHeight: 1,
		Pending:             []store.PendingSubmission{{SequencerHeight: 1, SubmissionID: types.Hash{7}}},
	}))

	err := h.newRelayer().Run(context.Background())
	require.ErrorIs(t, err, ErrJournalMissing)
	assert.Empty(t, h.da.submitted())
}

func TestRelayer_CorruptCursorRefusesToStart(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cursor.Save(store.NewCursor(1)))
	raw, err := h.cursor.Load()
	require.NoError(t, err)
	data, err := raw.MarshalBinary()
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, writeFile(h.cursor.Path(), data))

	err = h.newRelayer().Run(context.Background())
	require.ErrorIs(t, err, store.ErrCursorCorrupt)
}

func TestRelayer_BoundsPendingWindow(t *testing.T) {
	h := newHarness(t)
	h.cfg.StartHeight = 10
	h.cfg.PendingWindow = 2
	h.cfg.SubmitParallelism = 4
	release := make(chan struct{})
	h.da.hook = func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.da.startTicker(t)

	r, stop := h.start()
	for height := uint64(10); height <= 20; height++ {
		h.feed(h.block(height))
	}

	waitFor(t, func() bool {
		return h.da.active.Load() == 2 && r.Status().LastSubmittedHeight == 11 && len(h.src.blocks) == 8
	}, "window did not fill")
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 2, h.da.maxActive.Load())
	assert.Equal(t, uint64(11), r.Status().LastSubmittedHeight)
	assert.Equal(t, uint64(2), r.Status().PendingHeights)
	assert.Len(t, h.src.blocks, 8, "ingest kept reading past the window")

	close(release)
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 20 }, "window did not drain")
	require.NoError(t, stop())
	assert.LessOrEqual(t, h.da.maxActive.Load(), int32(2))
	assert.Len(t, h.da.submitted(), 11)
}

func TestRelayer_HaltsOnFork(t *testing.T) {
	h := newHarness(t)
	r := h.newRelayer()
	h.src.errs <- fmt.Errorf("height 12: %w", sequencer.ErrChainForked)

	err := runToError(t, r)
	require.ErrorIs(t, err, sequencer.ErrChainForked)
	assert.True(t, h.src.closed.Load())
}

func TestRelayer_HaltsOnActionRootMismatch(t *testing.T) {
	h := newHarness(t)
	h.cfg.StartHeight = 10
	r := h.newRelayer()

	good := h.block(10, types.RollupDataTx("rollup-n", []byte("a")))
	bad := h.block(11, types.RollupDataTx("rollup-n", []byte("b")))
	bad.ActionTreeRoot = types.Hash{0xde, 0xad}
	types.SignBlock(bad, h.vals)
	h.feed(good, bad)

	err := runToError(t, r)
	require.ErrorIs(t, err, validator.ErrActionRootMismatch)

	c := h.loadCursor()
	assert.LessOrEqual(t, c.LastSubmittedHeight, uint64(10), "height 11 was relayed")
	for _, blobs := range h.da.submitted() {
		assert.Equal(t, uint64(10), decodeBlob(t, blobs[0]).FirstHeight)
	}
}

func TestRelayer_HaltsOnInsufficientSignatures(t *testing.T) {
	h := newHarness(t)
	r := h.newRelayer()
	// two of three equal validators is not more than two thirds
	h.feed(types.MakeSignedBlock(testChainID, 1, nil, h.vals[:2]))

	err := runToError(t, r)
	require.ErrorIs(t, err, validator.ErrInsufficientVotingPower)
}

func TestRelayer_OversizedHeightIsPermanent(t *testing.T) {
	h := newHarness(t)
	h.da = newRecordingDA(400)
	r := h.newRelayer()
	h.feed(h.block(1, types.RollupDataTx("rollup-n", make([]byte, 1000))))

	err := runToError(t, r)
	require.Error(t, err)
	assert.True(t, coreda.IsPermanent(err))
	assert.ErrorIs(t, err, coreda.ErrBlobSizeOverLimit)
	assert.Empty(t, h.da.submitted())
}

func TestRelayer_GivesUpAfterMaxAttempts(t *testing.T) {
	h := newHarness(t)
	var attempts atomic.Int32
	h.da.hook = func(context.Context) error {
		attempts.Add(1)
		return errors.New("node unavailable")
	}
	r := h.newRelayer()
	h.feed(h.block(1))

	err := runToError(t, r)
	require.ErrorIs(t, err, ErrSubmissionFailed)
	assert.EqualValues(t, h.cfg.MaxSubmitAttempts, attempts.Load())

	c := h.loadCursor()
	assert.Equal(t, uint64(1), c.LastSubmittedHeight)
	assert.Equal(t, uint64(0), c.LastConfirmedHeight)
	require.Len(t, c.Pending, 1)
	assert.False(t, c.Pending[0].HasDAHeight)
	assert.Equal(t, h.cfg.MaxSubmitAttempts, c.Pending[0].AttemptCount)

	batches, err := h.journal.List(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1, "unconfirmed batch must stay journaled")
	assert.Equal(t, c.Pending[0].SubmissionID, batches[0].SubmissionID)
}

func TestRelayer_RetriesTransientFailures(t *testing.T) {
	h := newHarness(t)
	h.da.startTicker(t)
	var attempts atomic.Int32
	h.da.hook = func(context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("node unavailable")
		}
		return nil
	}

	r, stop := h.start()
	h.feed(h.block(1))
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 1 }, "batch not confirmed after retries")
	require.NoError(t, stop())
	assert.EqualValues(t, 3, attempts.Load())
}

func TestRelayer_PermanentSubmitError(t *testing.T) {
	h := newHarness(t)
	h.da.hook = func(context.Context) error {
		return coreda.NewPermanentError(coreda.ErrNamespaceInvalid)
	}
	r := h.newRelayer()
	h.feed(h.block(1))

	err := runToError(t, r)
	assert.True(t, coreda.IsPermanent(err))
	assert.ErrorIs(t, err, coreda.ErrNamespaceInvalid)
}

type panicSource struct{}

func (panicSource) Next(context.Context) (*types.SequencerBlock, error) { panic("boom") }
func (panicSource) Close() error                                        { return nil }

func TestRelayer_TaskPanic(t *testing.T) {
	h := newHarness(t)
	r := h.newRelayerWith(func(context.Context, uint64) (BlockSource, error) {
		return panicSource{}, nil
	})

	err := runToError(t, r)
	require.ErrorIs(t, err, ErrTaskPanicked)
	var perr *TaskPanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ingest", perr.Task)
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
}

func TestRelayer_DisableWriting(t *testing.T) {
	h := newHarness(t)
	h.cfg.DisableWriting = true

	r, stop := h.start()
	h.feed(h.block(1, types.RollupDataTx("rollup-n", []byte("a"))), h.block(2), h.block(3))
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 3 }, "skipped heights did not retire")
	require.NoError(t, stop())

	assert.Empty(t, h.da.submitted())
	c := h.loadCursor()
	assert.Equal(t, uint64(3), c.LastSubmittedHeight)
	assert.Empty(t, c.Pending)
	batches, err := h.journal.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestRelayer_OnlyRelaysOwnProposals(t *testing.T) {
	h := newHarness(t)
	h.da.startTicker(t)
	addr := h.vals[1].Address()
	h.cfg.ValidatorAddress = &addr
	own := []types.TestValidator{h.vals[1], h.vals[0], h.vals[2]}

	r, stop := h.start()
	h.feed(
		h.block(1),
		types.MakeSignedBlock(testChainID, 2, nil, own),
		h.block(3),
	)
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 3 }, "heights did not retire")
	require.NoError(t, stop())

	subs := h.da.submitted()
	require.Len(t, subs, 1)
	header := decodeBlob(t, subs[0][0])
	assert.Equal(t, uint64(2), header.FirstHeight)
	assert.Equal(t, uint64(2), header.LastHeight)
}

func TestRelayer_RestartAfterSkippedHeightsBehindPendingBatch(t *testing.T) {
	h := newHarness(t)
	addr := h.vals[1].Address()
	h.cfg.ValidatorAddress = &addr
	own := []types.TestValidator{h.vals[1], h.vals[0], h.vals[2]}

	_, stop := h.start()
	h.feed(
		h.block(1),
		types.MakeSignedBlock(testChainID, 2, nil, own),
		h.block(3),
	)
	waitFor(t, func() bool {
		c := h.loadCursorOrNil()
		return c != nil && c.LastSubmittedHeight == 3 && len(c.Pending) == 2 && c.Pending[0].HasDAHeight
	}, "own height not submitted")
	require.NoError(t, stop())

	c := h.loadCursor()
	assert.Equal(t, uint64(1), c.LastConfirmedHeight)
	assert.False(t, c.Pending[0].Skipped())
	assert.True(t, c.Pending[1].Skipped())

	h.da.startTicker(t)
	r, stop := h.start()
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 3 }, "heights did not retire after restart")
	require.NoError(t, stop())

	assert.Len(t, h.da.submitted(), 1, "pending batch was resubmitted")
	assert.Equal(t, []uint64{1, 4}, h.starts)
	c = h.loadCursor()
	assert.Empty(t, c.Pending)
	batches, err := h.journal.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestRelayer_RestartKeepsRotatedValidatorSet(t *testing.T) {
	h := newHarness(t)
	h.da.startTicker(t)
	h.snapshots = validator.NewSnapshotFile(filepath.Join(t.TempDir(), "validator_state.json"), testChainID)
	incoming := types.GenerateValidators(3, 10)

	var updates []types.Action
	for _, in := range incoming {
		updates = append(updates, types.ValidatorUpdateAction{PubKey: in.PubKey(), Power: in.Power})
	}
	for _, out := range h.vals {
		updates = append(updates, types.ValidatorUpdateAction{PubKey: out.PubKey(), Power: 0})
	}

	r, stop := h.start()
	h.feed(
		h.block(1, types.SignedTransaction{Actions: updates, Signature: []byte{}}),
		types.MakeSignedBlock(testChainID, 2, nil, incoming),
	)
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 2 }, "rotation heights not confirmed")
	require.NoError(t, stop())

	r, stop = h.start()
	h.feed(types.MakeSignedBlock(testChainID, 3, nil, incoming))
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 3 }, "height signed by the rotated set not confirmed")
	require.NoError(t, stop())

	assert.Equal(t, []uint64{1, 3}, h.starts)
	assert.Len(t, h.da.submitted(), 3)
}

func TestRelayer_FiltersRollups(t *testing.T) {
	h := newHarness(t)
	h.da.startTicker(t)
	h.cfg.OnlyIncludeRollups = []types.RollupID{types.NewRollupID("rollup-a")}

	r, stop := h.start()
	h.feed(h.block(1,
		types.RollupDataTx("rollup-a", []byte("kept")),
		types.RollupDataTx("rollup-b", []byte("dropped")),
	))
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 1 }, "height not confirmed")
	require.NoError(t, stop())

	require.Len(t, h.da.namespaces, 1)
	assert.Equal(t, [][]byte{
		types.NamespaceFromChainID(testChainID).Bytes(),
		types.NewRollupID("rollup-a").Namespace().Bytes(),
	}, h.da.namespaces[0])
}

func TestRelayer_WaitsForConfirmationDepth(t *testing.T) {
	h := newHarness(t)
	h.cfg.ConfirmationDepth = 3

	r, stop := h.start()
	h.feed(h.block(1))
	waitFor(t, func() bool {
		c := h.loadCursorOrNil()
		return c != nil && len(c.Pending) == 1 && c.Pending[0].HasDAHeight
	}, "batch not submitted")

	h.da.Produce()
	h.da.Produce()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(0), r.Status().LastConfirmedHeight, "confirmed at depth 2")

	h.da.Produce()
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 1 }, "not confirmed at depth 3")
	require.NoError(t, stop())
}

type fakeSequencerStatus struct {
	connected atomic.Bool
	since     atomic.Int64
}

func (s *fakeSequencerStatus) Connected() bool { return s.connected.Load() }

func (s *fakeSequencerStatus) InBackoffSince() time.Time {
	if ns := s.since.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

func TestRelayer_Ready(t *testing.T) {
	h := newHarness(t)
	seq := &fakeSequencerStatus{}
	seq.connected.Store(true)

	r, _ := h.start(WithSequencerStatus(seq))
	waitFor(t, func() bool { return r.Ready() == nil }, "relayer never became ready")

	seq.connected.Store(false)
	require.Error(t, r.Ready())

	seq.since.Store(time.Now().UnixNano())
	require.NoError(t, r.Ready(), "recent backoff is within grace")

	seq.since.Store(time.Now().Add(-time.Hour).UnixNano())
	require.Error(t, r.Ready())
}

func TestRelayer_NotReadyBeforeStart(t *testing.T) {
	h := newHarness(t)
	r := h.newRelayer()
	require.Error(t, r.Ready())
	assert.Equal(t, Status{}, r.Status())
}

func TestRelayer_PublishesMetrics(t *testing.T) {
	h := newHarness(t)
	h.da.startTicker(t)

	r, stop := h.start(WithMetrics(PrometheusMetrics("relayer_test")))
	h.feed(h.block(1), h.block(2))
	waitFor(t, func() bool { return r.Status().LastConfirmedHeight == 2 }, "heights not confirmed")
	require.NoError(t, stop())

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[mf.GetName()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["relayer_test_relayer_last_confirmed_height"])
	assert.Equal(t, 2.0, values["relayer_test_relayer_batches_total"])
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	h := newHarness(t)
	for name, mutate := range map[string]func(*Config){
		"no chain id":          func(c *Config) { c.ChainID = "" },
		"zero start":           func(c *Config) { c.StartHeight = 0 },
		"zero window":          func(c *Config) { c.PendingWindow = 0 },
		"batch exceeds window": func(c *Config) { c.BatchMaxHeights = c.PendingWindow + 1 },
		"zero depth":           func(c *Config) { c.ConfirmationDepth = 0 },
		"zero attempts":        func(c *Config) { c.MaxSubmitAttempts = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testRelayerConfig()
			mutate(&cfg)
			_, err := New(cfg, h.daClient(), nil, nil, h.cursor, h.journal, log.NewNopLogger())
			require.Error(t, err)
		})
	}
}
