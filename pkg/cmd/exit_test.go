package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	rollconf "github.com/rollkit/sequencer-relayer/pkg/config"
	"github.com/rollkit/sequencer-relayer/pkg/sequencer"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/pkg/validator"
	"github.com/rollkit/sequencer-relayer/relayer"
)

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"clean", nil, ExitOK},
		{"config", fmt.Errorf("failed to validate relayer config: %w", rollconf.ErrConfigInvalid), ExitConfig},
		{"fork", fmt.Errorf("ingest: %w", sequencer.ErrChainForked), ExitRuntime},
		{"sequencer unreachable", sequencer.ErrUnreachable, ExitRuntime},
		{"action root", fmt.Errorf("height 6: %w", validator.ErrActionRootMismatch), ExitRuntime},
		{"signature", validator.ErrInvalidSignature, ExitRuntime},
		{"voting power", validator.ErrInsufficientVotingPower, ExitRuntime},
		{"panic", &relayer.TaskPanicError{Task: "submit", Value: "boom"}, ExitRuntime},
		{"corrupt cursor", fmt.Errorf("%w: bad crc", store.ErrCursorCorrupt), ExitRuntime},
		{"journal", relayer.ErrJournalMissing, ExitRuntime},
		{"permanent DA", fmt.Errorf("submit: %w", coreda.NewPermanentError(coreda.ErrBlobSizeOverLimit)), ExitDA},
		{"transient DA", &coreda.TransientError{Op: "Submit", Attempts: 4, Err: context.DeadlineExceeded}, ExitDA},
		{"attempts exhausted", fmt.Errorf("batch 3-4: %w", relayer.ErrSubmissionFailed), ExitDA},
		{"panic wrapping DA error", &relayer.TaskPanicError{Task: "submit", Value: coreda.NewPermanentError(errors.New("x"))}, ExitRuntime},
		{"unknown", errors.New("listen tcp: address in use"), ExitRuntime},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}
