package cmd

import (
	"errors"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	rollconf "github.com/rollkit/sequencer-relayer/pkg/config"
	"github.com/rollkit/sequencer-relayer/pkg/sequencer"
	"github.com/rollkit/sequencer-relayer/pkg/store"
	"github.com/rollkit/sequencer-relayer/pkg/validator"
	"github.com/rollkit/sequencer-relayer/relayer"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitConfig  = 1
	ExitRuntime = 2
	ExitDA      = 3
)

// fatalRuntime are the errors that halt the relayer because the sequencer
// data or the relayer state cannot be trusted. They take precedence over the
// DA failure they may wrap.
var fatalRuntime = []error{
	sequencer.ErrChainForked,
	sequencer.ErrUnreachable,
	validator.ErrInvalidSignature,
	validator.ErrInsufficientVotingPower,
	validator.ErrActionRootMismatch,
	validator.ErrInvalidBlock,
	validator.ErrChainIDMismatch,
	relayer.ErrTaskPanicked,
	relayer.ErrJournalMissing,
	store.ErrCursorCorrupt,
}

// ExitCode maps the error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, rollconf.ErrConfigInvalid) {
		return ExitConfig
	}
	for _, target := range fatalRuntime {
		if errors.Is(err, target) {
			return ExitRuntime
		}
	}

	var (
		permanent *coreda.PermanentError
		transient *coreda.TransientError
	)
	if errors.As(err, &permanent) || errors.As(err, &transient) || errors.Is(err, relayer.ErrSubmissionFailed) {
		return ExitDA
	}
	return ExitRuntime
}
