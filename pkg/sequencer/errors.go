package sequencer

import "errors"

var (
	// ErrChainForked is returned when the sequencer re-delivers an already
	// emitted height with a different block hash.
	ErrChainForked = errors.New("sequencer chain forked")

	// ErrUnreachable is returned when reconnecting keeps failing for longer
	// than the configured maximum elapsed time.
	ErrUnreachable = errors.New("sequencer unreachable")

	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = errors.New("block stream closed")
)
