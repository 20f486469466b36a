package relayer

import (
	"errors"
	"fmt"
	"time"
)

// Status is the relayer progress published to the API.
type Status struct {
	LastSubmittedHeight uint64 `json:"last_submitted_height"`
	LastConfirmedHeight uint64 `json:"last_confirmed_height"`
	PendingHeights      uint64 `json:"pending_heights"`
	InflightBatches     int    `json:"inflight_batches"`
}

// Status returns the latest published progress.
func (r *Relayer) Status() Status {
	return *r.status.Load()
}

// Ready returns nil when the sequencer is connected and the DA layer is
// reachable. Either may be in backoff for up to ReadyGrace.
func (r *Relayer) Ready() error {
	if !r.started.Load() {
		return errors.New("relayer not started")
	}
	now := time.Now()
	if r.seqStatus != nil && !r.seqStatus.Connected() {
		since := r.seqStatus.InBackoffSince()
		if since.IsZero() {
			return errors.New("sequencer not connected")
		}
		if d := now.Sub(since); d > r.cfg.ReadyGrace {
			return fmt.Errorf("sequencer unreachable for %s", d.Truncate(time.Second))
		}
	}
	if !r.daReachable.Load() {
		return errors.New("DA layer not reached yet")
	}
	if ns := r.daFailingSince.Load(); ns != 0 {
		if d := now.Sub(time.Unix(0, ns)); d > r.cfg.ReadyGrace {
			return fmt.Errorf("DA layer failing for %s", d.Truncate(time.Second))
		}
	}
	return nil
}
