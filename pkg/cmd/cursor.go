package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	rollconf "github.com/rollkit/sequencer-relayer/pkg/config"
	"github.com/rollkit/sequencer-relayer/pkg/store"
)

const (
	flagResetTo    = "to"
	flagResetForce = "force"
)

// CursorJSON is the form printed by print-cursor.
type CursorJSON struct {
	Path                string        `json:"path"`
	Initialized         bool          `json:"initialized"`
	LastSubmittedHeight uint64        `json:"last_submitted_height"`
	LastConfirmedHeight uint64        `json:"last_confirmed_height"`
	Pending             []PendingJSON `json:"pending"`
}

// PendingJSON is one pending submission of CursorJSON.
type PendingJSON struct {
	SequencerHeight uint64  `json:"sequencer_height"`
	SubmissionID    string  `json:"submission_id"`
	DAHeight        *uint64 `json:"da_height,omitempty"`
	AttemptCount    uint32  `json:"attempt_count"`
}

func cursorJSON(path string, c *store.Cursor, initialized bool) CursorJSON {
	out := CursorJSON{
		Path:                path,
		Initialized:         initialized,
		LastSubmittedHeight: c.LastSubmittedHeight,
		LastConfirmedHeight: c.LastConfirmedHeight,
		Pending:             make([]PendingJSON, 0, len(c.Pending)),
	}
	for _, p := range c.Pending {
		pj := PendingJSON{
			SequencerHeight: p.SequencerHeight,
			SubmissionID:    p.SubmissionID.String(),
			AttemptCount:    p.AttemptCount,
		}
		if p.HasDAHeight {
			h := p.DAHeight
			pj.DAHeight = &h
		}
		out.Pending = append(out.Pending, pj)
	}
	return out
}

// NewPrintCursorCmd returns the command printing the persisted relay cursor.
func NewPrintCursorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print-cursor",
		Short: "Print the persisted relay cursor",
		Long: `Prints the submit and commit pointers and the pending submissions of the
cursor file as JSON. When no cursor exists yet the cursor the relayer would
start from is printed with "initialized": false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ParseConfig(cmd)
			if err != nil {
				return err
			}

			path := config.CursorFilePath()
			cursor, err := store.NewCursorFile(path).Load()
			initialized := true
			if errors.Is(err, store.ErrCursorNotFound) {
				cursor, initialized = store.NewCursor(config.Relayer.StartHeight), false
			} else if err != nil {
				return fmt.Errorf("failed to load cursor %s: %w", path, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cursorJSON(path, cursor, initialized))
		},
	}
	rollconf.AddFlags(cmd)
	return cmd
}

// NewResetCursorCmd returns the command rewriting the cursor so relaying
// resumes after a given height.
func NewResetCursorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-cursor --to <height>",
		Short: "Reset the relay cursor (use only while the relayer is stopped)",
		Long: `Rewrites the cursor so that the next run relays from height <to>+1, and
drops the pending submissions together with their journaled payloads.

This is the recovery path after the relayer halted on a forked sequencer
chain. A corrupt cursor is only replaced when --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !cmd.Flags().Changed(flagResetTo) {
				return fmt.Errorf("%w: --%s is required", rollconf.ErrConfigInvalid, flagResetTo)
			}
			to, err := cmd.Flags().GetUint64(flagResetTo)
			if err != nil {
				return fmt.Errorf("%w: %w", rollconf.ErrConfigInvalid, err)
			}
			force, err := cmd.Flags().GetBool(flagResetForce)
			if err != nil {
				return fmt.Errorf("%w: %w", rollconf.ErrConfigInvalid, err)
			}

			config, err := ParseConfig(cmd)
			if err != nil {
				return err
			}

			file := store.NewCursorFile(config.CursorFilePath())
			previous, err := file.Load()
			switch {
			case err == nil:
				cmd.Printf("Previous cursor: last submitted %d, last confirmed %d, %d pending\n",
					previous.LastSubmittedHeight, previous.LastConfirmedHeight, len(previous.Pending))
			case errors.Is(err, store.ErrCursorNotFound):
			case errors.Is(err, store.ErrCursorCorrupt) && force:
				cmd.Printf("Replacing corrupt cursor: %v\n", err)
			default:
				return fmt.Errorf("failed to load cursor %s: %w", file.Path(), err)
			}

			cursor := &store.Cursor{LastSubmittedHeight: to, LastConfirmedHeight: to}
			if err := file.Save(cursor); err != nil {
				return err
			}

			kv, err := store.NewDefaultKVStore(config.RootDir, config.Relayer.JournalPath, "")
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			journal := store.NewJournal(kv)
			defer func() {
				err = multierr.Append(err, journal.Close())
			}()
			batches, err := journal.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list journal: %w", err)
			}
			for _, b := range batches {
				if err := journal.Delete(cmd.Context(), b.SubmissionID); err != nil {
					return fmt.Errorf("failed to delete journaled batch %s: %w", b.SubmissionID, err)
				}
			}

			cmd.Printf("Cursor reset: relaying resumes at height %d (%d journaled batches dropped)\n", to+1, len(batches))
			return nil
		},
	}
	rollconf.AddFlags(cmd)
	cmd.Flags().Uint64(flagResetTo, 0, "last sequencer height considered relayed; relaying resumes at the next height")
	cmd.Flags().Bool(flagResetForce, false, "replace a corrupt cursor")
	return cmd
}

// UnsafeCleanDataDir removes all contents of the specified data directory.
// It does not remove the data directory itself, only its contents.
func UnsafeCleanDataDir(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			// Data directory does not exist, nothing to clean.
			return nil
		}
		return fmt.Errorf("failed to read data directory: %w", err)
	}
	for _, entry := range entries {
		entryPath := filepath.Join(dataDir, entry.Name())
		if err := os.RemoveAll(entryPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entryPath, err)
		}
	}
	return nil
}

// NewUnsafeCleanCmd returns a command that removes the cursor and the journal.
func NewUnsafeCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unsafe-clean",
		Short: "Remove all contents of the data directory (DANGEROUS: cannot be undone)",
		Long: `Removes the cursor, the payload journal and everything else in the relayer's
data directory. The next run starts from the configured start height.
This operation is unsafe and cannot be undone. Use with caution!`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ParseConfig(cmd)
			if err != nil {
				return err
			}
			dataDir := filepath.Join(config.RootDir, rollconf.DefaultDataDir)
			if err := UnsafeCleanDataDir(dataDir); err != nil {
				return err
			}
			cmd.Printf("All contents of the data directory at %s have been removed.\n", dataDir)
			return nil
		},
	}
	rollconf.AddFlags(cmd)
	return cmd
}
