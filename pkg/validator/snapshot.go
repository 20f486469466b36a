package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/facebookgo/atomicfile"
)

// ErrSnapshotNotFound is returned by SnapshotFile.Load when no rotation has
// been recorded yet.
var ErrSnapshotNotFound = errors.New("validator snapshot not found")

// Epoch is a validator set and the first height it signs.
type Epoch struct {
	FromHeight uint64
	Set        *ValidatorSet
}

type epochJSON struct {
	FromHeight uint64          `json:"from_height"`
	Validators json.RawMessage `json:"validators"`
}

type snapshotJSON struct {
	ChainID string      `json:"chain_id"`
	Epochs  []epochJSON `json:"epochs"`
}

// SnapshotFile persists the validator set history so that rotations
// survive a restart.
type SnapshotFile struct {
	path    string
	chainID string
}

// NewSnapshotFile returns the snapshot file of chainID at path.
func NewSnapshotFile(path, chainID string) *SnapshotFile {
	return &SnapshotFile{path: path, chainID: chainID}
}

// Path returns the file location.
func (f *SnapshotFile) Path() string {
	return f.path
}

// Load reads the epochs, ordered by FromHeight.
func (f *SnapshotFile) Load() ([]Epoch, error) {
	data, err := os.ReadFile(f.path) //nolint:gosec
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read validator snapshot: %w", err)
	}

	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValidatorSet, f.path, err)
	}
	if raw.ChainID != f.chainID {
		return nil, fmt.Errorf("%w: snapshot %s is for chain %q, expected %q", ErrInvalidValidatorSet, f.path, raw.ChainID, f.chainID)
	}
	if len(raw.Epochs) == 0 {
		return nil, fmt.Errorf("%w: snapshot %s has no epochs", ErrInvalidValidatorSet, f.path)
	}
	epochs := make([]Epoch, len(raw.Epochs))
	for i, e := range raw.Epochs {
		if i > 0 && e.FromHeight <= raw.Epochs[i-1].FromHeight {
			return nil, fmt.Errorf("%w: snapshot %s epochs out of order at %d", ErrInvalidValidatorSet, f.path, e.FromHeight)
		}
		set, err := ParseValidatorSet(e.Validators)
		if err != nil {
			return nil, fmt.Errorf("epoch from height %d: %w", e.FromHeight, err)
		}
		epochs[i] = Epoch{FromHeight: e.FromHeight, Set: set}
	}
	return epochs, nil
}

// Save replaces the file with epochs through write-temp-and-rename.
func (f *SnapshotFile) Save(epochs []Epoch) error {
	raw := snapshotJSON{ChainID: f.chainID, Epochs: make([]epochJSON, len(epochs))}
	for i, e := range epochs {
		validators, err := e.Set.MarshalJSON()
		if err != nil {
			return err
		}
		raw.Epochs[i] = epochJSON{FromHeight: e.FromHeight, Validators: validators}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	file, err := atomicfile.New(f.path, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create validator snapshot: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Abort()
		return fmt.Errorf("failed to write validator snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Abort()
		return fmt.Errorf("failed to sync validator snapshot: %w", err)
	}
	return file.Close()
}
