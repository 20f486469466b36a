package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/facebookgo/atomicfile"

	"github.com/rollkit/sequencer-relayer/types"
)

const (
	cursorMagic          = "RLYC"
	cursorVersion uint16 = 1

	cursorHeaderSize  = 4 + 2 + 8 + 8 + 4
	pendingRecordSize = 8 + types.HashSize + 1 + 8 + 4
	crcSize           = 4
)

var (
	// ErrCursorCorrupt is returned when the cursor file fails magic, version or
	// checksum validation, or violates the cursor invariants. The relayer
	// refuses to start on it.
	ErrCursorCorrupt = errors.New("cursor file corrupt")

	// ErrCursorNotFound is returned by Load when no cursor has been written yet.
	ErrCursorNotFound = errors.New("cursor file not found")
)

// PendingSubmission tracks one sequencer height handed to the DA layer but
// not yet retired.
type PendingSubmission struct {
	SequencerHeight uint64
	SubmissionID    types.Hash
	HasDAHeight     bool
	DAHeight        uint64
	AttemptCount    uint32
	// FirstAttemptedAt is kept in memory only.
	FirstAttemptedAt time.Time
}

// Skipped reports whether the height belongs to a batch that wrote nothing to
// the DA layer and is already confirmed. Such heights carry a zero
// submission id and have no journal entry.
func (p PendingSubmission) Skipped() bool {
	return p.SubmissionID.IsZero()
}

// Cursor is the relayer's durable progress.
type Cursor struct {
	LastSubmittedHeight uint64
	LastConfirmedHeight uint64
	// Pending is ordered by SequencerHeight.
	Pending []PendingSubmission
}

// NewCursor returns the cursor of a relayer that has not relayed anything and
// starts at startHeight.
func NewCursor(startHeight uint64) *Cursor {
	h := uint64(0)
	if startHeight > 0 {
		h = startHeight - 1
	}
	return &Cursor{LastSubmittedHeight: h, LastConfirmedHeight: h}
}

// Validate checks that LastConfirmedHeight <= LastSubmittedHeight and that
// the pending heights cover (LastConfirmedHeight, LastSubmittedHeight]
// exactly, in order.
func (c *Cursor) Validate() error {
	if c.LastConfirmedHeight > c.LastSubmittedHeight {
		return fmt.Errorf("last confirmed height %d above last submitted height %d", c.LastConfirmedHeight, c.LastSubmittedHeight)
	}
	if want := c.LastSubmittedHeight - c.LastConfirmedHeight; uint64(len(c.Pending)) != want {
		return fmt.Errorf("%d pending entries, want %d", len(c.Pending), want)
	}
	for i, p := range c.Pending {
		if want := c.LastConfirmedHeight + uint64(i) + 1; p.SequencerHeight != want {
			return fmt.Errorf("pending entry %d has height %d, want %d", i, p.SequencerHeight, want)
		}
	}
	return nil
}

// Clone returns a deep copy of the cursor.
func (c *Cursor) Clone() *Cursor {
	out := *c
	out.Pending = append([]PendingSubmission(nil), c.Pending...)
	return &out
}

// MarshalBinary encodes the cursor in the on-disk layout. All integers are
// little-endian and a trailing CRC-32 (IEEE) covers every preceding byte.
func (c *Cursor) MarshalBinary() ([]byte, error) {
	pending := append([]PendingSubmission(nil), c.Pending...)
	sort.Slice(pending, func(i, j int) bool { return pending[i].SequencerHeight < pending[j].SequencerHeight })

	out := make([]byte, 0, cursorHeaderSize+len(pending)*pendingRecordSize+crcSize)
	out = append(out, cursorMagic...)
	out = binary.LittleEndian.AppendUint16(out, cursorVersion)
	out = binary.LittleEndian.AppendUint64(out, c.LastSubmittedHeight)
	out = binary.LittleEndian.AppendUint64(out, c.LastConfirmedHeight)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pending)))
	for _, p := range pending {
		out = binary.LittleEndian.AppendUint64(out, p.SequencerHeight)
		out = append(out, p.SubmissionID[:]...)
		if p.HasDAHeight {
			out = append(out, 1)
			out = binary.LittleEndian.AppendUint64(out, p.DAHeight)
		} else {
			out = append(out, 0)
			out = binary.LittleEndian.AppendUint64(out, 0)
		}
		out = binary.LittleEndian.AppendUint32(out, p.AttemptCount)
	}
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out)), nil
}

// UnmarshalBinary decodes and validates a cursor. Every failure wraps
// ErrCursorCorrupt.
func (c *Cursor) UnmarshalBinary(data []byte) error {
	if len(data) < cursorHeaderSize+crcSize {
		return fmt.Errorf("%w: %d bytes", ErrCursorCorrupt, len(data))
	}
	body, sum := data[:len(data)-crcSize], binary.LittleEndian.Uint32(data[len(data)-crcSize:])
	if string(body[:4]) != cursorMagic {
		return fmt.Errorf("%w: bad magic %q", ErrCursorCorrupt, body[:4])
	}
	if v := binary.LittleEndian.Uint16(body[4:6]); v != cursorVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCursorCorrupt, v)
	}
	if crc32.ChecksumIEEE(body) != sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCursorCorrupt)
	}

	out := Cursor{
		LastSubmittedHeight: binary.LittleEndian.Uint64(body[6:14]),
		LastConfirmedHeight: binary.LittleEndian.Uint64(body[14:22]),
	}
	count := binary.LittleEndian.Uint32(body[22:26])
	rest := body[cursorHeaderSize:]
	if uint64(len(rest)) != uint64(count)*pendingRecordSize {
		return fmt.Errorf("%w: %d pending entries in %d bytes", ErrCursorCorrupt, count, len(rest))
	}
	for i := uint32(0); i < count; i++ {
		rec := rest[:pendingRecordSize]
		rest = rest[pendingRecordSize:]

		p := PendingSubmission{SequencerHeight: binary.LittleEndian.Uint64(rec[0:8])}
		copy(p.SubmissionID[:], rec[8:40])
		switch rec[40] {
		case 0:
		case 1:
			p.HasDAHeight = true
		default:
			return fmt.Errorf("%w: invalid da_height_present flag %d", ErrCursorCorrupt, rec[40])
		}
		p.DAHeight = binary.LittleEndian.Uint64(rec[41:49])
		p.AttemptCount = binary.LittleEndian.Uint32(rec[49:53])
		out.Pending = append(out.Pending, p)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCursorCorrupt, err)
	}
	*c = out
	return nil
}

// CursorFile persists a cursor to a single file replaced atomically on every
// write.
type CursorFile struct {
	path string
}

// NewCursorFile returns a CursorFile at path.
func NewCursorFile(path string) *CursorFile {
	return &CursorFile{path: path}
}

// Path returns the file location.
func (f *CursorFile) Path() string {
	return f.path
}

// Load reads the cursor. It returns ErrCursorNotFound when the file does not
// exist and an ErrCursorCorrupt error when it cannot be trusted.
func (f *CursorFile) Load() (*Cursor, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cursor: %w", err)
	}
	var c Cursor
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c to a temporary file, fsyncs it and renames it over the
// cursor file.
func (f *CursorFile) Save(c *Cursor) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid cursor: %w", err)
	}
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create cursor directory: %w", err)
	}

	file, err := atomicfile.New(f.path, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create cursor file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Abort()
		return fmt.Errorf("failed to write cursor: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Abort()
		return fmt.Errorf("failed to sync cursor: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to replace cursor: %w", err)
	}
	return nil
}
