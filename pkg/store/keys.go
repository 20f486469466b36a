package store

import (
	"encoding/hex"
	"path"
	"strings"

	"github.com/rollkit/sequencer-relayer/types"
)

const (
	journalPrefix = "journal"
)

func getJournalKey(id types.Hash) string {
	return GenerateKey([]string{journalPrefix, hex.EncodeToString(id[:])})
}

func getJournalPrefix() string {
	return GenerateKey([]string{journalPrefix})
}

// GenerateKey creates a key from a slice of string fields, joining them with
// slashes.
func GenerateKey(fields []string) string {
	key := "/" + strings.Join(fields, "/")
	return path.Clean(key)
}
