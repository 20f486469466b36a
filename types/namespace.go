package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
)

// NamespaceSize is the number of bytes of a namespace. It matches the user
// controlled portion of a version 0 Celestia namespace.
const NamespaceSize = 10

// Namespace tags DA blobs belonging to one rollup, or to the sequencer itself.
type Namespace [NamespaceSize]byte

// RollupID identifies a rollup chain. Use NewRollupID to obtain the canonical
// form.
type RollupID string

// NewRollupID canonicalizes id to lower-case ASCII.
func NewRollupID(id string) RollupID {
	b := []byte(id)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return RollupID(b)
}

// Namespace returns the namespace derived from the rollup id.
func (id RollupID) Namespace() Namespace {
	return namespaceFromBytes([]byte(NewRollupID(string(id))))
}

// NamespaceFromChainID returns the namespace under which the sequencer chain
// with the given id publishes its block headers.
func NamespaceFromChainID(chainID string) Namespace {
	return namespaceFromBytes([]byte(NewRollupID(chainID)))
}

func namespaceFromBytes(b []byte) Namespace {
	sum := sha256.Sum256(b)
	var ns Namespace
	copy(ns[:], sum[:NamespaceSize])
	return ns
}

// NamespaceFromBytes parses a namespace of exactly NamespaceSize bytes.
func NamespaceFromBytes(b []byte) (Namespace, error) {
	var ns Namespace
	if len(b) != NamespaceSize {
		return ns, fmt.Errorf("%w: namespace length %d", ErrMalformed, len(b))
	}
	copy(ns[:], b)
	return ns, nil
}

// Bytes returns a copy of the namespace bytes.
func (n Namespace) Bytes() []byte {
	return append([]byte(nil), n[:]...)
}

// Compare orders namespaces bytewise.
func (n Namespace) Compare(other Namespace) int {
	return bytes.Compare(n[:], other[:])
}

func (n Namespace) String() string {
	return hex.EncodeToString(n[:])
}
