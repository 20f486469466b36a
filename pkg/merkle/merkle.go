// Package merkle implements the binary Merkle tree committed to by a
// sequencer block's action tree root.
//
// Leaves are hashed as sha256(0x00 || leaf) and inner nodes as
// sha256(0x01 || left || right). When a level has an odd number of nodes the
// last node is paired with itself.
package merkle

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/minio/sha256-simd"
)

// HashSize is the size of every node in the tree.
const HashSize = sha256.Size

var (
	leafPrefix = []byte{0}
	nodePrefix = []byte{1}
)

// ErrOutOfBounds is returned by Prove when the requested leaf does not exist.
var ErrOutOfBounds = errors.New("leaf index out of bounds")

// InclusionProof proves that a leaf is part of a tree with a given root.
type InclusionProof struct {
	LeafIndex     uint64
	TotalLeaves   uint64
	SiblingHashes [][HashSize]byte
}

// LeafHash returns the domain separated hash of a leaf.
func LeafHash(leaf []byte) [HashSize]byte {
	h := sha256.New()
	h.Write(leafPrefix)
	h.Write(leaf)
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NodeHash returns the domain separated hash of an inner node.
func NodeHash(left, right [HashSize]byte) [HashSize]byte {
	h := sha256.New()
	h.Write(nodePrefix)
	h.Write(left[:])
	h.Write(right[:])
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EmptyRoot is the root of a tree without leaves.
func EmptyRoot() [HashSize]byte {
	return sha256.Sum256(leafPrefix)
}

// Root returns the root of the tree built over leaves.
func Root(leaves [][]byte) [HashSize]byte {
	return NewTree(leaves).Root()
}

// Prove returns an inclusion proof for leaves[index].
func Prove(leaves [][]byte, index uint64) (*InclusionProof, error) {
	return NewTree(leaves).Prove(index)
}

// Verify reports whether proof shows that leaf is included under root.
func Verify(proof *InclusionProof, leaf []byte, root [HashSize]byte) bool {
	if proof == nil || proof.TotalLeaves == 0 || proof.LeafIndex >= proof.TotalLeaves {
		return false
	}
	if len(proof.SiblingHashes) != proofLength(proof.TotalLeaves) {
		return false
	}

	node := LeafHash(leaf)
	index := proof.LeafIndex
	for _, sibling := range proof.SiblingHashes {
		if index%2 == 0 {
			node = NodeHash(node, sibling)
		} else {
			node = NodeHash(sibling, node)
		}
		index /= 2
	}
	return node == root
}

// Tree keeps every level of a Merkle tree so that proofs for all leaves can
// be produced without rehashing.
type Tree struct {
	// levels[0] holds the leaf hashes, the last level holds the root.
	levels [][][HashSize]byte
}

// NewTree hashes leaves and builds all levels of the tree.
func NewTree(leaves [][]byte) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}

	level := make([][HashSize]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = LeafHash(leaf)
	}
	levels := [][][HashSize]byte{level}
	for len(level) > 1 {
		next := make([][HashSize]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, NodeHash(level[i], right))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Root returns the root hash.
func (t *Tree) Root() [HashSize]byte {
	if len(t.levels) == 0 {
		return EmptyRoot()
	}
	return t.levels[len(t.levels)-1][0]
}

// Prove returns the inclusion proof of the leaf at index.
func (t *Tree) Prove(index uint64) (*InclusionProof, error) {
	total := uint64(t.Len())
	if index >= total {
		return nil, fmt.Errorf("%w: index %d, leaves %d", ErrOutOfBounds, index, total)
	}

	siblings := make([][HashSize]byte, 0, proofLength(total))
	i := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := i ^ 1
		if sibling >= uint64(len(level)) {
			sibling = i
		}
		siblings = append(siblings, level[sibling])
		i /= 2
	}

	return &InclusionProof{
		LeafIndex:     index,
		TotalLeaves:   total,
		SiblingHashes: siblings,
	}, nil
}

// proofLength is ceil(log2(n)).
func proofLength(n uint64) int {
	if n <= 1 {
		return 0
	}
	return bits.Len64(n - 1)
}
