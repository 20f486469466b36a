package types

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/rollkit/sequencer-relayer/pkg/merkle"
)

// ActionGroup is the set of rollup data payloads of one transaction destined
// to one namespace. Its encoding is a leaf of the action tree.
type ActionGroup struct {
	TxIndex   int
	Namespace Namespace
	Payloads  [][]byte
}

// Leaf returns the canonical leaf bytes of the group:
// namespace || repeated(u32 LE len || payload).
func (g *ActionGroup) Leaf() []byte {
	size := NamespaceSize
	for _, p := range g.Payloads {
		size += 4 + len(p)
	}
	leaf := make([]byte, 0, size)
	leaf = append(leaf, g.Namespace[:]...)
	for _, p := range g.Payloads {
		leaf = binary.LittleEndian.AppendUint32(leaf, uint32(len(p)))
		leaf = append(leaf, p...)
	}
	return leaf
}

// ParseLeaf splits an action tree leaf into its namespace and payloads.
func ParseLeaf(leaf []byte) (Namespace, [][]byte, error) {
	var ns Namespace
	if len(leaf) < NamespaceSize {
		return ns, nil, fmt.Errorf("%w: leaf shorter than namespace", ErrMalformed)
	}
	copy(ns[:], leaf)
	rest := leaf[NamespaceSize:]
	var payloads [][]byte
	for len(rest) > 0 {
		if len(rest) < 4 {
			return ns, nil, fmt.Errorf("%w: truncated payload length", ErrMalformed)
		}
		n := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		if uint64(len(rest)) < uint64(n) {
			return ns, nil, fmt.Errorf("%w: truncated payload", ErrMalformed)
		}
		payloads = append(payloads, rest[:n])
		rest = rest[n:]
	}
	return ns, payloads, nil
}

// GroupRollupData groups the rollup data actions of every transaction by
// namespace. Groups are ordered by transaction index, then namespace ascending;
// payloads keep their order within the transaction.
func GroupRollupData(txs []SignedTransaction) []ActionGroup {
	var groups []ActionGroup
	for i, tx := range txs {
		byNamespace := make(map[Namespace]*ActionGroup)
		var order []Namespace
		for _, action := range tx.Actions {
			rd, ok := action.(RollupDataAction)
			if !ok {
				continue
			}
			ns := rd.RollupID.Namespace()
			g, ok := byNamespace[ns]
			if !ok {
				g = &ActionGroup{TxIndex: i, Namespace: ns}
				byNamespace[ns] = g
				order = append(order, ns)
			}
			g.Payloads = append(g.Payloads, rd.Data)
		}
		slices.SortFunc(order, Namespace.Compare)
		for _, ns := range order {
			groups = append(groups, *byNamespace[ns])
		}
	}
	return groups
}

// GenerateActionTreeLeaves returns the leaves the sequencer commits to in a
// block's action tree root.
func GenerateActionTreeLeaves(txs []SignedTransaction) [][]byte {
	groups := GroupRollupData(txs)
	leaves := make([][]byte, len(groups))
	for i := range groups {
		leaves[i] = groups[i].Leaf()
	}
	return leaves
}

// ActionTreeRoot computes the action tree root over txs.
func ActionTreeRoot(txs []SignedTransaction) Hash {
	return merkle.Root(GenerateActionTreeLeaves(txs))
}
