package types

import (
	"crypto/rand"
	"time"

	"github.com/cometbft/cometbft/crypto/ed25519"
)

// TestValidator is a validator key used to sign fixture blocks.
type TestValidator struct {
	PrivKey ed25519.PrivKey
	Power   int64
}

// Address returns the validator address.
func (v TestValidator) Address() Address {
	var addr Address
	copy(addr[:], v.PrivKey.PubKey().Address())
	return addr
}

// PubKey returns the raw ed25519 public key.
func (v TestValidator) PubKey() [PubKeySize]byte {
	var pk [PubKeySize]byte
	copy(pk[:], v.PrivKey.PubKey().Bytes())
	return pk
}

// GenerateValidators returns n fresh validators with equal power.
func GenerateValidators(n int, power int64) []TestValidator {
	vals := make([]TestValidator, n)
	for i := range vals {
		vals[i] = TestValidator{PrivKey: ed25519.GenPrivKey(), Power: power}
	}
	return vals
}

// RollupDataTx returns an unsigned transaction carrying one rollup data
// action per payload.
func RollupDataTx(rollup string, payloads ...[]byte) SignedTransaction {
	tx := SignedTransaction{Signature: []byte{}}
	for _, p := range payloads {
		tx.Actions = append(tx.Actions, RollupDataAction{RollupID: NewRollupID(rollup), Data: p})
	}
	return tx
}

// MakeSignedBlock builds a block at height with a correct action tree root,
// proposed by signers[0] and committed by every signer.
func MakeSignedBlock(chainID string, height uint64, txs []SignedTransaction, signers []TestValidator) *SequencerBlock {
	block := &SequencerBlock{
		Height:         height,
		Time:           uint64(time.Unix(1700000000, 0).Add(time.Duration(height) * time.Second).UnixNano()),
		ChainID:        chainID,
		ActionTreeRoot: ActionTreeRoot(txs),
		Transactions:   txs,
	}
	if _, err := rand.Read(block.DataHash[:]); err != nil {
		panic(err)
	}
	if len(signers) > 0 {
		block.ProposerAddress = signers[0].Address()
	}
	SignBlock(block, signers)
	return block
}

// SignBlock replaces the block commit with signatures from signers.
func SignBlock(block *SequencerBlock, signers []TestValidator) {
	block.Commit = Commit{Height: block.Height, Round: block.Commit.Round, BlockHash: block.Hash()}
	msg := block.Commit.SignBytes(block.ChainID)
	for _, s := range signers {
		sig, err := s.PrivKey.Sign(msg)
		if err != nil {
			panic(err)
		}
		block.Commit.Signatures = append(block.Commit.Signatures, CommitSig{
			ValidatorAddress: s.Address(),
			Timestamp:        block.Time,
			Signature:        sig,
		})
	}
}
