package types

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the sequencer wire schema.
const (
	fieldBlockHeight         protowire.Number = 1
	fieldBlockTime           protowire.Number = 2
	fieldBlockChainID        protowire.Number = 3
	fieldBlockProposer       protowire.Number = 4
	fieldBlockDataHash       protowire.Number = 5
	fieldBlockActionTreeRoot protowire.Number = 6
	fieldBlockTransactions   protowire.Number = 7
	fieldBlockCommit         protowire.Number = 8

	fieldTxNonce     protowire.Number = 1
	fieldTxActions   protowire.Number = 2
	fieldTxPubKey    protowire.Number = 3
	fieldTxSignature protowire.Number = 4

	fieldActionRollupData        protowire.Number = 1
	fieldActionBridgeLock        protowire.Number = 2
	fieldActionBridgeUnlock      protowire.Number = 3
	fieldActionValidatorUpdate   protowire.Number = 4
	fieldActionSudoAddressChange protowire.Number = 5

	fieldCommitHeight     protowire.Number = 1
	fieldCommitRound      protowire.Number = 2
	fieldCommitBlockHash  protowire.Number = 3
	fieldCommitSignatures protowire.Number = 4

	fieldSigValidator protowire.Number = 1
	fieldSigTimestamp protowire.Number = 2
	fieldSigSignature protowire.Number = 3
)

// MarshalBinary encodes the header fields in canonical order.
func (h *Header) MarshalBinary() []byte {
	return appendHeader(nil, h)
}

func appendHeader(b []byte, h *Header) []byte {
	b = appendVarintField(b, fieldBlockHeight, h.Height)
	b = appendVarintField(b, fieldBlockTime, h.Time)
	b = appendBytesField(b, fieldBlockChainID, []byte(h.ChainID))
	b = appendBytesField(b, fieldBlockProposer, h.ProposerAddress[:])
	b = appendBytesField(b, fieldBlockDataHash, h.DataHash[:])
	b = appendBytesField(b, fieldBlockActionTreeRoot, h.ActionTreeRoot[:])
	return b
}

// MarshalBinary encodes the block into the sequencer wire format.
func (b *SequencerBlock) MarshalBinary() ([]byte, error) {
	h := b.Header()
	out := appendHeader(nil, &h)
	for i := range b.Transactions {
		tx, err := marshalTransaction(&b.Transactions[i])
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = appendBytesField(out, fieldBlockTransactions, tx)
	}
	out = appendBytesField(out, fieldBlockCommit, marshalCommit(&b.Commit))
	return out, nil
}

// UnmarshalBinary decodes a block from the sequencer wire format.
func (b *SequencerBlock) UnmarshalBinary(data []byte) error {
	*b = SequencerBlock{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		var err error
		switch num {
		case fieldBlockHeight:
			b.Height = v
		case fieldBlockTime:
			b.Time = v
		case fieldBlockChainID:
			b.ChainID = string(raw)
		case fieldBlockProposer:
			err = copyFixed(b.ProposerAddress[:], raw, "proposer_address")
		case fieldBlockDataHash:
			err = copyFixed(b.DataHash[:], raw, "data_hash")
		case fieldBlockActionTreeRoot:
			err = copyFixed(b.ActionTreeRoot[:], raw, "action_tree_root")
		case fieldBlockTransactions:
			var tx SignedTransaction
			if err = unmarshalTransaction(&tx, raw); err == nil {
				b.Transactions = append(b.Transactions, tx)
			}
		case fieldBlockCommit:
			err = unmarshalCommit(&b.Commit, raw)
		}
		return err
	})
}

// MarshalDelimited encodes the block prefixed with its varint length.
func (b *SequencerBlock) MarshalDelimited() ([]byte, error) {
	msg, err := b.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := protowire.AppendVarint(make([]byte, 0, len(msg)+protowire.SizeVarint(uint64(len(msg)))), uint64(len(msg)))
	return append(out, msg...), nil
}

// UnmarshalDelimited decodes one length-delimited block from the front of
// data and returns the number of bytes consumed.
func UnmarshalDelimited(data []byte) (*SequencerBlock, int, error) {
	size, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
	}
	if uint64(len(data)-n) < size {
		return nil, 0, fmt.Errorf("%w: delimited message truncated", ErrMalformed)
	}
	var block SequencerBlock
	if err := block.UnmarshalBinary(data[n : n+int(size)]); err != nil {
		return nil, 0, err
	}
	return &block, n + int(size), nil
}

func marshalTransaction(tx *SignedTransaction) ([]byte, error) {
	var b []byte
	b = appendVarintField(b, fieldTxNonce, uint64(tx.Nonce))
	for i, action := range tx.Actions {
		a, err := marshalAction(action)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		b = appendBytesField(b, fieldTxActions, a)
	}
	b = appendBytesField(b, fieldTxPubKey, tx.PubKey[:])
	b = appendBytesField(b, fieldTxSignature, tx.Signature)
	return b, nil
}

func unmarshalTransaction(tx *SignedTransaction, data []byte) error {
	return walkFields(data, func(num protowire.Number, _ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case fieldTxNonce:
			tx.Nonce = uint32(v)
		case fieldTxActions:
			action, err := unmarshalAction(raw)
			if err != nil {
				return err
			}
			tx.Actions = append(tx.Actions, action)
		case fieldTxPubKey:
			return copyFixed(tx.PubKey[:], raw, "pub_key")
		case fieldTxSignature:
			tx.Signature = append([]byte{}, raw...)
		}
		return nil
	})
}

func marshalAction(action Action) ([]byte, error) {
	var inner []byte
	var num protowire.Number
	switch a := action.(type) {
	case RollupDataAction:
		num = fieldActionRollupData
		inner = appendBytesField(inner, 1, []byte(a.RollupID))
		inner = appendBytesField(inner, 2, a.Data)
	case BridgeLockAction:
		num = fieldActionBridgeLock
		inner = appendBytesField(inner, 1, a.To[:])
		inner = appendVarintField(inner, 2, a.Amount)
		inner = appendBytesField(inner, 3, []byte(a.Asset))
		inner = appendBytesField(inner, 4, []byte(a.DestinationChainAddress))
	case BridgeUnlockAction:
		num = fieldActionBridgeUnlock
		inner = appendBytesField(inner, 1, a.To[:])
		inner = appendVarintField(inner, 2, a.Amount)
		inner = appendBytesField(inner, 3, []byte(a.Asset))
		inner = appendBytesField(inner, 4, []byte(a.Memo))
	case ValidatorUpdateAction:
		num = fieldActionValidatorUpdate
		inner = appendBytesField(inner, 1, a.PubKey[:])
		inner = appendVarintField(inner, 2, uint64(a.Power))
	case SudoAddressChangeAction:
		num = fieldActionSudoAddressChange
		inner = appendBytesField(inner, 1, a.NewAddress[:])
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
	return appendBytesField(nil, num, inner), nil
}

func unmarshalAction(data []byte) (Action, error) {
	var action Action
	err := walkFields(data, func(num protowire.Number, _ protowire.Type, _ uint64, raw []byte) error {
		var err error
		switch num {
		case fieldActionRollupData:
			var a RollupDataAction
			err = walkFields(raw, func(n protowire.Number, _ protowire.Type, _ uint64, r []byte) error {
				switch n {
				case 1:
					a.RollupID = RollupID(r)
				case 2:
					a.Data = append([]byte(nil), r...)
				}
				return nil
			})
			action = a
		case fieldActionBridgeLock:
			var a BridgeLockAction
			err = walkFields(raw, func(n protowire.Number, _ protowire.Type, v uint64, r []byte) error {
				switch n {
				case 1:
					return copyFixed(a.To[:], r, "to")
				case 2:
					a.Amount = v
				case 3:
					a.Asset = string(r)
				case 4:
					a.DestinationChainAddress = string(r)
				}
				return nil
			})
			action = a
		case fieldActionBridgeUnlock:
			var a BridgeUnlockAction
			err = walkFields(raw, func(n protowire.Number, _ protowire.Type, v uint64, r []byte) error {
				switch n {
				case 1:
					return copyFixed(a.To[:], r, "to")
				case 2:
					a.Amount = v
				case 3:
					a.Asset = string(r)
				case 4:
					a.Memo = string(r)
				}
				return nil
			})
			action = a
		case fieldActionValidatorUpdate:
			var a ValidatorUpdateAction
			err = walkFields(raw, func(n protowire.Number, _ protowire.Type, v uint64, r []byte) error {
				switch n {
				case 1:
					return copyFixed(a.PubKey[:], r, "pub_key")
				case 2:
					a.Power = int64(v)
				}
				return nil
			})
			action = a
		case fieldActionSudoAddressChange:
			var a SudoAddressChangeAction
			err = walkFields(raw, func(n protowire.Number, _ protowire.Type, _ uint64, r []byte) error {
				if n == 1 {
					return copyFixed(a.NewAddress[:], r, "new_address")
				}
				return nil
			})
			action = a
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, ErrUnknownAction
	}
	return action, nil
}

func marshalCommit(c *Commit) []byte {
	var b []byte
	b = appendVarintField(b, fieldCommitHeight, c.Height)
	b = appendVarintField(b, fieldCommitRound, uint64(c.Round))
	b = appendBytesField(b, fieldCommitBlockHash, c.BlockHash[:])
	for _, sig := range c.Signatures {
		var s []byte
		s = appendBytesField(s, fieldSigValidator, sig.ValidatorAddress[:])
		s = appendVarintField(s, fieldSigTimestamp, sig.Timestamp)
		s = appendBytesField(s, fieldSigSignature, sig.Signature)
		b = appendBytesField(b, fieldCommitSignatures, s)
	}
	return b
}

func unmarshalCommit(c *Commit, data []byte) error {
	return walkFields(data, func(num protowire.Number, _ protowire.Type, v uint64, raw []byte) error {
		switch num {
		case fieldCommitHeight:
			c.Height = v
		case fieldCommitRound:
			c.Round = int32(v)
		case fieldCommitBlockHash:
			return copyFixed(c.BlockHash[:], raw, "block_hash")
		case fieldCommitSignatures:
			var sig CommitSig
			err := walkFields(raw, func(n protowire.Number, _ protowire.Type, v uint64, r []byte) error {
				switch n {
				case fieldSigValidator:
					return copyFixed(sig.ValidatorAddress[:], r, "validator_address")
				case fieldSigTimestamp:
					sig.Timestamp = v
				case fieldSigSignature:
					sig.Signature = append([]byte(nil), r...)
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.Signatures = append(c.Signatures, sig)
		}
		return nil
	})
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// walkFields calls fn for every field in data. Varint fields are passed in v,
// length-delimited fields in raw. Other wire types are skipped.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		data = data[n:]
		if err := fn(num, typ, v, raw); err != nil {
			return err
		}
	}
	return nil
}

func copyFixed(dst, src []byte, field string) error {
	if len(src) != len(dst) {
		return fmt.Errorf("%w: %s has %d bytes, want %d", ErrMalformed, field, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
