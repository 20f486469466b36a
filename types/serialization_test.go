package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestBlockWireRoundTrip(t *testing.T) {
	vals := GenerateValidators(2, 5)
	txs := []SignedTransaction{
		RollupDataTx("rollup-a", []byte("hello"), []byte("world")),
		{
			Nonce: 7,
			Actions: []Action{
				BridgeLockAction{To: Address{1}, Amount: 100, Asset: "nria", DestinationChainAddress: "0xabc"},
				BridgeUnlockAction{To: Address{2}, Amount: 50, Asset: "nria", Memo: "memo"},
				ValidatorUpdateAction{PubKey: vals[1].PubKey(), Power: 12},
				SudoAddressChangeAction{NewAddress: Address{3}},
			},
			PubKey:    vals[0].PubKey(),
			Signature: []byte("sig"),
		},
	}
	block := MakeSignedBlock("sequencer-test", 42, txs, vals)
	block.Commit.Round = 2
	SignBlock(block, vals)

	data, err := block.MarshalDelimited()
	require.NoError(t, err)

	decoded, n, err := UnmarshalDelimited(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, block, decoded)
	assert.Equal(t, block.Hash(), decoded.Hash())
}

func TestUnmarshalDelimitedTruncated(t *testing.T) {
	block := MakeSignedBlock("sequencer-test", 1, nil, GenerateValidators(1, 1))
	data, err := block.MarshalDelimited()
	require.NoError(t, err)

	_, _, err = UnmarshalDelimited(data[:len(data)-1])
	require.ErrorIs(t, err, ErrMalformed)

	_, _, err = UnmarshalDelimited(nil)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestUnmarshalRejectsBadFixedFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, fieldBlockProposer, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{1, 2, 3})

	var block SequencerBlock
	require.ErrorIs(t, block.UnmarshalBinary(b), ErrMalformed)
}

func TestUnmarshalUnknownAction(t *testing.T) {
	var tx []byte
	tx = protowire.AppendTag(tx, fieldTxActions, protowire.BytesType)
	tx = protowire.AppendBytes(tx, protowire.AppendVarint(protowire.AppendTag(nil, 99, protowire.VarintType), 1))

	var out SignedTransaction
	require.ErrorIs(t, unmarshalTransaction(&out, tx), ErrUnknownAction)
}

func TestHeaderHashCoversFields(t *testing.T) {
	block := MakeSignedBlock("sequencer-test", 9, nil, GenerateValidators(1, 1))
	h1 := block.Hash()

	block.ActionTreeRoot[0] ^= 1
	assert.NotEqual(t, h1, block.Hash())
}

func TestVoteSignBytesDifferPerRound(t *testing.T) {
	hash := Hash{9}
	assert.NotEqual(t, VoteSignBytes("c", 1, 0, hash), VoteSignBytes("c", 1, 1, hash))
	assert.NotEqual(t, VoteSignBytes("c", 1, 0, hash), VoteSignBytes("d", 1, 0, hash))
}
