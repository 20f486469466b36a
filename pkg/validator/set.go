package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/rollkit/sequencer-relayer/types"
)

// MaxTotalVotingPower bounds the summed power of a set so that quorum
// arithmetic cannot overflow.
const MaxTotalVotingPower = int64(math.MaxInt64) / 8

// Member is one validator of the set.
type Member struct {
	Address types.Address
	PubKey  ed25519.PubKey
	Power   int64
}

// ValidatorSet is an immutable snapshot of the trusted validators.
type ValidatorSet struct {
	members    map[types.Address]Member
	totalPower int64
}

// NewValidatorSet builds a set. Every member needs a 32 byte key and
// positive power; keys must be unique.
func NewValidatorSet(members []Member) (*ValidatorSet, error) {
	vs := &ValidatorSet{members: make(map[types.Address]Member, len(members))}
	for _, m := range members {
		if len(m.PubKey) != ed25519.PubKeySize {
			return nil, fmt.Errorf("%w: public key of %d bytes", ErrInvalidValidatorSet, len(m.PubKey))
		}
		if m.Power <= 0 {
			return nil, fmt.Errorf("%w: validator %X has power %d", ErrInvalidValidatorSet, m.PubKey.Address(), m.Power)
		}
		copy(m.Address[:], m.PubKey.Address())
		if _, dup := vs.members[m.Address]; dup {
			return nil, fmt.Errorf("%w: duplicate validator %s", ErrInvalidValidatorSet, m.Address)
		}
		vs.members[m.Address] = m
		vs.totalPower += m.Power
		if vs.totalPower > MaxTotalVotingPower {
			return nil, fmt.Errorf("%w: total voting power exceeds %d", ErrInvalidValidatorSet, MaxTotalVotingPower)
		}
	}
	if len(vs.members) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidValidatorSet)
	}
	return vs, nil
}

// Size returns the number of validators.
func (vs *ValidatorSet) Size() int {
	return len(vs.members)
}

// TotalPower returns the summed voting power.
func (vs *ValidatorSet) TotalPower() int64 {
	return vs.totalPower
}

// Get returns the member with the given address.
func (vs *ValidatorSet) Get(addr types.Address) (Member, bool) {
	m, ok := vs.members[addr]
	return m, ok
}

// Members returns the validators ordered by address.
func (vs *ValidatorSet) Members() []Member {
	out := make([]Member, 0, len(vs.members))
	for _, m := range vs.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Address[:]) < string(out[j].Address[:])
	})
	return out
}

// Apply returns a new set with the updates applied in order. Power zero
// removes a validator, any other power adds or replaces it.
func (vs *ValidatorSet) Apply(updates []types.ValidatorUpdateAction) (*ValidatorSet, error) {
	if len(updates) == 0 {
		return vs, nil
	}
	next := make(map[types.Address]Member, len(vs.members))
	for addr, m := range vs.members {
		next[addr] = m
	}
	for _, u := range updates {
		pk := ed25519.PubKey(append([]byte(nil), u.PubKey[:]...))
		var addr types.Address
		copy(addr[:], pk.Address())
		switch {
		case u.Power == 0:
			delete(next, addr)
		case u.Power < 0:
			return nil, fmt.Errorf("%w: negative power %d for %s", ErrInvalidValidatorSet, u.Power, addr)
		default:
			next[addr] = Member{PubKey: pk, Power: u.Power}
		}
	}
	members := make([]Member, 0, len(next))
	for _, m := range next {
		members = append(members, m)
	}
	return NewValidatorSet(members)
}

type memberJSON struct {
	PubKey []byte `json:"pub_key"`
	Power  int64  `json:"power"`
}

// MarshalJSON encodes the set as [{"pub_key": base64, "power": n}].
func (vs *ValidatorSet) MarshalJSON() ([]byte, error) {
	members := vs.Members()
	out := make([]memberJSON, len(members))
	for i, m := range members {
		out[i] = memberJSON{PubKey: m.PubKey, Power: m.Power}
	}
	return json.Marshal(out)
}

// ParseValidatorSet decodes the JSON form produced by MarshalJSON.
func ParseValidatorSet(data []byte) (*ValidatorSet, error) {
	var raw []memberJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValidatorSet, err)
	}
	members := make([]Member, len(raw))
	for i, r := range raw {
		members[i] = Member{PubKey: ed25519.PubKey(r.PubKey), Power: r.Power}
	}
	return NewValidatorSet(members)
}

// LoadValidatorSet reads a validator set file.
func LoadValidatorSet(path string) (*ValidatorSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read validator set: %w", err)
	}
	return ParseValidatorSet(data)
}
