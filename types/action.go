package types

// ActionKind enumerates the closed set of sequencer actions.
type ActionKind uint8

const (
	ActionKindUnknown ActionKind = iota
	ActionKindRollupData
	ActionKindBridgeLock
	ActionKindBridgeUnlock
	ActionKindValidatorUpdate
	ActionKindSudoAddressChange
)

func (k ActionKind) String() string {
	switch k {
	case ActionKindRollupData:
		return "rollup_data"
	case ActionKindBridgeLock:
		return "bridge_lock"
	case ActionKindBridgeUnlock:
		return "bridge_unlock"
	case ActionKindValidatorUpdate:
		return "validator_update"
	case ActionKindSudoAddressChange:
		return "sudo_address_change"
	default:
		return "unknown"
	}
}

// Action is one operation inside a signed sequencer transaction. The set of
// implementations is closed to this package.
type Action interface {
	Kind() ActionKind
	isAction()
}

// RollupDataAction carries opaque data destined for a rollup. It is the only
// action the relayer forwards to the DA layer.
type RollupDataAction struct {
	RollupID RollupID
	Data     []byte
}

// BridgeLockAction locks funds on the sequencer for a bridge account.
type BridgeLockAction struct {
	To                      Address
	Amount                  uint64
	Asset                   string
	DestinationChainAddress string
}

// BridgeUnlockAction releases funds from a bridge account.
type BridgeUnlockAction struct {
	To     Address
	Amount uint64
	Asset  string
	Memo   string
}

// ValidatorUpdateAction changes the voting power of a validator. A power of
// zero removes the validator from the set.
type ValidatorUpdateAction struct {
	PubKey [PubKeySize]byte
	Power  int64
}

// SudoAddressChangeAction rotates the sequencer's sudo address.
type SudoAddressChangeAction struct {
	NewAddress Address
}

func (RollupDataAction) Kind() ActionKind        { return ActionKindRollupData }
func (BridgeLockAction) Kind() ActionKind        { return ActionKindBridgeLock }
func (BridgeUnlockAction) Kind() ActionKind      { return ActionKindBridgeUnlock }
func (ValidatorUpdateAction) Kind() ActionKind   { return ActionKindValidatorUpdate }
func (SudoAddressChangeAction) Kind() ActionKind { return ActionKindSudoAddressChange }

func (RollupDataAction) isAction()        {}
func (BridgeLockAction) isAction()        {}
func (BridgeUnlockAction) isAction()      {}
func (ValidatorUpdateAction) isAction()   {}
func (SudoAddressChangeAction) isAction() {}

// SignedTransaction is a transaction included in a sequencer block.
type SignedTransaction struct {
	Nonce     uint32
	Actions   []Action
	PubKey    [PubKeySize]byte
	Signature []byte
}

// ValidatorUpdates returns every validator update contained in txs, in order.
func ValidatorUpdates(txs []SignedTransaction) []ValidatorUpdateAction {
	var updates []ValidatorUpdateAction
	for _, tx := range txs {
		for _, action := range tx.Actions {
			if u, ok := action.(ValidatorUpdateAction); ok {
				updates = append(updates, u)
			}
		}
	}
	return updates
}
