package jsonrpc

import (
	"github.com/filecoin-project/go-jsonrpc"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
)

// JSON-RPC error codes of the typed DA errors. The server only maps errors
// whose dynamic type is registered, so implementations return these types
// unwrapped.
const (
	errCodePermanent    jsonrpc.ErrorCode = 32001
	errCodeFutureHeight jsonrpc.ErrorCode = 32002
)

func knownErrors() jsonrpc.Errors {
	errs := jsonrpc.NewErrors()
	errs.Register(errCodePermanent, new(*coreda.PermanentError))
	errs.Register(errCodeFutureHeight, new(*coreda.FutureHeightError))
	return errs
}
