package da

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrBlobSizeOverLimit = errors.New("blob size over limit")
	ErrBlobNotFound      = errors.New("blob not found")
	ErrHeightFromFuture  = errors.New("given height is from the future")
	ErrNamespaceInvalid  = errors.New("invalid namespace")
	ErrUnauthorized      = errors.New("unauthorized")
)

// PermanentError is a DA failure that retrying cannot fix, such as an
// oversized blob, a malformed namespace or rejected credentials.
type PermanentError struct {
	Reason string
	cause  error
}

// NewPermanentError marks cause as permanent.
func NewPermanentError(cause error) *PermanentError {
	return &PermanentError{Reason: cause.Error(), cause: cause}
}

func (e *PermanentError) Error() string {
	return "permanent DA error: " + e.Reason
}

func (e *PermanentError) Unwrap() error {
	return e.cause
}

// MarshalJSON lets the JSON-RPC server carry the reason to clients.
func (e *PermanentError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Reason string `json:"reason"`
	}{e.Reason})
}

// UnmarshalJSON restores an error sent by the JSON-RPC server.
func (e *PermanentError) UnmarshalJSON(data []byte) error {
	var v struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	e.Reason = v.Reason
	for _, known := range []error{ErrBlobSizeOverLimit, ErrNamespaceInvalid, ErrUnauthorized} {
		if v.Reason == known.Error() {
			e.cause = known
		}
	}
	return nil
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// TransientError wraps a failure that survived the client's internal retries.
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient DA error: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FutureHeightError is returned for a height above the DA head. It matches
// ErrHeightFromFuture with errors.Is, also after a JSON-RPC round trip.
type FutureHeightError struct {
	Requested uint64 `json:"requested"`
	Head      uint64 `json:"head"`
}

func (e *FutureHeightError) Error() string {
	return fmt.Sprintf("%s: requested %d, current %d", ErrHeightFromFuture, e.Requested, e.Head)
}

func (e *FutureHeightError) Is(target error) bool {
	return target == ErrHeightFromFuture
}

type futureHeightJSON FutureHeightError

// MarshalJSON lets the JSON-RPC server carry the heights to clients.
func (e *FutureHeightError) MarshalJSON() ([]byte, error) {
	return json.Marshal((*futureHeightJSON)(e))
}

// UnmarshalJSON restores an error sent by the JSON-RPC server.
func (e *FutureHeightError) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, (*futureHeightJSON)(e))
}
