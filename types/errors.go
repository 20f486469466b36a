package types

import "errors"

var (
	// ErrMalformed is returned when bytes cannot be decoded into the expected type.
	ErrMalformed = errors.New("malformed encoding")

	// ErrUnknownAction is returned when an encoded action carries no known variant.
	ErrUnknownAction = errors.New("unknown action variant")

	// ErrBlobMagic is returned when a DA blob does not start with BlobMagic.
	ErrBlobMagic = errors.New("invalid blob magic")

	// ErrBlobVersion is returned when a DA blob carries an unsupported version.
	ErrBlobVersion = errors.New("unsupported blob version")

	// ErrNonContiguous is returned when blob records do not cover first..last height in order.
	ErrNonContiguous = errors.New("non contiguous heights")
)
