package da

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
)

// NamespacedBlob is a blob and the namespace it is posted under.
type NamespacedBlob struct {
	Namespace []byte
	Data      Blob
}

// ClientConfig configures the retrying DA client.
type ClientConfig struct {
	// GasPrice is passed to every submission. Negative values let the DA
	// node choose.
	GasPrice float64
	// ConfirmNamespace is the namespace queried by Confirm.
	ConfirmNamespace []byte
	// MaxRetries bounds the number of retries of a transient failure.
	MaxRetries uint64
	// InitialBackoff and MaxBackoff bound the jittered exponential backoff
	// between retries.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultClientConfig returns the client settings used by the relayer.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		GasPrice:       -1,
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Client wraps a DA implementation with the submit and confirm operations of
// the relayer. Transient failures are retried with backoff; permanent ones
// are returned immediately as *PermanentError.
type Client struct {
	da     DA
	logger log.Logger
	cfg    ClientConfig
}

// NewClient returns a Client over da.
func NewClient(da DA, logger log.Logger, cfg ClientConfig) *Client {
	return &Client{da: da, logger: logger.With("module", "da_client"), cfg: cfg}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
}

// retry runs op until it succeeds, fails permanently or retries run out.
func (c *Client) retry(ctx context.Context, name string, op func() error) error {
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op()
		switch {
		case err == nil:
			return nil
		case IsPermanent(err):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, c.newBackOff(ctx), func(err error, next time.Duration) {
		c.logger.Warn("DA call failed, retrying", "op", name, "attempt", attempts, "backoff", next, "error", err)
	})
	if err == nil || IsPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransientError{Op: name, Attempts: attempts, Err: err}
}

// Submit posts blobs to the DA layer and waits for inclusion.
func (c *Client) Submit(ctx context.Context, blobs []NamespacedBlob) (SubmitReceipt, error) {
	data := make([]Blob, len(blobs))
	namespaces := make([][]byte, len(blobs))
	size := 0
	for i, b := range blobs {
		data[i] = b.Data
		namespaces[i] = b.Namespace
		size += len(b.Data)
	}

	var receipt SubmitReceipt
	err := c.retry(ctx, "submit", func() error {
		ids, err := c.da.Submit(ctx, data, c.cfg.GasPrice, namespaces)
		if err != nil {
			return err
		}
		if len(ids) != len(data) {
			return fmt.Errorf("DA accepted %d of %d blobs", len(ids), len(data))
		}
		receipt = SubmitReceipt{Commitments: make([]Commitment, len(ids))}
		for i, id := range ids {
			height, commitment, err := SplitID(id)
			if err != nil {
				return err
			}
			receipt.DAHeight = max(receipt.DAHeight, height)
			receipt.Commitments[i] = commitment
		}
		return nil
	})
	if err != nil {
		return SubmitReceipt{}, err
	}
	c.logger.Debug("submitted blobs", "count", len(blobs), "bytes", size, "da_height", receipt.DAHeight)
	return receipt, nil
}

// Confirm reports whether commitment is included at daHeight under the
// confirm namespace. It does not apply a confirmation depth.
func (c *Client) Confirm(ctx context.Context, daHeight uint64, commitment Commitment) (Confirmation, error) {
	head, err := c.Head(ctx)
	if err != nil {
		return Confirmation{}, err
	}
	if head < daHeight {
		return Confirmation{Status: StatusPending, HeadHeight: head}, nil
	}

	var res *GetIDsResult
	err = c.retry(ctx, "get_ids", func() error {
		var err error
		res, err = c.da.GetIDs(ctx, daHeight, c.cfg.ConfirmNamespace)
		if errors.Is(err, ErrHeightFromFuture) {
			return backoff.Permanent(err)
		}
		return err
	})
	if errors.Is(err, ErrHeightFromFuture) {
		return Confirmation{Status: StatusPending, HeadHeight: head}, nil
	}
	if err != nil {
		return Confirmation{}, err
	}

	for _, id := range res.IDs {
		_, got, err := SplitID(id)
		if err != nil {
			continue
		}
		if bytes.Equal(got, commitment) {
			return Confirmation{Status: StatusConfirmed, HeadHeight: head}, nil
		}
	}
	return Confirmation{Status: StatusNotFound, HeadHeight: head}, nil
}

// Head returns the latest DA height.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.retry(ctx, "head", func() error {
		var err error
		head, err = c.da.Head(ctx)
		return err
	})
	return head, err
}

// MaxBlobSize returns the DA blob size limit.
func (c *Client) MaxBlobSize(ctx context.Context) (uint64, error) {
	var size uint64
	err := c.retry(ctx, "max_blob_size", func() error {
		var err error
		size, err = c.da.MaxBlobSize(ctx)
		return err
	})
	return size, err
}

// Commitment computes the commitment the DA layer assigns to blob.
func (c *Client) Commitment(ctx context.Context, blob NamespacedBlob) (Commitment, error) {
	var out []Commitment
	err := c.retry(ctx, "commit", func() error {
		var err error
		out, err = c.da.Commit(ctx, []Blob{blob.Data}, blob.Namespace)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("DA returned %d commitments for one blob", len(out))
	}
	return out[0], nil
}

// Retrieve returns every blob at daHeight under namespace.
func (c *Client) Retrieve(ctx context.Context, daHeight uint64, namespace []byte) ([]Blob, error) {
	var blobs []Blob
	err := c.retry(ctx, "retrieve", func() error {
		res, err := c.da.GetIDs(ctx, daHeight, namespace)
		if err != nil {
			return err
		}
		if len(res.IDs) == 0 {
			blobs = nil
			return nil
		}
		blobs, err = c.da.Get(ctx, res.IDs, namespace)
		return err
	})
	return blobs, err
}
