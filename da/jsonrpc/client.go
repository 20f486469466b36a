package jsonrpc

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cosmossdk.io/log"
	"github.com/filecoin-project/go-jsonrpc"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
)

// API defines the jsonrpc service module API
type API struct {
	Logger   log.Logger
	Internal struct {
		MaxBlobSize func(ctx context.Context) (uint64, error)                                              `perm:"read"`
		Get         func(ctx context.Context, ids []coreda.ID, ns []byte) ([]coreda.Blob, error)           `perm:"read"`
		GetIDs      func(ctx context.Context, height uint64, ns []byte) (*coreda.GetIDsResult, error)      `perm:"read"`
		Commit      func(ctx context.Context, blobs []coreda.Blob, ns []byte) ([]coreda.Commitment, error) `perm:"read"`
		Submit      func(context.Context, []coreda.Blob, float64, [][]byte) ([]coreda.ID, error)           `perm:"write"`
		Head        func(ctx context.Context) (uint64, error)                                              `perm:"read"`
	}
}

var _ coreda.DA = (*API)(nil)

// MaxBlobSize returns the max blob size
func (api *API) MaxBlobSize(ctx context.Context) (uint64, error) {
	res, err := api.Internal.MaxBlobSize(ctx)
	err = translateError(err)
	if err != nil {
		api.Logger.Error("RPC call failed", "method", "MaxBlobSize", "error", err)
	} else {
		api.Logger.Debug("RPC call successful", "method", "MaxBlobSize", "result", res)
	}
	return res, err
}

// Get returns Blob for each given ID, or an error.
func (api *API) Get(ctx context.Context, ids []coreda.ID, ns []byte) ([]coreda.Blob, error) {
	api.Logger.Debug("Making RPC call", "method", "Get", "num_ids", len(ids))
	res, err := api.Internal.Get(ctx, ids, ns)
	err = translateError(err)
	if err != nil {
		api.Logger.Error("RPC call failed", "method", "Get", "error", err)
		return nil, fmt.Errorf("failed to get blobs: %w", err)
	}
	api.Logger.Debug("RPC call successful", "method", "Get", "num_blobs_returned", len(res))
	return res, nil
}

// GetIDs returns IDs of all Blobs located in DA at given height.
func (api *API) GetIDs(ctx context.Context, height uint64, ns []byte) (*coreda.GetIDsResult, error) {
	api.Logger.Debug("Making RPC call", "method", "GetIDs", "height", height)
	res, err := api.Internal.GetIDs(ctx, height, ns)
	err = translateError(err)
	if err != nil {
		api.Logger.Error("RPC call failed", "method", "GetIDs", "error", err)
		return nil, err
	}
	if res == nil {
		res = &coreda.GetIDsResult{}
	}
	api.Logger.Debug("RPC call successful", "method", "GetIDs", "num_ids", len(res.IDs))
	return res, nil
}

// Commit creates a Commitment for each given Blob.
func (api *API) Commit(ctx context.Context, blobs []coreda.Blob, ns []byte) ([]coreda.Commitment, error) {
	res, err := api.Internal.Commit(ctx, blobs, ns)
	err = translateError(err)
	if err != nil {
		api.Logger.Error("RPC call failed", "method", "Commit", "error", err)
	}
	return res, err
}

// Submit submits the Blobs to Data Availability layer.
func (api *API) Submit(ctx context.Context, blobs []coreda.Blob, gasPrice float64, namespaces [][]byte) ([]coreda.ID, error) {
	api.Logger.Debug("Making RPC call", "method", "Submit", "num_blobs", len(blobs), "gas_price", gasPrice)
	res, err := api.Internal.Submit(ctx, blobs, gasPrice, namespaces)
	err = translateError(err)
	if err != nil {
		api.Logger.Error("RPC call failed", "method", "Submit", "error", err)
	} else {
		api.Logger.Debug("RPC call successful", "method", "Submit", "num_ids_returned", len(res))
	}
	return res, err
}

// Head returns the latest DA height.
func (api *API) Head(ctx context.Context) (uint64, error) {
	res, err := api.Internal.Head(ctx)
	err = translateError(err)
	if err != nil {
		api.Logger.Error("RPC call failed", "method", "Head", "error", err)
	}
	return res, err
}

// translateError marks authentication failures reported by the HTTP layer
// as permanent. Errors carrying a registered code are already typed.
func translateError(err error) error {
	if err == nil || coreda.IsPermanent(err) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") {
		return coreda.NewPermanentError(fmt.Errorf("%w: %v", coreda.ErrUnauthorized, err))
	}
	return err
}

// Client is the jsonrpc client
type Client struct {
	DA     API
	closer jsonrpc.ClientCloser
}

// Close closes the connection to the server.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// NewClient creates a new Client with the given token as the authorization token.
func NewClient(ctx context.Context, logger log.Logger, addr string, token string) (*Client, error) {
	authHeader := http.Header{}
	if token != "" {
		authHeader.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	return newClient(ctx, logger, addr, authHeader)
}

func newClient(ctx context.Context, logger log.Logger, addr string, authHeader http.Header) (*Client, error) {
	var client Client
	client.DA.Logger = logger.With("module", "da_rpc")
	closer, err := jsonrpc.NewMergeClient(ctx, addr, moduleName, []interface{}{&client.DA.Internal}, authHeader, jsonrpc.WithErrors(knownErrors()))
	if err != nil {
		return nil, err
	}
	client.closer = closer
	return &client, nil
}

const moduleName = "da"
