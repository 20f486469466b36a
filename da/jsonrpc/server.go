package jsonrpc

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
	"github.com/filecoin-project/go-jsonrpc"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
)

// Server is a jsonrpc service that can serve the DA interface
type Server struct {
	logger   log.Logger
	srv      *http.Server
	rpc      *jsonrpc.RPCServer
	listener net.Listener
	token    string

	started atomic.Bool
}

// serverInternalAPI provides the actual RPC methods.
type serverInternalAPI struct {
	logger log.Logger
	daImpl coreda.DA
}

func (s *serverInternalAPI) MaxBlobSize(ctx context.Context) (uint64, error) {
	return s.daImpl.MaxBlobSize(ctx)
}

func (s *serverInternalAPI) Get(ctx context.Context, ids []coreda.ID, ns []byte) ([]coreda.Blob, error) {
	s.logger.Debug("RPC server: Get called", "num_ids", len(ids))
	return s.daImpl.Get(ctx, ids, ns)
}

func (s *serverInternalAPI) GetIDs(ctx context.Context, height uint64, ns []byte) (*coreda.GetIDsResult, error) {
	s.logger.Debug("RPC server: GetIDs called", "height", height)
	return s.daImpl.GetIDs(ctx, height, ns)
}

func (s *serverInternalAPI) Commit(ctx context.Context, blobs []coreda.Blob, ns []byte) ([]coreda.Commitment, error) {
	return s.daImpl.Commit(ctx, blobs, ns)
}

func (s *serverInternalAPI) Submit(ctx context.Context, blobs []coreda.Blob, gasPrice float64, namespaces [][]byte) ([]coreda.ID, error) {
	s.logger.Debug("RPC server: Submit called", "num_blobs", len(blobs), "gas_price", gasPrice)
	return s.daImpl.Submit(ctx, blobs, gasPrice, namespaces)
}

func (s *serverInternalAPI) Head(ctx context.Context) (uint64, error) {
	return s.daImpl.Head(ctx)
}

// NewServer accepts the listen address and the DA implementation to serve as
// a jsonrpc service. A non-empty token is required as bearer credential.
func NewServer(logger log.Logger, address string, token string, daImplementation coreda.DA) *Server {
	rpc := jsonrpc.NewServer(jsonrpc.WithServerErrors(knownErrors()))
	srv := &Server{
		rpc:    rpc,
		logger: logger.With("module", "da_rpc_server"),
		token:  token,
		srv: &http.Server{
			Addr:              address,
			ReadHeaderTimeout: 2 * time.Second,
		},
	}
	srv.srv.Handler = http.HandlerFunc(srv.serveHTTP)

	rpc.Register(moduleName, &serverInternalAPI{
		logger: srv.logger,
		daImpl: daImplementation,
	})
	return srv
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if s.token != "" {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			http.Error(w, coreda.ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
	}
	s.rpc.ServeHTTP(w, r)
}

// Addr returns the address the server listens on once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

// Start starts the RPC Server.
// This function can be called multiple times concurrently
// Once started, subsequent calls are a no-op
func (s *Server) Start(context.Context) error {
	couldStart := s.started.CompareAndSwap(false, true)

	if !couldStart {
		s.logger.Warn("cannot start server: already started")
		return nil
	}
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.logger.Info("server started", "listening on", listener.Addr().String())
	//nolint:errcheck
	go s.srv.Serve(listener)
	return nil
}

// Stop stops the RPC Server.
// This function can be called multiple times concurrently
// Once stopped, subsequent calls are a no-op
func (s *Server) Stop(ctx context.Context) error {
	couldStop := s.started.CompareAndSwap(true, false)
	if !couldStop {
		s.logger.Warn("cannot stop server: already stopped")
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
