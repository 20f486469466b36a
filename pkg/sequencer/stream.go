package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rollkit/sequencer-relayer/types"
)

// BlockStream yields sequencer blocks in strictly increasing height order
// starting at the subscription height. It is not safe for concurrent use.
type BlockStream struct {
	client *Client
	next   uint64
	hashes *lru.Cache[uint64, types.Hash]
	bo     *backoff.ExponentialBackOff

	conn      *websocket.Conn
	stopClose func() bool
	buf       []byte
	failures  int
	lastErr   error
	closed    bool
}

// Subscribe returns a stream starting at startHeight. The connection is
// established lazily by the first call to Next.
func (c *Client) Subscribe(_ context.Context, startHeight uint64) (*BlockStream, error) {
	if startHeight == 0 {
		return nil, fmt.Errorf("start height must be positive")
	}
	hashes, err := lru.New[uint64, types.Hash](c.cfg.HashCacheSize)
	if err != nil {
		return nil, err
	}
	return &BlockStream{
		client: c,
		next:   startHeight,
		hashes: hashes,
		bo:     c.newBackOff(),
	}, nil
}

// NextHeight returns the height the stream will emit next.
func (s *BlockStream) NextHeight() uint64 {
	return s.next
}

// Next blocks until the next height is available. Re-delivered heights with
// a known hash are dropped; a different hash yields ErrChainForked. Transport
// failures and height gaps trigger a reconnect at the next expected height.
func (s *BlockStream) Next(ctx context.Context) (*types.SequencerBlock, error) {
	for {
		if s.closed {
			return nil, ErrStreamClosed
		}
		if s.conn == nil {
			if err := s.connect(ctx); err != nil {
				return nil, err
			}
		}

		block, err := s.read()
		if err != nil {
			if ctx.Err() != nil {
				s.disconnect()
				return nil, ctx.Err()
			}
			s.drop("read failed", err)
			continue
		}

		switch {
		case block.Height < s.next:
			known, ok := s.hashes.Get(block.Height)
			if !ok {
				s.client.logger.Debug("dropping re-delivered block outside hash cache", "height", block.Height)
				continue
			}
			if hash := block.Hash(); hash != known {
				s.disconnect()
				return nil, fmt.Errorf("%w: height %d delivered with hash %s, previously %s", ErrChainForked, block.Height, hash, known)
			}
			s.client.logger.Debug("dropping duplicate block", "height", block.Height)
		case block.Height > s.next:
			s.drop("height gap", fmt.Errorf("expected height %d, got %d", s.next, block.Height))
		default:
			s.hashes.Add(block.Height, block.Hash())
			s.next++
			s.failures = 0
			s.client.leaveBackoff()
			return block, nil
		}
	}
}

// Close terminates the subscription.
func (s *BlockStream) Close() error {
	s.closed = true
	return s.disconnect()
}

func (s *BlockStream) connect(ctx context.Context) error {
	for {
		if s.failures > 0 {
			delay := s.bo.NextBackOff()
			if delay == backoff.Stop {
				return fmt.Errorf("%w: %d consecutive failures, last: %w", ErrUnreachable, s.failures, s.lastErr)
			}
			s.client.enterBackoff()
			s.client.logger.Info("reconnecting to sequencer", "height", s.next, "delay", delay, "attempt", s.failures)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		addr := s.client.subscriptionURL(s.next)
		conn, resp, err := s.client.dialer.DialContext(ctx, addr, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.fail(err)
			s.client.logger.Warn("failed to connect to sequencer", "url", addr, "error", err)
			continue
		}

		if s.client.cfg.MaxMessageSize > 0 {
			conn.SetReadLimit(s.client.cfg.MaxMessageSize)
		}
		s.conn = conn
		s.buf = nil
		s.stopClose = context.AfterFunc(ctx, func() { _ = conn.Close() })
		s.client.connected.Store(true)
		s.client.logger.Info("subscribed to sequencer", "url", addr)
		return nil
	}
}

// read returns the next block on the connection. A frame may carry several
// length-delimited blocks.
func (s *BlockStream) read() (*types.SequencerBlock, error) {
	for len(s.buf) == 0 {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.BinaryMessage {
			s.client.logger.Debug("ignoring non-binary frame", "type", typ)
			continue
		}
		s.buf = data
	}
	block, n, err := types.UnmarshalDelimited(s.buf)
	if err != nil {
		s.buf = nil
		return nil, err
	}
	s.buf = s.buf[n:]
	return block, nil
}

// fail counts a transport failure. The first failure of a streak restarts
// the backoff, so MaxElapsedTime bounds the time spent reconnecting rather
// than the time since the last block.
func (s *BlockStream) fail(err error) {
	if s.failures == 0 {
		s.bo.Reset()
	}
	s.failures++
	s.lastErr = err
}

func (s *BlockStream) drop(reason string, err error) {
	s.fail(err)
	if errors.Is(err, types.ErrMalformed) {
		s.client.logger.Warn("malformed block from sequencer", "height", s.next, "error", err)
	} else {
		s.client.logger.Warn("sequencer connection lost", "reason", reason, "height", s.next, "error", err)
	}
	_ = s.disconnect()
}

func (s *BlockStream) disconnect() error {
	if s.conn == nil {
		return nil
	}
	if s.stopClose != nil {
		s.stopClose()
		s.stopClose = nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.buf = nil
	s.client.connected.Store(false)
	return err
}
