package sequencer

import (
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// StartHeightParam is the query parameter carrying the first height a
// subscription wants.
const StartHeightParam = "start_height"

// Config configures the sequencer subscription.
type Config struct {
	// URL is the websocket endpoint streaming finalized blocks.
	URL string
	// InitialBackoff is the first reconnect delay.
	InitialBackoff time.Duration
	// MaxBackoff caps a single reconnect delay.
	MaxBackoff time.Duration
	// MaxElapsedTime bounds the total time spent reconnecting without
	// receiving a block. Zero retries forever.
	MaxElapsedTime time.Duration
	// HashCacheSize is the number of recent block hashes remembered for fork
	// detection.
	HashCacheSize int
	// MaxMessageSize limits a single websocket frame.
	MaxMessageSize int64
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the default subscription settings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       30 * time.Second,
		MaxElapsedTime:   5 * time.Minute,
		HashCacheSize:    1024,
		MaxMessageSize:   64 << 20,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client subscribes to the finalized block stream of a sequencer node.
type Client struct {
	cfg    Config
	logger log.Logger
	dialer *websocket.Dialer

	connected    atomic.Bool
	backoffSince atomic.Int64
}

// NewClient returns a client for cfg.
func NewClient(cfg Config, logger log.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid sequencer url %q: %w", cfg.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid sequencer url %q: scheme must be ws or wss", cfg.URL)
	}
	if cfg.HashCacheSize <= 0 {
		return nil, fmt.Errorf("hash cache size must be positive, got %d", cfg.HashCacheSize)
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With("module", "sequencer"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1 << 16,
		},
	}, nil
}

// Connected reports whether a subscription connection is currently live.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// InBackoffSince returns when the client started waiting to reconnect, or
// the zero time when it is not backing off.
func (c *Client) InBackoffSince() time.Time {
	ns := c.backoffSince.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (c *Client) enterBackoff() {
	c.backoffSince.CompareAndSwap(0, time.Now().UnixNano())
}

func (c *Client) leaveBackoff() {
	c.backoffSince.Store(0)
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.MaxElapsedTime = c.cfg.MaxElapsedTime
	bo.Reset()
	return bo
}

func (c *Client) subscriptionURL(height uint64) string {
	u, _ := url.Parse(c.cfg.URL)
	q := u.Query()
	q.Set(StartHeightParam, strconv.FormatUint(height, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
