package content

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"veritrail/pkg/platform/circuit"
)

// ErrStoreOpen is returned without touching the network while the breaker is
// open.
var ErrStoreOpen = errors.New("content store circuit open")

const probeInterval = 30 * time.Second

// BreakerClient wraps a Client with a circuit breaker so a down content store
// fails fast instead of burning the request timeout on every upload. While
// open, one request per probe interval still goes through to detect recovery.
type BreakerClient struct {
	inner   Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	lastProbe time.Time
}

func NewBreakerClient(inner Client, logger *slog.Logger) *BreakerClient {
	return &BreakerClient{
		inner:   inner,
		breaker: circuit.New("content-store", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
		logger:  logger,
		now:     time.Now,
	}
}

func (c *BreakerClient) Put(ctx context.Context, data []byte, filename string) (string, error) {
	if c.breaker.IsOpen() && !c.claimProbe() {
		return "", ErrStoreOpen
	}

	locator, err := c.inner.Put(ctx, data, filename)
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Warn("content store circuit opened", "breaker", c.breaker.Name(), "error", err)
		}
		return "", err
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("content store recovered", "breaker", c.breaker.Name())
	}
	return locator, nil
}

// claimProbe reports whether this call may test the store while the breaker
// is open. At most one caller per interval gets through.
func (c *BreakerClient) claimProbe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.now(); now.Sub(c.lastProbe) >= probeInterval {
		c.lastProbe = now
		return true
	}
	return false
}
