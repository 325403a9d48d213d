// Package db keeps a small pool of OxiDB connections for the document-store backend.
package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/pkg/oxidb"
)

const dialTimeout = 5 * time.Second

// Options tunes a Pool.
type Options struct {
	Host      string
	Port      int
	Size      int
	Keepalive time.Duration
	Logger    *zap.Logger
}

// Pool is a round-robin connection pool for OxiDB with auto-reconnect.
type Pool struct {
	host    string
	port    int
	logger  *zap.Logger
	mu      sync.RWMutex
	clients []*oxidb.Client
	idx     uint64
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewPool dials opts.Size connections and starts the keepalive loop.
func NewPool(opts Options) (*Pool, error) {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &Pool{
		host:    opts.Host,
		port:    opts.Port,
		logger:  opts.Logger.Named("oxidb-pool"),
		clients: make([]*oxidb.Client, opts.Size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := 0; i < opts.Size; i++ {
		c, err := oxidb.Connect(p.host, p.port, dialTimeout)
		if err != nil {
			p.closeClients()
			return nil, fmt.Errorf("pool: connect client %d: %w", i, err)
		}
		p.clients[i] = c
	}
	// keepalive pings keep idle connections from being dropped by the server
	go p.keepalive(opts.Keepalive)
	return p, nil
}

// Size returns the number of pooled connections.
func (p *Pool) Size() int {
	return len(p.clients)
}

// Get returns the next client in round-robin order.
func (p *Pool) Get() *oxidb.Client {
	n := atomic.AddUint64(&p.idx, 1)
	i := n % uint64(len(p.clients))
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients[i]
}

// Ping checks every connection, reconnecting the ones that fail. It returns
// the last reconnect error, if any.
func (p *Pool) Ping(ctx context.Context) error {
	var lastErr error
	for i := range p.clients {
		p.mu.RLock()
		c := p.clients[i]
		p.mu.RUnlock()
		if _, err := c.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("client ping failed, reconnecting", zap.Int("client", i), zap.Error(err))
			if err := p.reconnect(i); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

func (p *Pool) reconnect(i int) error {
	c, err := oxidb.Connect(p.host, p.port, dialTimeout)
	if err != nil {
		p.logger.Error("reconnect failed", zap.Int("client", i), zap.Error(err))
		return err
	}
	p.mu.Lock()
	old := p.clients[i]
	p.clients[i] = c
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (p *Pool) keepalive(every time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			_ = p.Ping(ctx)
			cancel()
		}
	}
}

// Close stops the keepalive loop and closes all connections.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.stop)
		<-p.done
		p.closeClients()
	})
}

func (p *Pool) closeClients() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		if c != nil {
			c.Close()
		}
	}
}
