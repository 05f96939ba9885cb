package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erain9/ordercache/pkg/messaging"
	"github.com/rs/zerolog"
)

// DefaultPoolSize is the number of senders kept ready
const DefaultPoolSize = 8

// ErrPoolExhausted is returned when every pooled sender is in use
var ErrPoolExhausted = errors.New("sender pool exhausted")

// SenderFactory creates one pooled sender
type SenderFactory func() (messaging.MessageSender, error)

// SenderPool hands out senders from a bounded channel. It is itself a
// MessageSender, so it can be given to the cache directly.
//
// missing counts senders the factory failed to create. Get retries the
// factory for them once the channel runs dry.
type SenderPool struct {
	pool    chan messaging.MessageSender
	factory SenderFactory
	logger  zerolog.Logger
	mu      sync.Mutex
	closed  bool
	missing int
}

// NewSenderPool pre-populates a pool of size senders. It fails only when no
// sender at all could be created.
func NewSenderPool(size int, factory SenderFactory, logger zerolog.Logger) (*SenderPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &SenderPool{
		pool:    make(chan messaging.MessageSender, size),
		factory: factory,
		logger:  logger,
	}

	var lastErr error
	for i := 0; i < size; i++ {
		sender, err := factory()
		if err != nil {
			lastErr = err
			p.missing++
			logger.Warn().Err(err).Msg("Error creating sender")
			continue
		}
		p.pool <- sender
	}

	if len(p.pool) == 0 {
		return nil, fmt.Errorf("failed to create any sender: %w", lastErr)
	}
	return p, nil
}

// Get takes a sender from the pool without blocking. When the pool is empty
// and short of senders it asks the factory for a new one.
func (p *SenderPool) Get() (messaging.MessageSender, error) {
	select {
	case sender := <-p.pool:
		return sender, nil
	default:
	}
	return p.replenish()
}

func (p *SenderPool) replenish() (messaging.MessageSender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.missing == 0 {
		return nil, ErrPoolExhausted
	}
	sender, err := p.factory()
	if err != nil {
		p.logger.Warn().Err(err).Int("missing", p.missing).Msg("Error replenishing sender")
		return nil, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
	}
	p.missing--
	return sender, nil
}

// Put returns a sender to the pool, closing it when the pool is full or closed
func (p *SenderPool) Put(sender messaging.MessageSender) {
	if sender == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = sender.Close()
		return
	}

	select {
	case p.pool <- sender:
	default:
		p.logger.Warn().Msg("Sender pool is full")
		_ = sender.Close()
	}
}

// SendOrderEvent sends event with a pooled sender. A sender that fails is
// closed and replaced by a fresh one from the factory.
func (p *SenderPool) SendOrderEvent(ctx context.Context, event *messaging.OrderEvent) error {
	sender, err := p.Get()
	if err != nil {
		return err
	}

	if err := sender.SendOrderEvent(ctx, event); err != nil {
		_ = sender.Close()
		if fresh, ferr := p.factory(); ferr == nil {
			p.Put(fresh)
		} else {
			p.logger.Warn().Err(ferr).Msg("Error replacing sender")
			p.mu.Lock()
			p.missing++
			p.mu.Unlock()
		}
		return err
	}

	p.Put(sender)
	return nil
}

// Available returns the number of idle senders
func (p *SenderPool) Available() int {
	return len(p.pool)
}

// Close closes every idle sender. Senders returned later are closed on Put.
func (p *SenderPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for {
		select {
		case sender := <-p.pool:
			if err := sender.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

var _ messaging.MessageSender = (*SenderPool)(nil)
