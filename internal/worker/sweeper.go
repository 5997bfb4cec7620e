package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledgerdesk/internal/log"
)

// SweeperConfig holds configuration for the pending export sweeper
type SweeperConfig struct {
	// Interval is how often to look for unexported documents (default: 1m)
	Interval time.Duration
}

// DefaultSweeperConfig returns sensible defaults
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: time.Minute}
}

// Pending is satisfied by JournalWorker.
type Pending interface {
	ProcessPending(ctx context.Context) (int, error)
}

// Sweeper periodically exports documents whose AMQP message was lost.
type Sweeper struct {
	pending Pending
	config  SweeperConfig
	logger  *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(pending Pending, config SweeperConfig, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	return &Sweeper{
		pending: pending,
		config:  config,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Pending export sweeper started", "interval", s.config.Interval)
	return nil
}

// Stop gracefully stops the sweeper and waits for the current sweep.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Pending export sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Pending export sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.pending.ProcessPending(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Pending export sweep failed", log.FieldError, err)
			}
		}
	}
}
