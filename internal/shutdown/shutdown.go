// Package shutdown tears down the API process in a fixed order once a
// termination signal arrives.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is the default graceful shutdown timeout.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when components are still running at the deadline.
var ErrTimeout = errors.New("shutdown timeout exceeded")

// Component represents a component that can be gracefully shut down.
type Component interface {
	// Name returns the component name for logging.
	Name() string
	// Shutdown should return within the context deadline.
	Shutdown(ctx context.Context) error
}

// Coordinator shuts registered components down in reverse order of
// registration, so the HTTP server drains before the store it uses closes.
type Coordinator struct {
	mu         sync.Mutex
	components []Component
	timeout    time.Duration
	logger     *slog.Logger

	once sync.Once
	err  error
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(timeout time.Duration, logger *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		timeout: timeout,
		logger:  logger.With("component", "shutdown"),
	}
}

// Register adds a component to be shut down.
func (c *Coordinator) Register(component Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component)
	c.logger.Debug("registered shutdown component", "name", component.Name())
}

// Shutdown stops every component once, last registered first, sharing a
// single deadline. Later calls return the first result.
func (c *Coordinator) Shutdown() error {
	c.once.Do(func() {
		c.err = c.shutdown()
	})
	return c.err
}

func (c *Coordinator) shutdown() error {
	c.logger.Info("initiating graceful shutdown", "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.mu.Lock()
	components := make([]Component, len(c.components))
	copy(components, c.components)
	c.mu.Unlock()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		if ctx.Err() != nil {
			c.logger.Warn("skipping component after deadline", "name", comp.Name())
			errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), ErrTimeout))
			continue
		}

		c.logger.Info("shutting down component", "name", comp.Name())
		if err := comp.Shutdown(ctx); err != nil {
			c.logger.Error("component shutdown error", "name", comp.Name(), "error", err)
			if errors.Is(err, context.DeadlineExceeded) {
				err = ErrTimeout
			}
			errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), err))
			continue
		}
		c.logger.Info("component shutdown complete", "name", comp.Name())
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.logger.Info("all components shut down successfully")
	return nil
}

// ExitCode maps a Shutdown result to a process exit status.
func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
