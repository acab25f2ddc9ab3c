package shutdown

import (
	"context"
	"io"
)

// FuncComponent adapts a shutdown function, such as (*http.Server).Shutdown.
type FuncComponent struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncComponent creates a new function-based shutdown component.
func NewFuncComponent(name string, fn func(ctx context.Context) error) *FuncComponent {
	return &FuncComponent{name: name, fn: fn}
}

// Name returns the component name.
func (c *FuncComponent) Name() string { return c.name }

// Shutdown calls the wrapped function.
func (c *FuncComponent) Shutdown(ctx context.Context) error { return c.fn(ctx) }

// CloserComponent wraps an io.Closer such as a store.
type CloserComponent struct {
	name   string
	closer io.Closer
}

// NewCloserComponent creates a new closer shutdown component.
func NewCloserComponent(name string, closer io.Closer) *CloserComponent {
	return &CloserComponent{name: name, closer: closer}
}

// Name returns the component name.
func (c *CloserComponent) Name() string { return c.name }

// Shutdown closes the underlying resource. Close is not interruptible, so
// it runs in the background and the deadline still applies.
func (c *CloserComponent) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.closer.Close() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
