package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects component names in shutdown order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) component(name string, delay time.Duration, err error) Component {
	return NewFuncComponent(name, func(ctx context.Context) error {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return err
	})
}

// **Feature: expense-orgs, Property 11: Components stop in reverse registration order**
// For any number of components, Shutdown SHALL stop each exactly once, last
// registered first.
func TestPropertyReverseOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("shutdown is LIFO", prop.ForAll(
		func(n int) bool {
			rec := &recorder{}
			c := NewCoordinator(time.Second, quietLogger())
			names := make([]string, n)
			for i := range n {
				names[i] = string(rune('a' + i))
				c.Register(rec.component(names[i], 0, nil))
			}

			if err := c.Shutdown(); err != nil {
				return false
			}
			if len(rec.order) != n {
				return false
			}
			for i := range n {
				if rec.order[i] != names[n-1-i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func TestShutdown_RunsOnce(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(time.Second, quietLogger())
	c.Register(rec.component("store", 0, nil))

	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())
	assert.Equal(t, []string{"store"}, rec.order)
}

func TestShutdown_CollectsErrors(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	c := NewCoordinator(time.Second, quietLogger())
	c.Register(rec.component("store", 0, boom))
	c.Register(rec.component("http", 0, nil))

	err := c.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"http", "store"}, rec.order)
	assert.Equal(t, 1, ExitCode(err))
}

func TestShutdown_Timeout(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(50*time.Millisecond, quietLogger())
	c.Register(rec.component("store", 0, nil))
	c.Register(rec.component("http", time.Second, nil))

	start := time.Now()
	err := c.Shutdown()

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, rec.order)
}

func TestShutdown_DrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	srv.Start()
	defer srv.Close()

	c := NewCoordinator(2*time.Second, quietLogger())
	c.Register(NewFuncComponent("http", srv.Config.Shutdown))

	result := make(chan int, 1)
	go func() {
		resp, err := http.Get(srv.URL)
		if err != nil {
			result <- 0
			return
		}
		resp.Body.Close()
		result <- resp.StatusCode
	}()

	<-started
	done := make(chan error, 1)
	go func() { done <- c.Shutdown() }()

	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, http.StatusOK, <-result)
	assert.NoError(t, <-done)
	assert.Equal(t, 0, ExitCode(nil))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloserComponent(t *testing.T) {
	closed := false
	comp := NewCloserComponent("store", closerFunc(func() error {
		closed = true
		return nil
	}))

	assert.Equal(t, "store", comp.Name())
	require.NoError(t, comp.Shutdown(context.Background()))
	assert.True(t, closed)
}
