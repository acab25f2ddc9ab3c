// Package health reports liveness of the API and its storage backend.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Response represents the health check response.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Pinger is implemented by dependencies that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes a fixed set of named dependencies.
type Checker struct {
	components map[string]Pinger
	startTime  time.Time
	version    string
	timeout    time.Duration
}

// NewChecker creates a health checker for the given components.
func NewChecker(version string, timeout time.Duration, components map[string]Pinger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		components: components,
		startTime:  time.Now(),
		version:    version,
		timeout:    timeout,
	}
}

// Check probes every component concurrently. The overall status is
// unhealthy if any component is.
func (c *Checker) Check(ctx context.Context) *Response {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	results := make(map[string]ComponentStatus, len(names))

	g, gctx := errgroup.WithContext(checkCtx)
	for _, name := range names {
		pinger := c.components[name]
		g.Go(func() error {
			status := probe(gctx, pinger)
			mu.Lock()
			results[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, comp := range results {
		if comp.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		}
	}

	return &Response{
		Status:     overall,
		Components: results,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

func probe(ctx context.Context, p Pinger) ComponentStatus {
	if p == nil {
		return ComponentStatus{Status: StatusUnhealthy, Message: "not configured"}
	}

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return ComponentStatus{Status: StatusUnhealthy, Message: "ping failed: " + err.Error()}
	}
	return ComponentStatus{
		Status:  StatusHealthy,
		Message: "connected",
		Latency: time.Since(start).Round(time.Microsecond).String(),
	}
}

// Handler returns an HTTP handler for health checks.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if response.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(response)
	}
}
