package health

import (
	"context"
	"time"
)

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthChecker struct {
	store Pinger
	cache Pinger
}

type HealthStatus struct {
	Status  string          `json:"status"`
	Storage ComponentHealth `json:"storage"`
	Cache   ComponentHealth `json:"cache"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
}

// NewHealthChecker reports on the store and, when non-nil, the cache.
func NewHealthChecker(store, cache Pinger) *HealthChecker {
	return &HealthChecker{store: store, cache: cache}
}

// CheckBasic is unhealthy only when storage is; a failing cache degrades.
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	storage := check(ctx, h.store)
	cache := ComponentHealth{Status: "disabled"}
	if h.cache != nil {
		cache = check(ctx, h.cache)
	}

	status := "healthy"
	switch {
	case storage.Status != "healthy":
		status = "unhealthy"
	case cache.Status == "unhealthy":
		status = "degraded"
	}

	return HealthStatus{
		Status:  status,
		Storage: storage,
		Cache:   cache,
	}
}

func check(ctx context.Context, p Pinger) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}
