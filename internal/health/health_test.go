package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckBasic(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name  string
		store Pinger
		cache Pinger
		want  string
	}{
		{"all up", ok, ok, "healthy"},
		{"no cache", ok, nil, "healthy"},
		{"cache down", ok, down, "degraded"},
		{"store down", down, ok, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewHealthChecker(tt.store, tt.cache).CheckBasic(context.Background())
			assert.Equal(t, tt.want, got.Status)
		})
	}

	got := NewHealthChecker(down, nil).CheckBasic(context.Background())
	assert.Equal(t, "connection refused", got.Storage.Error)
	assert.Equal(t, "disabled", got.Cache.Status)
}
