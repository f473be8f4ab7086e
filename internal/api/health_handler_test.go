package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockPinger struct {
	PingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.PingFn(ctx)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("healthy provider returns 200", func(t *testing.T) {
		t.Parallel()

		handler := NewHealthHandler(&mockPinger{
			PingFn: func(ctx context.Context) error { return nil },
		})
		rec := httptest.NewRecorder()
		handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ok"`)
	})

	t.Run("unreachable provider returns 503", func(t *testing.T) {
		t.Parallel()

		handler := NewHealthHandler(&mockPinger{
			PingFn: func(ctx context.Context) error { return fmt.Errorf("connection refused") },
		})
		rec := httptest.NewRecorder()
		handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unavailable"`)
	})
}
