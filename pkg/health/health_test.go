package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (c *stubChecker) Name() string                    { return c.name }
func (c *stubChecker) Check(ctx context.Context) error { return c.err }

type stubSession struct {
	connected bool
}

func (s *stubSession) Connected() bool { return s.connected }

func TestRegistryAllHealthy(t *testing.T) {
	r := NewCheckerRegistry()
	r.Register(&stubChecker{name: "a"})
	r.Register(&stubChecker{name: "b"})

	h := r.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Len(t, h.Checks, 2)
	assert.Equal(t, StatusHealthy, h.Checks["a"].Status)
}

func TestRegistryOneFailing(t *testing.T) {
	r := NewCheckerRegistry()
	r.Register(&stubChecker{name: "a"})
	r.Register(&stubChecker{name: "b", err: errors.New("down")})

	h := r.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, StatusUnhealthy, h.Checks["b"].Status)
	assert.Equal(t, "down", h.Checks["b"].Message)
	assert.Equal(t, StatusHealthy, h.Checks["a"].Status)
}

func TestBrokerChecker(t *testing.T) {
	up := NewBrokerChecker(&stubSession{connected: true})
	assert.NoError(t, up.Check(context.Background()))

	down := NewBrokerChecker(&stubSession{connected: false})
	assert.Error(t, down.Check(context.Background()))
}

func TestNewTargetCheckerAddr(t *testing.T) {
	tests := []struct {
		name string
		url  string
		addr string
	}{
		{
			name: "explicit port",
			url:  "http://legacy.internal:9200/notify",
			addr: "legacy.internal:9200",
		},
		{
			name: "default http port",
			url:  "http://legacy.internal/notify",
			addr: "legacy.internal:80",
		},
		{
			name: "default https port",
			url:  "https://legacy.internal/notify",
			addr: "legacy.internal:443",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewTargetChecker(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, c.addr)
		})
	}
}
