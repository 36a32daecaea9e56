package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/modkit/pkg/lifecycle"
	"github.com/bft-labs/modkit/pkg/module"
)

type registry map[string]*module.Module

func (r registry) Modules() map[string]*module.Module {
	out := make(map[string]*module.Module, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// server reports ready and serves until stopped.
type server struct {
	lifecycle.Base
	id      string
	stopErr error
	done    chan struct{}
}

func newServer(id string) *server {
	return &server{id: id, done: make(chan struct{})}
}

func (s *server) ID() string { return s.id }

func (s *server) OnStarted(ctx context.Context) error {
	module.Ready(ctx)
	<-s.done
	return nil
}

func (s *server) OnStopped() error {
	if s.stopErr != nil {
		return s.stopErr
	}
	close(s.done)
	return nil
}

func started(t *testing.T, s *server) *module.Module {
	t.Helper()
	m, err := module.New(s)
	require.NoError(t, err)
	m.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = m.Await(ctx, func(st lifecycle.Status) bool { return st == lifecycle.StatusStarted })
	require.NoError(t, err)
	return m
}

func TestReady(t *testing.T) {
	api := started(t, newServer("api"))
	t.Cleanup(api.Stop)
	idle, err := module.New(newServer("idle"))
	require.NoError(t, err)

	r := registry{"api": api, "idle": idle}

	assert.NoError(t, Ready(r, "api")())

	err = Ready(r, "api", "idle")()
	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "idle (Instanced)")

	err = Ready(r, "missing")()
	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "missing (not registered)")

	// Without ids every module must be Started.
	assert.ErrorIs(t, Ready(r)(), ErrNotReady)
	assert.NoError(t, Ready(registry{"api": api})())
}

func TestNotStuck(t *testing.T) {
	s := newServer("leaky")
	s.stopErr = errors.New("cannot close listener")
	m := started(t, s)
	t.Cleanup(func() { close(s.done) })

	r := registry{"leaky": m}
	assert.NoError(t, NotStuck(r, time.Hour)())

	m.Stop()
	require.Equal(t, lifecycle.StatusStopping, m.Status())

	assert.NoError(t, NotStuck(r, time.Hour)(), "within threshold")

	time.Sleep(5 * time.Millisecond)
	err := NotStuck(r, time.Millisecond)()
	require.ErrorIs(t, err, ErrStuck)
	assert.Contains(t, err.Error(), "leaky")
}

func TestNewHandler(t *testing.T) {
	api := started(t, newServer("api"))
	t.Cleanup(api.Stop)
	idle, err := module.New(newServer("idle"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		reg   registry
		path  string
		ready []string
		want  int
	}{
		{"live", registry{"api": api, "idle": idle}, "/live", nil, http.StatusOK},
		{"ready when named modules started", registry{"api": api, "idle": idle}, "/ready", []string{"api"}, http.StatusOK},
		{"not ready when any module idle", registry{"api": api, "idle": idle}, "/ready", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.reg, WithReady(tt.ready...), WithCheckTimeout(time.Second))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestNewHandler_WithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	idle, err := module.New(newServer("idle"))
	require.NoError(t, err)

	h := NewHandler(registry{"idle": idle}, WithMetrics(reg, "modkit"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	count, err := testutil.GatherAndCount(reg, "modkit_healthcheck_status")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
