package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/busantrip/map-explorer/internal/model"
)

// ErrUnavailable means provider bootstrap failed for good (typically a
// missing credential). Dependents must degrade, never crash.
var ErrUnavailable = errors.New("surface: map provider unavailable")

// State is the provider bootstrap state. There is no transition out of
// StateLoaded or StateFailed for the process lifetime.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type Config struct {
	APIKey string
	Center model.LatLng
	Zoom   int

	// Check probes the provider during bootstrap. The default only
	// validates that a credential is configured.
	Check func(ctx context.Context) error

	BootstrapTimeout time.Duration
}

// Manager owns the one-per-process provider bootstrap and hands out
// per-view surfaces. Bootstrap runs at most once no matter how many views
// acquire concurrently.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	state State
	ready chan struct{} // closed once bootstrap reaches a terminal state
	err   error
	refs  int
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if cfg.Check == nil {
		key := cfg.APIKey
		cfg.Check = func(_ context.Context) error {
			if key == "" {
				return errors.New("map api key is not configured")
			}
			return nil
		}
	}
	if cfg.BootstrapTimeout <= 0 {
		cfg.BootstrapTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Acquire waits for the provider to be ready and returns a fresh surface for
// host. The first caller triggers bootstrap; everyone else shares it. After a
// failed bootstrap every Acquire returns ErrUnavailable immediately.
func (m *Manager) Acquire(ctx context.Context, host string) (*Surface, error) {
	m.mu.Lock()
	if m.state == StateUnloaded {
		m.state = StateLoading
		m.ready = make(chan struct{})
		go m.bootstrap()
	}
	ready := m.ready
	m.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoaded {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, m.err)
	}
	m.refs++
	return newSurface(host, m.cfg.Center, m.cfg.Zoom, m.logger), nil
}

// Release closes the surface and drops its reference.
func (m *Manager) Release(s *Surface) {
	if s != nil {
		s.Close()
	}
	m.mu.Lock()
	if m.refs > 0 {
		m.refs--
	}
	m.mu.Unlock()
}

// Status reports the bootstrap state and, when failed, the cause.
func (m *Manager) Status() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

func (m *Manager) bootstrap() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BootstrapTimeout)
	err := m.cfg.Check(ctx)
	cancel()

	m.mu.Lock()
	if err != nil {
		m.state = StateFailed
		m.err = err
		m.logger.Error("map provider bootstrap failed; map stays unavailable", "err", err)
	} else {
		m.state = StateLoaded
		m.logger.Info("map provider ready",
			"center_lat", m.cfg.Center.Lat, "center_lng", m.cfg.Center.Lng, "zoom", m.cfg.Zoom)
	}
	close(m.ready)
	m.mu.Unlock()
}
