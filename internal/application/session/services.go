package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/agroscan/internal/domain/session"
)

// Observer receives session lifecycle events (metrics).
type Observer interface {
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}

// Options tune the session registry.
type Options struct {
	IdleTTL       time.Duration // 0 disables expiry
	SweepInterval time.Duration
	Observer      Observer
}

// Service implements use-cases untuk Session: it owns one Controller per
// browser session and expires idle ones.
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	deps     Deps
	ttl      time.Duration
	interval time.Duration
	observer Observer
	log      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Controller
}

func NewService(deps Deps, opts Options) *Service {
	deps = deps.withDefaults()
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Service{
		deps:     deps,
		ttl:      opts.IdleTTL,
		interval: opts.SweepInterval,
		observer: opts.Observer,
		log:      deps.Logger,
		sessions: make(map[string]*Controller),
	}
}

// Open starts a new session.
func (s *Service) Open() *Controller {
	c := NewController(s.deps.IDs.NewID(), s.deps)
	s.mu.Lock()
	s.sessions[c.ID()] = c
	s.mu.Unlock()
	s.observer.SessionOpened()
	s.log.Info("session opened", zap.String("session", c.ID()))
	return c
}

// Get ambil 1 session by id
func (s *Service) Get(id string) (*Controller, error) {
	s.mu.RLock()
	c, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return c, nil
}

// Close ends a session and releases its images.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	c, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	c.Close(ctx)
	s.observer.SessionClosed()
	s.log.Info("session closed", zap.String("session", id))
	return nil
}

// Len reports the number of open sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle since before now-ttl and returns how many.
func (s *Service) Sweep(ctx context.Context, now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	var stale []string
	s.mu.RLock()
	for id, c := range s.sessions {
		if now.Sub(c.LastActive()) > s.ttl {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if err := s.Close(ctx, id); err == nil {
			n++
		}
	}
	if n > 0 {
		s.log.Info("idle sessions expired", zap.Int("count", n))
	}
	return n
}

// Run sweeps on a ticker until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx, s.deps.Clock.Now())
		}
	}
}

// Shutdown closes every session.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Controller)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range all {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			c.Close(ctx)
			s.observer.SessionClosed()
		}(c)
	}
	wg.Wait()
}
