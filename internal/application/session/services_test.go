package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
	domain "github.com/bryanwahyu/agroscan/internal/domain/session"
	"github.com/bryanwahyu/agroscan/internal/infra/ai/mock"
	"github.com/bryanwahyu/agroscan/internal/infra/storage"
)

type countingObserver struct{ opened, closed atomic.Int32 }

func (c *countingObserver) SessionOpened() { c.opened.Add(1) }
func (c *countingObserver) SessionClosed() { c.closed.Add(1) }

func newTestService(t *testing.T, ttl time.Duration) (*Service, *fakeClock, *storage.MemoryStore, *countingObserver) {
	t.Helper()
	clock := newFakeClock()
	store := storage.NewMemory()
	obs := &countingObserver{}
	svc := NewService(Deps{
		Analyzer: mock.New(0),
		Store:    store,
		Clock:    clock,
		IDs:      &seqIDs{},
	}, Options{IdleTTL: ttl, Observer: obs})
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return svc, clock, store, obs
}

func TestServiceOpenGetClose(t *testing.T) {
	svc, _, _, obs := newTestService(t, 0)
	ctx := context.Background()

	a := svc.Open()
	b := svc.Open()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, svc.Len())

	got, err := svc.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = svc.Get("nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, svc.Close(ctx, a.ID()))
	assert.ErrorIs(t, svc.Close(ctx, a.ID()), domain.ErrSessionNotFound)
	assert.Equal(t, 1, svc.Len())
	assert.EqualValues(t, 2, obs.opened.Load())
	assert.EqualValues(t, 1, obs.closed.Load())
}

func TestSessionsAreIsolated(t *testing.T) {
	svc, _, _, _ := newTestService(t, 0)
	ctx := context.Background()
	a, b := svc.Open(), svc.Open()

	_, err := a.SelectImages(ctx, []diagnosis.Image{img("a.jpg")})
	require.NoError(t, err)
	ref := a.Snapshot().Pending[0].Ref

	assert.Empty(t, b.Snapshot().Pending)
	_, err = b.Blob(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	svc, clock, store, obs := newTestService(t, time.Hour)
	ctx := context.Background()

	stale := svc.Open()
	_, err := stale.SelectImages(ctx, []diagnosis.Image{img("a.jpg")})
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	fresh := svc.Open()
	assert.Zero(t, svc.Sweep(ctx, clock.Now()))

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, svc.Sweep(ctx, clock.Now()))
	assert.Equal(t, 1, svc.Len())

	_, err = svc.Get(stale.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.Get(fresh.ID())
	assert.NoError(t, err)
	assert.Zero(t, store.Len(), "expired session released its images")
	assert.EqualValues(t, 1, obs.closed.Load())
}

func TestSweepDisabledWithoutTTL(t *testing.T) {
	svc, clock, _, _ := newTestService(t, 0)
	svc.Open()
	clock.Advance(24 * time.Hour)
	assert.Zero(t, svc.Sweep(context.Background(), clock.Now()))
}

func TestRunStopsWithContext(t *testing.T) {
	svc, _, _, _ := newTestService(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestShutdownClosesAll(t *testing.T) {
	svc, _, store, obs := newTestService(t, 0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c := svc.Open()
		_, err := c.SelectImages(ctx, []diagnosis.Image{img("a.jpg")})
		require.NoError(t, err)
	}
	svc.Shutdown(ctx)
	assert.Zero(t, svc.Len())
	assert.Zero(t, store.Len())
	assert.EqualValues(t, 3, obs.closed.Load())
}
