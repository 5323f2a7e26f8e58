package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bookwell/outlooksync/internal/outlook/application"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSession satisfies application.Session with a controllable probe.
type stubSession struct {
	handle string
	valid  atomic.Bool
}

func newStubSession(handle string, valid bool) *stubSession {
	s := &stubSession{handle: handle}
	s.valid.Store(valid)
	return s
}

func (s *stubSession) UserHandle() string              { return s.handle }
func (s *stubSession) CheckToken(context.Context) bool { return s.valid.Load() }
func (s *stubSession) ReadEvent(context.Context, string) (*domain.RemoteEvent, error) {
	return nil, nil
}
func (s *stubSession) ReadEvents(context.Context, time.Time) ([]domain.RemoteEvent, error) {
	return nil, nil
}
func (s *stubSession) IsSlotFree(context.Context, time.Time, time.Time) (bool, error) {
	return true, nil
}
func (s *stubSession) CreateEvent(context.Context, domain.RemoteEvent, bool) (string, error) {
	return "", nil
}
func (s *stubSession) UpdateEvent(context.Context, string, domain.RemoteEvent) error { return nil }
func (s *stubSession) DeleteEvent(context.Context, string) error                     { return nil }
func (s *stubSession) ListSubscriptions(context.Context) ([]domain.Subscription, error) {
	return nil, nil
}
func (s *stubSession) CreateSubscription(_ context.Context, sub domain.Subscription) (domain.Subscription, error) {
	return sub, nil
}
func (s *stubSession) DeleteSubscription(context.Context, string) error { return nil }

func TestPool_GetOrCreate_ReusesSession(t *testing.T) {
	var built atomic.Int32
	pool := NewPoolWithFactory(func(creds domain.Credentials) application.Session {
		built.Add(1)
		return newStubSession(creds.UserHandle, true)
	}, nil)

	tenantID := uuid.New()
	first, err := pool.GetOrCreate(context.Background(), testCreds, tenantID)
	require.NoError(t, err)
	second, err := pool.GetOrCreate(context.Background(), testCreds, tenantID)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), built.Load())
	assert.Equal(t, 1, pool.Size())
}

func TestPool_GetOrCreate_InvalidCredentials(t *testing.T) {
	pool := NewPoolWithFactory(func(creds domain.Credentials) application.Session {
		t.Fatal("factory must not run for invalid credentials")
		return nil
	}, nil)

	_, err := pool.GetOrCreate(context.Background(), domain.Credentials{}, uuid.New())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPool_GetOrCreate_ConcurrentFirstUse(t *testing.T) {
	var built atomic.Int32
	pool := NewPoolWithFactory(func(creds domain.Credentials) application.Session {
		built.Add(1)
		return newStubSession(creds.UserHandle, true)
	}, nil)

	tenantID := uuid.New()
	const workers = 16
	sessions := make([]application.Session, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := pool.GetOrCreate(context.Background(), testCreds, tenantID)
			assert.NoError(t, err)
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	for _, sess := range sessions {
		assert.Same(t, sessions[0], sess)
	}
	assert.Equal(t, 1, pool.Size())
}

func TestPool_GetOrCreate_RebuildsOnProbeFailure(t *testing.T) {
	var built atomic.Int32
	pool := NewPoolWithFactory(func(creds domain.Credentials) application.Session {
		n := built.Add(1)
		// The first session is stale; its replacement is healthy.
		return newStubSession(creds.UserHandle, n > 1)
	}, nil)

	tenantID := uuid.New()
	sess, err := pool.GetOrCreate(context.Background(), testCreds, tenantID)
	require.NoError(t, err)

	// The stale session was discarded and rebuilt exactly once.
	assert.Equal(t, int32(2), built.Load())
	assert.True(t, sess.CheckToken(context.Background()))
	assert.Equal(t, 1, pool.Size())

	// The healthy replacement stays cached.
	again, err := pool.GetOrCreate(context.Background(), testCreds, tenantID)
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Equal(t, int32(2), built.Load())
}

func TestPool_Replace_DoesNotDiscardFreshSession(t *testing.T) {
	// Two callers race the same stale session; the second must adopt
	// the first caller's replacement instead of discarding it.
	stale := newStubSession(testCreds.UserHandle, false)
	var built atomic.Int32
	pool := NewPoolWithFactory(func(creds domain.Credentials) application.Session {
		built.Add(1)
		return newStubSession(creds.UserHandle, true)
	}, nil)

	tenantID := uuid.New()
	pool.tenants[tenantID] = map[string]application.Session{testCreds.UserHandle: stale}

	first := pool.replace(tenantID, testCreds, stale)
	second := pool.replace(tenantID, testCreds, stale)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), built.Load())
}
