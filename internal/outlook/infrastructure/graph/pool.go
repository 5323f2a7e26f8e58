package graph

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bookwell/outlooksync/internal/outlook/application"
	"github.com/bookwell/outlooksync/internal/outlook/domain"
	"github.com/google/uuid"
)

// SessionFactory builds a session from credentials. Overridable in tests.
type SessionFactory func(creds domain.Credentials) application.Session

// Pool is the process-wide session registry, keyed by tenant and then by
// user handle. Sessions are created lazily on first use and live until a
// failed probe replaces them; there is no other eviction.
type Pool struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]map[string]application.Session
	factory SessionFactory
	logger  *slog.Logger
}

// NewPool creates a session pool backed by real Graph clients. baseURL
// overrides the default endpoint, e.g. for national cloud deployments;
// "" keeps the default.
func NewPool(baseURL string, logger *slog.Logger) *Pool {
	return NewPoolWithFactory(func(creds domain.Credentials) application.Session {
		c := NewClient(creds, logger)
		if baseURL != "" {
			c.baseURL = baseURL
		}
		return c
	}, logger)
}

// NewPoolWithFactory creates a session pool with a custom session factory.
func NewPoolWithFactory(factory SessionFactory, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		tenants: make(map[uuid.UUID]map[string]application.Session),
		factory: factory,
		logger:  logger,
	}
}

// GetOrCreate returns the cached session for (tenantID, user handle),
// creating one on first use. The session is probed before being handed
// out; on probe failure it is discarded and rebuilt exactly once.
func (p *Pool) GetOrCreate(ctx context.Context, creds domain.Credentials, tenantID uuid.UUID) (application.Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	sess := p.upsert(tenantID, creds)
	if sess.CheckToken(ctx) {
		return sess, nil
	}

	p.logger.Warn("session probe failed, rebuilding",
		"tenant_id", tenantID,
		"user_handle", creds.UserHandle,
	)
	return p.replace(tenantID, creds, sess), nil
}

// upsert returns the existing session for the key or atomically inserts
// a fresh one. Concurrent first-use races resolve to a single session.
func (p *Pool) upsert(tenantID uuid.UUID, creds domain.Credentials) application.Session {
	p.mu.RLock()
	if sessions, ok := p.tenants[tenantID]; ok {
		if sess, ok := sessions[creds.UserHandle]; ok {
			p.mu.RUnlock()
			return sess
		}
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	sessions, ok := p.tenants[tenantID]
	if !ok {
		sessions = make(map[string]application.Session)
		p.tenants[tenantID] = sessions
	}
	if sess, ok := sessions[creds.UserHandle]; ok {
		return sess
	}
	sess := p.factory(creds)
	sessions[creds.UserHandle] = sess
	return sess
}

// replace swaps out a session that failed its probe. The swap only
// happens if the cached entry is still the stale one; when another
// caller already replaced it, that session is reused instead of being
// discarded again.
func (p *Pool) replace(tenantID uuid.UUID, creds domain.Credentials, stale application.Session) application.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	sessions, ok := p.tenants[tenantID]
	if !ok {
		sessions = make(map[string]application.Session)
		p.tenants[tenantID] = sessions
	}
	if current, ok := sessions[creds.UserHandle]; ok && current != stale {
		return current
	}
	fresh := p.factory(creds)
	sessions[creds.UserHandle] = fresh
	return fresh
}

// Size returns the number of cached sessions across all tenants.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, sessions := range p.tenants {
		n += len(sessions)
	}
	return n
}
