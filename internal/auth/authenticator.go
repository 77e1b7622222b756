// Package auth implements the pure request/response authenticator of
// spec §4.7: it subscribes to ServerLoginRequest, calls an external
// CredentialStore, and publishes ServerLoginResponse. No retries —
// the store is expected to carry its own short timeout (spec §5's
// 50ms budget), matching original_source's "statement_timeout = 50"
// comment on the credential query in postgres_adapter.hpp.
package auth

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rishavpaul-system-design/matching-venue/internal/bus"
	"github.com/rishavpaul-system-design/matching-venue/internal/session"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

// CredentialTimeout bounds a single credential check, matching the
// original's 50ms statement timeout.
const CredentialTimeout = 50 * time.Millisecond

// CredentialStore resolves a name/password pair to a ClientId.
// Implementations: Postgres (postgres_store.go).
type CredentialStore interface {
	CheckCredentials(ctx context.Context, name, password string) (types.ClientId, error)
}

// RateLimiter guards the login handshake against repeated login
// attempts from the same connection. Authenticator consults it before
// the credential check, so every attempt counts, successful or not.
// Implementations: Redis (redis_limiter.go).
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Authenticator wires CredentialStore and RateLimiter into the system
// bus's login handshake.
type Authenticator struct {
	store   CredentialStore
	limiter RateLimiter
	bus     *bus.SystemBus
	log     *zap.SugaredLogger
}

// New constructs an Authenticator, subscribing to ServerLoginRequest
// immediately.
func New(systemBus *bus.SystemBus, store CredentialStore, limiter RateLimiter, log *zap.SugaredLogger) *Authenticator {
	a := &Authenticator{store: store, limiter: limiter, bus: systemBus, log: log}
	bus.Subscribe(systemBus, a.onLoginRequest)
	return a
}

func (a *Authenticator) onLoginRequest(req session.ServerLoginRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), CredentialTimeout)
	defer cancel()

	if a.limiter != nil {
		key := limiterKey(req.ConnectionId)
		allowed, err := a.limiter.Allow(ctx, key)
		if err != nil && a.log != nil {
			a.log.Warnw("rate limiter error, failing open", "conn", req.ConnectionId, "err", err)
		}
		if err == nil && !allowed {
			bus.Publish(a.bus, session.ServerLoginResponse{
				ConnectionId: req.ConnectionId,
				Ok:           false,
				Error:        "Too many attempts",
			})
			return
		}
	}

	clientID, err := a.store.CheckCredentials(ctx, req.Request.Name, req.Request.Password)
	if err != nil {
		bus.Publish(a.bus, session.ServerLoginResponse{
			ConnectionId: req.ConnectionId,
			Ok:           false,
			Error:        err.Error(),
		})
		return
	}

	bus.Publish(a.bus, session.ServerLoginResponse{
		ConnectionId: req.ConnectionId,
		ClientId:     clientID,
		Ok:           true,
	})
}

func limiterKey(connID types.ConnectionId) string {
	return "login_attempts:" + strconv.FormatUint(uint64(connID), 10)
}
