package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishavpaul-system-design/matching-venue/internal/bus"
	"github.com/rishavpaul-system-design/matching-venue/internal/framing"
	"github.com/rishavpaul-system-design/matching-venue/internal/transport"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

// memTransport is an in-process transport.Transport used only by
// tests, so the session/manager handshake can be exercised without a
// real socket.
type memTransport struct {
	mu     sync.Mutex
	rxCb   transport.RxCallback
	sent   [][]byte
	closed bool
}

func (t *memTransport) AsyncRx(ctx context.Context, cb transport.RxCallback) error {
	t.mu.Lock()
	t.rxCb = cb
	t.mu.Unlock()
	return nil
}

func (t *memTransport) AsyncTx(data []byte, cb transport.TxCallback) {
	t.mu.Lock()
	t.sent = append(t.sent, append([]byte(nil), data...))
	t.mu.Unlock()
	if cb != nil {
		cb(nil)
	}
}

func (t *memTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *memTransport) deliver(body []byte) {
	t.mu.Lock()
	cb := t.rxCb
	t.mu.Unlock()
	cb(body, nil)
}

func newTestManager() (*Manager, *bus.SystemBus, *bus.MarketBus) {
	sysBus := bus.NewSystemBus()
	mktBus := bus.NewMarketBus()
	var tok types.Token = 1
	mgr := New(sysBus, mktBus, func() types.Token {
		tok++
		return tok
	}, nil)
	return mgr, sysBus, mktBus
}

func setupUpstream(t *testing.T, mgr *Manager, connID types.ConnectionId, onStatus func(ChannelStatusEvent)) (*Channel, *memTransport) {
	mt := &memTransport{}
	ch := NewChannel(connID, mt, nil, onStatus, nil)
	require.NoError(t, ch.Start(context.Background()))
	mgr.AcceptUpstream(ch)
	return ch, mt
}

// TestAuthSuccess covers the spec's "auth success" scenario: a valid
// login yields a non-zero token.
func TestAuthSuccess(t *testing.T) {
	mgr, _, _ := newTestManager()
	ch, mt := setupUpstream(t, mgr, 1, func(ChannelStatusEvent) {})

	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 1, ClientId: 42, Ok: true})

	require.Len(t, mt.sent, 1)
	body, err := extractFrame(mt.sent[0])
	require.NoError(t, err)
	var env wireEnvelope
	require.NoError(t, Decode(body, &env))
	var resp types.LoginResponse
	require.NoError(t, Decode(env.Body, &resp))
	require.True(t, resp.Ok)
	require.NotZero(t, resp.Token)
	require.True(t, ch.Authenticated())
}

// TestDuplicateAuth covers the "duplicate auth" scenario: a second
// login for an already-authorized client is rejected and closed.
func TestDuplicateAuth(t *testing.T) {
	mgr, _, _ := newTestManager()
	_, _ = setupUpstream(t, mgr, 1, func(ChannelStatusEvent) {})
	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 1, ClientId: 42, Ok: true})

	_, mt2 := setupUpstream(t, mgr, 2, func(ChannelStatusEvent) {})
	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 2, ClientId: 42, Ok: true})

	require.Len(t, mt2.sent, 1)
	body, _ := extractFrame(mt2.sent[0])
	var env wireEnvelope
	require.NoError(t, Decode(body, &env))
	var resp types.LoginResponse
	require.NoError(t, Decode(env.Body, &resp))
	require.False(t, resp.Ok)
	require.Equal(t, "Already authorized", resp.Error)
	require.True(t, mt2.closed)
}

// TestInvalidToken covers the "invalid token" scenario.
func TestInvalidToken(t *testing.T) {
	mgr, _, _ := newTestManager()
	mt := &memTransport{}
	ch := NewChannel(3, mt, nil, func(ChannelStatusEvent) {}, nil)
	require.NoError(t, ch.Start(context.Background()))
	mgr.AcceptDownstream(ch)

	mgr.onTokenBindRequest(ServerTokenBindRequest{ConnectionId: 3, Request: types.TokenBindRequest{Token: 9999}})

	require.Len(t, mt.sent, 1)
	body, _ := extractFrame(mt.sent[0])
	var env wireEnvelope
	require.NoError(t, Decode(body, &env))
	var resp types.LoginResponse
	require.NoError(t, Decode(env.Body, &resp))
	require.False(t, resp.Ok)
	require.Equal(t, "Invalid token", resp.Error)
	require.True(t, mt.closed)
}

// TestSessionUniqueness is spec property 6.
func TestSessionUniqueness(t *testing.T) {
	mgr, _, _ := newTestManager()
	_, _ = setupUpstream(t, mgr, 1, func(ChannelStatusEvent) {})
	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 1, ClientId: 1, Ok: true})
	require.Equal(t, 1, mgr.SessionCount())

	_, _ = setupUpstream(t, mgr, 2, func(ChannelStatusEvent) {})
	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 2, ClientId: 1, Ok: true})
	require.Equal(t, 1, mgr.SessionCount())
}

// TestTokenOpacity is spec property 7: tokens carry no client-derived
// structure a reader could invert — this is trivially true for the
// random-uint64 generator used in production, so the test instead
// checks that distinct logins never receive the same token from a
// monotonic-looking generator, i.e. Token is purely a lookup key.
func TestTokenOpacity(t *testing.T) {
	mgr, _, _ := newTestManager()
	_, _ = setupUpstream(t, mgr, 1, func(ChannelStatusEvent) {})
	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 1, ClientId: 1, Ok: true})

	_, _ = setupUpstream(t, mgr, 2, func(ChannelStatusEvent) {})
	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 2, ClientId: 2, Ok: true})

	tokens := map[types.Token]bool{}
	for _, s := range mgr.sessions {
		require.False(t, tokens[s.token])
		tokens[s.token] = true
	}
}

// TestCloseClosesKnownChannels covers spec §5's shutdown rule: closing
// the session manager closes every channel it knows about, including
// ones still pending authentication.
func TestCloseClosesKnownChannels(t *testing.T) {
	mgr, _, _ := newTestManager()
	ch, mt := setupUpstream(t, mgr, 1, func(ev ChannelStatusEvent) {
		mgr.onChannelStatus(ev)
	})
	mgr.onLoginResponse(ServerLoginResponse{ConnectionId: 1, ClientId: 1, Ok: true})
	require.True(t, ch.Authenticated())

	pendingMt := &memTransport{}
	pending := NewChannel(2, pendingMt, nil, func(ChannelStatusEvent) {}, nil)
	mgr.AcceptUpstream(pending)

	mgr.Close()

	require.True(t, mt.closed)
	require.True(t, pendingMt.closed)
}

func extractFrame(framed []byte) ([]byte, error) {
	var body []byte
	_, err := framing.Unframe(framed, func(b []byte) {
		body = append([]byte(nil), b...)
	})
	return body, err
}
