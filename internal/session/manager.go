package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rishavpaul-system-design/matching-venue/internal/bus"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

// ServerLoginRequest wraps an upstream LoginRequest with the
// connection it arrived on, published on the system bus for the
// authenticator to consume.
type ServerLoginRequest struct {
	ConnectionId types.ConnectionId
	Request      types.LoginRequest
}

// ServerLoginResponse is the authenticator's reply.
type ServerLoginResponse struct {
	ConnectionId types.ConnectionId
	ClientId     types.ClientId
	Ok           bool
	Error        string
}

// ServerTokenBindRequest wraps a downstream TokenBindRequest with its
// connection.
type ServerTokenBindRequest struct {
	ConnectionId types.ConnectionId
	Request      types.TokenBindRequest
}

type session struct {
	clientID      types.ClientId
	token         types.Token
	upstream      *Channel
	downstream    *Channel
	hasDownstream bool
}

// Manager implements the exact seven-step session handshake protocol
// from spec §4.6, grounded near line-for-line on
// original_source/server/src/session_manager.hpp. Sessions are owned
// only here (in sessions); Channels never hold a pointer into a
// Session, only their own ConnectionId, so Manager can move or delete
// sessions freely.
type Manager struct {
	systemBus *bus.SystemBus
	marketBus *bus.MarketBus
	tokenGen  func() types.Token
	log       *zap.SugaredLogger

	mu               sync.Mutex
	unauthUpstream   map[types.ConnectionId]*Channel
	unauthDownstream map[types.ConnectionId]*Channel
	sessions         map[types.ClientId]*session
}

// New constructs a Manager wired to the given buses. tokenGen
// generates a fresh Token per successful login.
func New(systemBus *bus.SystemBus, marketBus *bus.MarketBus, tokenGen func() types.Token, log *zap.SugaredLogger) *Manager {
	m := &Manager{
		systemBus:        systemBus,
		marketBus:        marketBus,
		tokenGen:         tokenGen,
		log:              log,
		unauthUpstream:   make(map[types.ConnectionId]*Channel),
		unauthDownstream: make(map[types.ConnectionId]*Channel),
		sessions:         make(map[types.ClientId]*session),
	}
	bus.Handle(marketBus, m.onOrderStatus)
	bus.Subscribe(systemBus, m.onLoginResponse)
	bus.Subscribe(systemBus, m.onTokenBindRequest)
	bus.Subscribe(systemBus, m.onChannelStatus)
	return m
}

// AcceptUpstream registers a freshly connected upstream channel as
// unauthenticated (step 1). Its first decoded message must be a
// LoginRequest — the caller's Decoder is expected to enforce that and
// call OnLoginRequest.
func (m *Manager) AcceptUpstream(ch *Channel) {
	m.mu.Lock()
	m.unauthUpstream[ch.ConnectionId()] = ch
	m.mu.Unlock()
}

// AcceptDownstream registers a freshly connected downstream channel as
// unauthenticated (step 5).
func (m *Manager) AcceptDownstream(ch *Channel) {
	m.mu.Lock()
	m.unauthDownstream[ch.ConnectionId()] = ch
	m.mu.Unlock()
}

// OnLoginRequest publishes the upstream login request onto the system
// bus for the authenticator, completing step 1.
func (m *Manager) OnLoginRequest(connID types.ConnectionId, req types.LoginRequest) {
	bus.Publish(m.systemBus, ServerLoginRequest{ConnectionId: connID, Request: req})
}

// OnTokenBindRequest publishes the downstream token-bind request,
// starting step 5's processing in onTokenBindRequest.
func (m *Manager) OnTokenBindRequest(connID types.ConnectionId, req types.TokenBindRequest) {
	bus.Publish(m.systemBus, ServerTokenBindRequest{ConnectionId: connID, Request: req})
}

// onLoginResponse implements step 3/4: on success, mint a session and
// token; on failure, post the rejection and close the channel.
func (m *Manager) onLoginResponse(resp ServerLoginResponse) {
	m.mu.Lock()
	ch, ok := m.unauthUpstream[resp.ConnectionId]
	if ok {
		delete(m.unauthUpstream, resp.ConnectionId)
	}
	m.mu.Unlock()

	if !ok {
		if m.log != nil {
			m.log.Errorw("login response for unknown connection", "conn", resp.ConnectionId)
		}
		return
	}

	if !resp.Ok {
		ch.Post(encodeLoginResponse(types.LoginResponse{Ok: false, Error: resp.Error}))
		ch.Close()
		return
	}

	token := m.tokenGen()

	m.mu.Lock()
	if _, exists := m.sessions[resp.ClientId]; exists {
		m.mu.Unlock()
		ch.Post(encodeLoginResponse(types.LoginResponse{Ok: false, Error: "Already authorized"}))
		ch.Close()
		return
	}
	m.sessions[resp.ClientId] = &session{clientID: resp.ClientId, token: token, upstream: ch}
	m.mu.Unlock()

	ch.Post(encodeLoginResponse(types.LoginResponse{Token: token, Ok: true}))
	ch.Authenticate(resp.ClientId)
}

// onTokenBindRequest implements step 6: look up the session by token
// and, if its downstream slot is free, bind this channel to it.
func (m *Manager) onTokenBindRequest(req ServerTokenBindRequest) {
	m.mu.Lock()
	ch, ok := m.unauthDownstream[req.ConnectionId]
	if ok {
		delete(m.unauthDownstream, req.ConnectionId)
	}
	m.mu.Unlock()

	if !ok {
		if m.log != nil {
			m.log.Warnw("client already disconnected", "conn", req.ConnectionId)
		}
		return
	}

	m.mu.Lock()
	var found *session
	for _, s := range m.sessions {
		if s.token == req.Request.Token {
			found = s
			break
		}
	}
	if found == nil {
		m.mu.Unlock()
		ch.Post(encodeLoginResponse(types.LoginResponse{Ok: false, Error: "Invalid token"}))
		ch.Close()
		return
	}
	if found.hasDownstream {
		m.mu.Unlock()
		ch.Post(encodeLoginResponse(types.LoginResponse{Ok: false, Error: "Already connected"}))
		ch.Close()
		return
	}
	found.downstream = ch
	found.hasDownstream = true
	m.mu.Unlock()

	ch.Authenticate(found.clientID)
	ch.Post(encodeLoginResponse(types.LoginResponse{Token: req.Request.Token, Ok: true}))
}

// onOrderStatus implements spec §4.6's routing rule: look up the
// session by ClientId and forward to its downstream channel, dropping
// with a debug log if there is none (spec's documented backpressure
// decision — drop, don't disconnect).
func (m *Manager) onOrderStatus(status types.ServerOrderStatus) {
	m.mu.Lock()
	s, ok := m.sessions[status.ClientId]
	m.mu.Unlock()
	if !ok {
		if m.log != nil {
			m.log.Debugw("client offline, order status dropped", "client", status.ClientId)
		}
		return
	}
	if !s.hasDownstream {
		if m.log != nil {
			m.log.Debugw("no downstream connection for client", "client", status.ClientId)
		}
		return
	}
	s.downstream.Post(encodeOrderStatus(status.OrderStatus))
}

// onChannelStatus implements step 7: on disconnect or error, remove
// the connection from both unauthenticated maps, and delete the
// session if the channel had authenticated, which transitively closes
// its peer channel.
func (m *Manager) onChannelStatus(event ChannelStatusEvent) {
	if event.Status == StatusConnected {
		return
	}

	m.mu.Lock()
	delete(m.unauthUpstream, event.ConnectionId)
	delete(m.unauthDownstream, event.ConnectionId)

	var peer *Channel
	if event.HasClientId {
		if s, ok := m.sessions[event.ClientId]; ok {
			if s.upstream != nil && s.upstream.ConnectionId() == event.ConnectionId {
				peer = s.downstream
			} else if s.downstream != nil && s.downstream.ConnectionId() == event.ConnectionId {
				peer = s.upstream
			}
			delete(m.sessions, event.ClientId)
		}
	}
	m.mu.Unlock()

	if peer != nil {
		peer.Close()
	}
}

// SessionCount returns the number of authenticated sessions, used by
// tests asserting uniqueness and by startup stats logging.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every channel the manager knows about — pending,
// authenticated or bound — per spec §5's Shutdown sequencing: closing
// the session manager closes all channels. Each Close call drives the
// normal disconnect path (publishStatus -> onChannelStatus), so the
// maps drain themselves as the callbacks land.
func (m *Manager) Close() {
	m.mu.Lock()
	var channels []*Channel
	for _, ch := range m.unauthUpstream {
		channels = append(channels, ch)
	}
	for _, ch := range m.unauthDownstream {
		channels = append(channels, ch)
	}
	for _, s := range m.sessions {
		if s.upstream != nil {
			channels = append(channels, s.upstream)
		}
		if s.hasDownstream && s.downstream != nil {
			channels = append(channels, s.downstream)
		}
	}
	m.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
}

func encodeLoginResponse(r types.LoginResponse) []byte {
	return Encode(wireEnvelope{Kind: kindLoginReply, Body: Encode(r)})
}

func encodeOrderStatus(s types.OrderStatus) []byte {
	return Encode(wireEnvelope{Kind: kindOrderStatus, Body: Encode(s)})
}
