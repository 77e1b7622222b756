// Package session implements the session channel and session manager
// described in spec §4.5/§4.6, grounded on
// original_source/server/src/network/concepts/session_channel_concept.hpp
// and original_source/server/src/session_manager.hpp respectively.
package session

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rishavpaul-system-design/matching-venue/internal/framing"
	"github.com/rishavpaul-system-design/matching-venue/internal/transport"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

// ConnectionStatus reports a channel's terminal or transient state to
// the system bus.
type ConnectionStatus uint8

const (
	StatusConnected ConnectionStatus = iota
	StatusDisconnected
	StatusError
)

// ChannelStatusEvent is published whenever a channel's connection
// status changes; ClientID is set only if the channel had completed
// authentication.
type ChannelStatusEvent struct {
	ConnectionId types.ConnectionId
	Status       ConnectionStatus
	ClientId     types.ClientId
	HasClientId  bool
}

// Decoder is anything that can consume a decoded message body off a
// channel; in production this is the market bus's decode-and-post
// path, kept as an interface so tests can substitute a recorder.
type Decoder interface {
	Decode(connID types.ConnectionId, body []byte)
}

// Channel wraps one transport with the framer and authentication flag
// described in spec §4.5. Pre-authentication, only a LoginRequest or
// TokenBindRequest frame is accepted; everything else on that path is
// a protocol violation handled by the caller inspecting Authenticated.
type Channel struct {
	connID        types.ConnectionId
	transport     transport.Transport
	decoder       Decoder
	clientID      atomic.Uint32
	hasClientID   atomic.Bool
	authenticated atomic.Bool
	partial       []byte
	onStatus      func(ChannelStatusEvent)
	log           *zap.SugaredLogger
}

// NewChannel constructs a Channel over t, invoking onStatus whenever
// the channel's connection status changes.
func NewChannel(connID types.ConnectionId, t transport.Transport, decoder Decoder, onStatus func(ChannelStatusEvent), log *zap.SugaredLogger) *Channel {
	return &Channel{connID: connID, transport: t, decoder: decoder, onStatus: onStatus, log: log}
}

// ConnectionId returns the channel's stable identifier.
func (c *Channel) ConnectionId() types.ConnectionId { return c.connID }

// Authenticated reports whether Authenticate has been called.
func (c *Channel) Authenticated() bool { return c.authenticated.Load() }

// ClientID returns the channel's bound ClientId and whether
// Authenticate has been called yet.
func (c *Channel) ClientID() (types.ClientId, bool) {
	return types.ClientId(c.clientID.Load()), c.hasClientID.Load()
}

// Authenticate marks the channel authenticated and binds it to
// clientID, after which pre-auth message restrictions no longer apply.
func (c *Channel) Authenticate(clientID types.ClientId) {
	c.clientID.Store(uint32(clientID))
	c.hasClientID.Store(true)
	c.authenticated.Store(true)
}

// Start begins reading frames off the transport, decoding each
// complete one via decoder.Decode. Read errors or EOF publish a
// Disconnected status; a framing error publishes Error instead, drops
// the buffered bytes and closes the transport. Either ends the
// channel's read loop.
func (c *Channel) Start(ctx context.Context) error {
	return c.transport.AsyncRx(ctx, func(data []byte, rxErr error) {
		if rxErr != nil {
			c.publishStatus(StatusDisconnected)
			return
		}
		c.partial = append(c.partial, data...)
		n, err := framing.Unframe(c.partial, func(body []byte) {
			c.decoder.Decode(c.connID, body)
		})
		if err != nil {
			c.publishStatus(StatusError)
			c.partial = nil
			c.transport.Close()
			return
		}
		c.partial = c.partial[n:]
	})
}

// Post frames and writes msg to the downstream peer. A write error
// publishes an Error status.
func (c *Channel) Post(body []byte) {
	framed, err := framing.Frame(body)
	if err != nil {
		if c.log != nil {
			c.log.Errorw("failed to frame outgoing message", "conn", c.connID, "err", err)
		}
		return
	}
	c.transport.AsyncTx(framed, func(err error) {
		if err != nil {
			c.publishStatus(StatusError)
		}
	})
}

// Close tears down the underlying transport.
func (c *Channel) Close() error {
	return c.transport.Close()
}

func (c *Channel) publishStatus(status ConnectionStatus) {
	if c.onStatus == nil {
		return
	}
	c.onStatus(ChannelStatusEvent{
		ConnectionId: c.connID,
		Status:       status,
		ClientId:     types.ClientId(c.clientID.Load()),
		HasClientId:  c.hasClientID.Load(),
	})
}
