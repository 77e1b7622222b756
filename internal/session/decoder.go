package session

import (
	"go.uber.org/zap"

	"github.com/rishavpaul-system-design/matching-venue/internal/bus"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

// wireEnvelope tags every message body, in either direction, with its
// Kind so UpstreamDecoder can enforce spec §4.5's pre-auth restriction
// (only LoginRequest is accepted until the channel authenticates).
type wireEnvelope struct {
	Kind string
	Body []byte
}

const (
	kindLogin       = "login"
	kindOrder       = "order"
	kindBind        = "bind"
	kindLoginReply  = "login_reply"
	kindOrderStatus = "order_status"
	kindTickerPrice = "ticker_price"
)

// EncodeLoginRequest frames a LoginRequest for the wire.
func EncodeLoginRequest(r types.LoginRequest) []byte {
	return Encode(wireEnvelope{Kind: kindLogin, Body: Encode(r)})
}

// EncodeOrder frames an Order for the wire.
func EncodeOrder(o types.Order) []byte {
	return Encode(wireEnvelope{Kind: kindOrder, Body: Encode(o)})
}

// EncodeTokenBindRequest frames a TokenBindRequest for the wire.
func EncodeTokenBindRequest(r types.TokenBindRequest) []byte {
	return Encode(wireEnvelope{Kind: kindBind, Body: Encode(r)})
}

// EncodeTickerPrice frames a broadcast TickerPrice for the wire.
func EncodeTickerPrice(p types.TickerPrice) []byte {
	return Encode(wireEnvelope{Kind: kindTickerPrice, Body: Encode(p)})
}

// UpstreamDecoder implements Decoder for upstream channels: the first
// message on a connection must be a LoginRequest; afterward only
// Order messages are accepted.
type UpstreamDecoder struct {
	manager   *Manager
	marketBus *bus.MarketBus
	log       *zap.SugaredLogger
	clientOf  func(types.ConnectionId) (types.ClientId, bool)
}

// NewUpstreamDecoder constructs an UpstreamDecoder. clientOf resolves
// an authenticated connection to its ClientId for tagging ServerOrder.
func NewUpstreamDecoder(manager *Manager, marketBus *bus.MarketBus, clientOf func(types.ConnectionId) (types.ClientId, bool), log *zap.SugaredLogger) *UpstreamDecoder {
	return &UpstreamDecoder{manager: manager, marketBus: marketBus, clientOf: clientOf, log: log}
}

func (d *UpstreamDecoder) Decode(connID types.ConnectionId, body []byte) {
	var env wireEnvelope
	if err := Decode(body, &env); err != nil {
		if d.log != nil {
			d.log.Warnw("failed to decode upstream envelope", "conn", connID, "err", err)
		}
		return
	}

	switch env.Kind {
	case kindLogin:
		if _, authed := d.clientOf(connID); authed {
			if d.log != nil {
				d.log.Warnw("login request on authenticated connection dropped", "conn", connID)
			}
			return
		}
		var req types.LoginRequest
		if err := Decode(env.Body, &req); err != nil {
			return
		}
		d.manager.OnLoginRequest(connID, req)
	case kindOrder:
		var o types.Order
		if err := Decode(env.Body, &o); err != nil {
			return
		}
		clientID, ok := d.clientOf(connID)
		if !ok {
			if d.log != nil {
				d.log.Warnw("order from unauthenticated connection dropped", "conn", connID)
			}
			return
		}
		bus.Post(d.marketBus, types.ServerOrder{Order: o, ClientId: clientID})
	default:
		if d.log != nil {
			d.log.Warnw("unexpected upstream message kind", "conn", connID, "kind", env.Kind)
		}
	}
}

// DownstreamDecoder implements Decoder for downstream channels, whose
// only pre-auth message is TokenBindRequest.
type DownstreamDecoder struct {
	manager *Manager
	log     *zap.SugaredLogger
}

// NewDownstreamDecoder constructs a DownstreamDecoder.
func NewDownstreamDecoder(manager *Manager, log *zap.SugaredLogger) *DownstreamDecoder {
	return &DownstreamDecoder{manager: manager, log: log}
}

func (d *DownstreamDecoder) Decode(connID types.ConnectionId, body []byte) {
	var env wireEnvelope
	if err := Decode(body, &env); err != nil {
		return
	}
	if env.Kind != kindBind {
		if d.log != nil {
			d.log.Warnw("unexpected downstream message kind", "conn", connID, "kind", env.Kind)
		}
		return
	}
	var req types.TokenBindRequest
	if err := Decode(env.Body, &req); err != nil {
		return
	}
	d.manager.OnTokenBindRequest(connID, req)
}
