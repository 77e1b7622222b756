// Package transport abstracts the three wire carriers the session
// layer can run over — TCP, UDP and shared memory — behind one
// interface, grounded on original_source/common/src/network/async_socket.hpp
// and async_tcp_socket.hpp. The teacher repo has no equivalent; this is
// built fresh over net.Conn/net.PacketConn plus the package's own
// shared-memory ring pairing.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is delivered to a pending RxCallback when the carrier is
// closed out from under an in-flight receive.
var ErrClosed = errors.New("transport closed")

// RxCallback receives bytes read off the wire, or a non-nil err when
// the carrier is closed or fails (spec §4.4's "invoke cb with Closed"
// disarm behavior). The slice is only valid for the duration of the
// call; implementations must copy if they need to retain it.
type RxCallback func(data []byte, err error)

// TxCallback is invoked once a write completes or fails.
type TxCallback func(err error)

// Transport is the capability every session channel programs against.
// Implementations: TCP (internal/transport/tcp.go), UDP
// (internal/transport/udp.go) and SHM (internal/transport/shm.go).
type Transport interface {
	// AsyncRx arranges for cb to be invoked with each chunk read from
	// the underlying carrier until the context is cancelled or Close
	// is called.
	AsyncRx(ctx context.Context, cb RxCallback) error
	// AsyncTx writes data and invokes cb with the result.
	AsyncTx(data []byte, cb TxCallback)
	// Close tears down the underlying carrier. Idempotent.
	Close() error
}
