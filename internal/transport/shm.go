package transport

import (
	"context"
	"sync"

	"github.com/rishavpaul-system-design/matching-venue/internal/ring"
	"github.com/rishavpaul-system-design/matching-venue/internal/shmreactor"
)

// SHMTransport carries framed bytes over a pair of byte rings instead
// of a socket. NewSHM registers its Drain method with a new
// shmreactor.Reactor at construction; AsyncRx starts that reactor's
// Run loop once a callback is armed, and Close stops it again, per
// spec §4.3/§4.4's "SHM transports register with a reactor at
// construction and deregister at drop."
type SHMTransport struct {
	tx      *ring.ByteRing
	rx      *ring.ByteRing
	bell    *shmreactor.Doorbell
	reactor *shmreactor.Reactor

	mu     sync.Mutex
	rxCb   RxCallback
	rxBuf  []byte
	closed bool
}

// NewSHM builds a transport over tx (this side writes here) and rx
// (this side reads here), waking the peer via bell on every write, and
// wires its Drain method into a Reactor for role.
func NewSHM(role shmreactor.Role, tx, rx *ring.ByteRing, bell *shmreactor.Doorbell) *SHMTransport {
	t := &SHMTransport{tx: tx, rx: rx, bell: bell, rxBuf: make([]byte, 64*1024)}
	t.reactor = shmreactor.New(role, bell, t.Drain)
	return t
}

// AsyncRx arms cb and starts the registered reactor's drain loop on its
// own goroutine — SHM has no blocking read of its own, so draining the
// ring via the reactor IS the read. Cancelling ctx closes the
// transport the same as an explicit Close.
func (t *SHMTransport) AsyncRx(ctx context.Context, cb RxCallback) error {
	t.mu.Lock()
	t.rxCb = cb
	t.mu.Unlock()

	go t.reactor.Run()
	go func() {
		<-ctx.Done()
		t.Close()
	}()
	return nil
}

// Drain copies whatever is currently available out of rx and invokes
// the registered callback. It returns true if any bytes were moved, so
// the reactor's busy-wait loop knows to keep spinning.
func (t *SHMTransport) Drain() bool {
	t.mu.Lock()
	cb := t.rxCb
	closed := t.closed
	t.mu.Unlock()
	if closed || cb == nil {
		return false
	}

	avail := t.rx.Available()
	if avail == 0 {
		return false
	}
	if avail > len(t.rxBuf) {
		avail = len(t.rxBuf)
	}
	if err := t.rx.TryRead(t.rxBuf[:avail]); err != nil {
		return false
	}
	cb(t.rxBuf[:avail], nil)
	return true
}

func (t *SHMTransport) AsyncTx(data []byte, cb TxCallback) {
	err := t.tx.TryWrite(data)
	if err == nil {
		t.bell.Notify()
	}
	if cb != nil {
		cb(err)
	}
}

// Close disarms the pending receive with ErrClosed and stops the
// reactor, deregistering this transport from further drains.
func (t *SHMTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cb := t.rxCb
	t.mu.Unlock()

	t.reactor.Stop()
	if cb != nil {
		cb(nil, ErrClosed)
	}
	return nil
}
