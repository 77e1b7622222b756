package transport

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// UDPTransport wraps a net.PacketConn, used for the broadcast channel.
// Build the listening socket with ListenBroadcast, which sets
// SO_REUSEADDR and SO_BROADCAST before bind, per spec §6's socket
// option list; the transport itself only needs the already-configured
// connection.
type UDPTransport struct {
	conn net.PacketConn
	dst  net.Addr
}

// NewUDP wraps conn; dst is the broadcast address AsyncTx writes to.
func NewUDP(conn net.PacketConn, dst net.Addr) *UDPTransport {
	return &UDPTransport{conn: conn, dst: dst}
}

// ListenBroadcast binds a UDP socket at addr with SO_REUSEADDR and
// SO_BROADCAST set on the raw file descriptor, mirroring tcp.go's
// setSockOptNoDelay pattern. SO_REUSEADDR must land before bind(2), so
// this goes through net.ListenConfig's Control hook rather than
// SyscallConn on an already-bound connection.
func ListenBroadcast(addr string) (net.PacketConn, error) {
	var sockErr error
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			ctrlErr := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
					sockErr = err
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			})
			if ctrlErr != nil {
				return ctrlErr
			}
			return nil
		},
	}
	conn, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, err
	}
	if sockErr != nil {
		conn.Close()
		return nil, sockErr
	}
	return conn, nil
}

func (t *UDPTransport) AsyncRx(ctx context.Context, cb RxCallback) error {
	buf := make([]byte, 64*1024)
	go func() {
		for {
			select {
			case <-ctx.Done():
				cb(nil, ErrClosed)
				return
			default:
			}
			n, _, err := t.conn.ReadFrom(buf)
			if n > 0 {
				cb(buf[:n], nil)
			}
			if err != nil {
				cb(nil, err)
				return
			}
		}
	}()
	return nil
}

func (t *UDPTransport) AsyncTx(data []byte, cb TxCallback) {
	go func() {
		_, err := t.conn.WriteTo(data, t.dst)
		if cb != nil {
			cb(err)
		}
	}()
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
