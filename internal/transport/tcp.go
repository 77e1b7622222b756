package transport

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// TCPTransport wraps a net.Conn obtained from a TCP listener or dial,
// disabling Nagle's algorithm per spec §6.
type TCPTransport struct {
	conn net.Conn
}

// NewTCP wraps conn, setting TCP_NODELAY via the raw file descriptor.
func NewTCP(conn net.Conn) (*TCPTransport, error) {
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			return nil, err
		}
		if err := setSockOptNoDelay(tc); err != nil {
			return nil, err
		}
	}
	return &TCPTransport{conn: conn}, nil
}

func setSockOptNoDelay(tc *net.TCPConn) error {
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func (t *TCPTransport) AsyncRx(ctx context.Context, cb RxCallback) error {
	buf := make([]byte, 64*1024)
	go func() {
		for {
			select {
			case <-ctx.Done():
				cb(nil, ErrClosed)
				return
			default:
			}
			n, err := t.conn.Read(buf)
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

func (t *TCPTransport) AsyncTx(data []byte, cb TxCallback) {
	go func() {
		_, err := t.conn.Write(data)
		if cb != nil {
			cb(err)
		}
	}()
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}
