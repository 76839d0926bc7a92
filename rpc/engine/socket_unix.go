//go:build unix

package engine

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/sys/unix"
)

// dial opens a non-blocking stream socket and starts connecting to endpoint.
// inProgress is true if completion is signalled by write readiness.
// Host names are resolved synchronously.
func dial(endpoint string) (fd int, inProgress bool, err error) {
	sa, family, err := resolve(endpoint)
	if err != nil {
		return -1, false, err
	}

	fd, err = unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, false, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, false, fmt.Errorf("set non-blocking: %w", err)
	}
	if family != unix.AF_UNIX {
		// small request frames must not wait for more data
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}

	err = unix.Connect(fd, sa)
	switch {
	case err == nil:
		return fd, false, nil
	case errors.Is(err, unix.EINPROGRESS):
		return fd, true, nil
	default:
		_ = unix.Close(fd)
		return -1, false, fmt.Errorf("connect %s: %w", endpoint, err)
	}
}

// resolve turns "host:port" or "unix:/path" into a socket address
func resolve(endpoint string) (unix.Sockaddr, int, error) {
	if path, ok := strings.CutPrefix(endpoint, "unix:"); ok {
		return &unix.SockaddrUnix{Name: path}, unix.AF_UNIX, nil
	}

	addr, err := net.ResolveTCPAddr("tcp", endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve %s: %w", endpoint, err)
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return sa, unix.AF_INET6, nil
}

// socketError returns the pending error of a socket after connect completed
func socketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

func readFD(fd int, buf []byte) (int, error) { return unix.Read(fd, buf) }

func writeFD(fd int, buf []byte) (int, error) { return unix.Write(fd, buf) }

func closeFD(fd int) error { return unix.Close(fd) }

func isAgain(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
