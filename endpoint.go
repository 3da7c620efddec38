package ttytee

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Endpoint is one fan-out branch: a PTY pair whose master side the
// engine writes into and whose slave side a consumer opens (normally
// through a symlink, see Symlink). Consumers only read; writes from
// the slave side are not supported.
type Endpoint struct {
	master *os.File
	slave  *os.File
	path   string
}

// NewEndpoint allocates a fresh PTY pair. The returned endpoint owns
// both sides until Close.
func NewEndpoint() (*Endpoint, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("allocate pty pair: %w", err)
	}
	return &Endpoint{
		master: master,
		slave:  slave,
		path:   slave.Name(),
	}, nil
}

// Path returns the OS-assigned path of the consumer-facing side,
// e.g. /dev/pts/3.
func (e *Endpoint) Path() string {
	return e.path
}

// Write pushes p into the endpoint so it becomes readable on the
// consumer-facing side.
func (e *Endpoint) Write(p []byte) (int, error) {
	return e.master.Write(p)
}

// Backlog reports how many bytes are queued on the consumer-facing
// side that no consumer has read yet.
func (e *Endpoint) Backlog() (int, error) {
	n, err := unix.IoctlGetInt(int(e.slave.Fd()), unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("query backlog of %s: %w", e.path, err)
	}
	return n, nil
}

// Flush discards all pending data on both sides of the pair, including
// whatever the consumer has not read yet.
func (e *Endpoint) Flush() error {
	if err := unix.IoctlSetInt(int(e.master.Fd()), unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		return fmt.Errorf("flush master side of %s: %w", e.path, err)
	}
	if err := unix.IoctlSetInt(int(e.slave.Fd()), unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		return fmt.Errorf("flush %s: %w", e.path, err)
	}
	return nil
}

// Close releases both sides of the pair.
func (e *Endpoint) Close() error {
	err := e.master.Close()
	if serr := e.slave.Close(); err == nil {
		err = serr
	}
	return err
}
