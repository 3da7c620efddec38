package ttytee

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Device is the master serial port the engine reads from. It is opened
// for raw, unbuffered operation and held exclusively: once configured,
// no other process can open the same device node.
type Device struct {
	fd        int
	file      *os.File
	timeout   time.Duration
	closeOnce sync.Once
}

// OpenDevice opens the serial device at path, configures it for raw 8N1
// operation at the given baud rate, and claims exclusive access.
// Read calls block for at most readTimeout; a readTimeout <= 0 blocks
// indefinitely.
func OpenDevice(path string, baudRate int, readTimeout time.Duration) (*Device, error) {
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ok := false
	defer func() {
		if !ok {
			syscall.Close(fd)
		}
	}()

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8

	// Baud rate
	baud := baudToUnix(baudRate)
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// Set VMIN=1, VTIME=0; read readiness is driven by poll below
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Keep other processes from reading the same device concurrently.
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		return nil, fmt.Errorf("set exclusive: %w", err)
	}

	// Turn back into blocking mode now that config is done
	syscall.SetNonblock(fd, false)

	ok = true
	return &Device{
		fd:      fd,
		file:    os.NewFile(uintptr(fd), path),
		timeout: readTimeout,
	}, nil
}

// Read fills p with whatever bytes the device has available, blocking
// up to the configured read timeout. A timeout with no data returns
// os.ErrDeadlineExceeded; (0, nil) is a genuine EOF from the device.
func (d *Device) Read(p []byte) (int, error) {
	ms := -1
	if d.timeout > 0 {
		ms = int(d.timeout.Milliseconds())
	}
	pfd := []unix.PollFd{
		{Fd: int32(d.fd), Events: unix.POLLIN},
	}
	for {
		n, err := unix.Poll(pfd, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return 0, os.ErrDeadlineExceeded
		}
		return d.file.Read(p)
	}
}

// Name returns the path the device was opened with.
func (d *Device) Name() string {
	return d.file.Name()
}

// Close releases the device. Safe to call multiple times; subsequent
// calls are no-ops.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.file.Close()
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 4800:
		return unix.B4800
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	default:
		return unix.B9600 // GPS receivers mostly talk 9600, fall back to that
	}
}
