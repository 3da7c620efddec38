// Package ttytee exposes one Linux serial device as two independently
// consumable read-only PTY replicas.
//
// The initial use case is a single GPS receiver on a USB UART shared by
// two unrelated processes, but it works for fanning out any serial
// byte stream. The design is real-time: if one consumer cannot keep up,
// its pending data is dropped or cleared so it always sees a fresh
// stream, and the other consumer is never affected.
//
// Features:
//   - Raw syscall-based serial I/O on Linux, no buffering delays
//   - Exclusive access to the master device (TIOCEXCL)
//   - Two replica PTYs with stable symlink paths surviving /dev/pts churn
//   - Per-replica staleness timeout and high-water backpressure
//   - Cooperative cancellation via a shared atomic flag
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	cfg := ttytee.Config{
//	    Master:            "/dev/ttyUSB0",
//	    BaudRate:          9600,
//	    Slave0:            "/tmp/gps0.pty",
//	    Slave1:            "/tmp/gps1.pty",
//	    MasterReadTimeout: time.Second,
//	    SlaveReadTimeout:  time.Second,
//	}
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//
//	var running atomic.Bool
//	running.Store(true)
//
//	eng := ttytee.New(cfg, logger)
//	if err := eng.Run(&running); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... to stop forwarding, call running.Store(false) from another
//	// goroutine; Run returns within one master read timeout and the
//	// symlinks are removed.
package ttytee
