package ttytee

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

const (
	// readBufferSize is the size of the single buffer reused across
	// loop iterations.
	readBufferSize = 4096

	// highWaterMark is the unread-backlog threshold per endpoint. At or
	// above it new data is dropped for that endpoint; well under the
	// kernel's pty buffer capacity so writes below the mark never block.
	highWaterMark = 2048

	// antiHotloop bounds the retry rate after a recoverable error.
	antiHotloop = 500 * time.Millisecond
)

// Config is the parameter set the engine runs with. The flag layer in
// cmd/ttytee produces one; tests build them directly.
type Config struct {
	// Master is the path of the real serial device to read from.
	Master string
	// BaudRate to open Master with.
	BaudRate int
	// Slave0 and Slave1 are the stable symlink paths consumers open.
	Slave0 string
	Slave1 string
	// MasterReadTimeout bounds each blocking read on Master.
	MasterReadTimeout time.Duration
	// SlaveReadTimeout is the per-endpoint staleness timeout: a
	// consumer that has not drained its backlog within it gets the
	// backlog cleared.
	SlaveReadTimeout time.Duration
}

// Engine owns the master device and both replica endpoints and runs
// the read/distribute loop.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New returns an engine for cfg. A nil logger discards all output.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Run opens the master device, allocates both endpoints and their
// symlinks, and forwards the master's byte stream to both endpoints
// until running goes false. The flag is polled once per iteration, so
// cancellation latency is bounded by one master read timeout.
//
// Run returns an error only when the master device cannot be opened or
// a PTY pair cannot be allocated; every I/O failure inside the loop is
// recoverable and absorbed. Symlinks that were created are removed on
// every return path.
func (e *Engine) Run(running *atomic.Bool) error {
	e.logger.Info("ttytee is starting", "master", e.cfg.Master, "baudrate", e.cfg.BaudRate)

	dev, err := OpenDevice(e.cfg.Master, e.cfg.BaudRate, e.cfg.MasterReadTimeout)
	if err != nil {
		e.logger.Error("could not open the master device", "master", e.cfg.Master, "error", err)
		return err
	}
	defer dev.Close()

	ep0, err := NewEndpoint()
	if err != nil {
		e.logger.Error("could not allocate the first pty pair", "error", err)
		return err
	}
	defer ep0.Close()

	ep1, err := NewEndpoint()
	if err != nil {
		e.logger.Error("could not allocate the second pty pair", "error", err)
		return err
	}
	defer ep1.Close()

	link0 := CreateSymlink(ep0.Path(), e.cfg.Slave0, e.logger)
	defer link0.Remove()
	link1 := CreateSymlink(ep1.Path(), e.cfg.Slave1, e.logger)
	defer link1.Remove()

	now := time.Now()
	lastGood0, lastGood1 := now, now

	buf := make([]byte, readBufferSize)
	for running.Load() {
		n, err := dev.Read(buf)
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			// The poll already waited a full read timeout: nothing to
			// forward, go straight back to the cancellation check.
			e.logger.Debug("no data from master within read timeout")
		case errors.Is(err, io.EOF):
			e.logger.Warn("EOF from master, trying again")
			time.Sleep(antiHotloop)
		case err != nil:
			e.logger.Warn("error reading from master, trying again", "error", err)
			time.Sleep(antiHotloop)
		default:
			e.logger.Debug("received from master", "bytes", n)
			lastGood0 = e.forwardOne(ep0, lastGood0, buf[:n])
			lastGood1 = e.forwardOne(ep1, lastGood1, buf[:n])
		}
	}

	e.logger.Info("ttytee is ending with no error")
	return nil
}

// forwardOne runs the forward step for one endpoint and absorbs its
// failure so the sibling endpoint is always attempted.
func (e *Engine) forwardOne(ep *Endpoint, lastGood time.Time, buf []byte) time.Time {
	next, err := e.forward(ep, lastGood, buf)
	if err != nil {
		e.logger.Warn("io error on endpoint", "endpoint", ep.Path(), "error", err)
		time.Sleep(antiHotloop)
	}
	return next
}

// forward offers buf to one endpoint under the staleness/backpressure
// policy and returns the endpoint's updated last-good-write time:
//
//  1. If the consumer has not drained its side within the staleness
//     timeout, all pending data on the pair is discarded and the clock
//     resets. Freshness beats completeness.
//  2. If the unread backlog is below the high-water mark, buf is
//     written through and the clock advances on success.
//  3. At or above the mark buf is dropped for this endpoint and the
//     clock is left ticking toward a future clear.
//
// A write failure is logged and leaves the previous time untouched, as
// if no write had happened. Backlog and flush failures are returned to
// the caller.
func (e *Engine) forward(ep *Endpoint, lastGood time.Time, buf []byte) (time.Time, error) {
	if time.Since(lastGood) > e.cfg.SlaveReadTimeout {
		e.logger.Warn("cleared stale buffer", "endpoint", ep.Path())
		if err := ep.Flush(); err != nil {
			return lastGood, err
		}
		lastGood = time.Now()
	}

	backlog, err := ep.Backlog()
	if err != nil {
		return lastGood, err
	}
	if backlog >= highWaterMark {
		e.logger.Debug("endpoint could not keep up, skipped writing to its buffer",
			"endpoint", ep.Path(), "backlog", backlog)
		return lastGood, nil
	}

	n, err := ep.Write(buf)
	if err != nil {
		e.logger.Warn("failed to write to endpoint", "endpoint", ep.Path(), "error", err)
		return lastGood, nil
	}
	e.logger.Debug("wrote to endpoint", "endpoint", ep.Path(), "bytes", n)
	return time.Now(), nil
}
