//go:build linux
// +build linux

// ttytee exposes one serial device as two read-only PTY replicas so two
// unrelated processes can consume the same live stream.
//
// Usage:
//
//	ttytee [flags]
//
// The defaults suit a GPS receiver on /dev/ttyUSB0 at 9600 baud. The
// replicas appear at the --slave0 and --slave1 symlink paths and are
// removed again on clean shutdown (SIGINT/SIGTERM included).
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	ttytee "github.com/luhtfiimanal/go-ttytee"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("ttytee", pflag.ContinueOnError)
	master := flags.StringP("master", "m", "/dev/ttyUSB0", "serial device to read from")
	baudrate := flags.Int("baudrate", 9600, "baud rate of the master device")
	slave0 := flags.String("slave0", "slave0.pty", "symlink path of the first replica PTY")
	slave1 := flags.String("slave1", "slave1.pty", "symlink path of the second replica PTY")
	masterReadTimeout := flags.Int("master-read-timeout", 1000, "read timeout on the master device in ms")
	slaveReadTimeout := flags.Int("slave-read-timeout", 1000, "staleness timeout per replica in ms")
	logPath := flags.String("log-path", "", "optional file to duplicate the log stream into")
	debug := flags.Bool("debug", false, "enable debug logging")
	showVersion := flags.BoolP("version", "V", false, "print version and exit")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printUsage(flags)
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if *showVersion {
		fmt.Printf("ttytee %s\n", version)
		return 0
	}

	logger, closeLog, err := newLogger(*logPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	defer closeLog()

	cfg := ttytee.Config{
		Master:            *master,
		BaudRate:          *baudrate,
		Slave0:            *slave0,
		Slave1:            *slave1,
		MasterReadTimeout: time.Duration(*masterReadTimeout) * time.Millisecond,
		SlaveReadTimeout:  time.Duration(*slaveReadTimeout) * time.Millisecond,
	}

	var running atomic.Bool
	running.Store(true)

	// The loop polls the flag once per iteration, so the engine winds
	// down within one master read timeout of the signal and the replica
	// symlinks are removed on the way out.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("received signal, shutting down", "signal", sig.String())
		running.Store(false)
	}()

	if err := ttytee.New(cfg, logger).Run(&running); err != nil {
		return 1
	}
	return 0
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Print(`ttytee - expose one serial device as two read-only PTY replicas

USAGE
    ttytee [flags]

FLAGS
`)
	fmt.Print(flags.FlagUsages())
}

// newLogger builds the process logger: text on stderr, optionally
// duplicated into logPath.
func newLogger(logPath string, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return nil, nil, fmt.Errorf("create log file %s: %w", logPath, err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeLog, nil
}
