package engine

import (
	"os"
	"time"

	"github.com/pacmanist/pacmanserver/internal/wire"
)

// readExact reads exactly len(buf) bytes from f, extending a short read
// deadline each poll so the caller's shutdown func is rechecked between
// attempts. Named pipes opened with os.OpenFile are pollable on Unix, so
// SetReadDeadline works the same way it would on a *os.File backed by
// os.Pipe.
func readExact(f *os.File, buf []byte, pollInterval time.Duration, shutdown func() bool) error {
	total := 0
	for total < len(buf) {
		if shutdown() {
			return errShutdown
		}
		if err := f.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			// Deadlines unsupported on this fd kind; fall back to a
			// single blocking read for the remainder of buf.
			n, err := f.Read(buf[total:])
			total += n
			if err != nil {
				return err
			}
			continue
		}
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
	}
	return nil
}

type shutdownErr struct{}

func (shutdownErr) Error() string { return "engine: session shutdown requested" }

var errShutdown error = shutdownErr{}

// readClientFrame reads one PLAY or DISCONNECT frame from a client's
// request FIFO, polling shutdown between partial reads.
func readClientFrame(f *os.File, pollInterval time.Duration, shutdown func() bool) (wire.ClientFrame, error) {
	for {
		var op [1]byte
		if err := readExact(f, op[:], pollInterval, shutdown); err != nil {
			return wire.ClientFrame{}, err
		}
		switch wire.Opcode(op[0]) {
		case wire.OpPlay:
			var cmd [1]byte
			if err := readExact(f, cmd[:], pollInterval, shutdown); err != nil {
				return wire.ClientFrame{}, err
			}
			return wire.ClientFrame{Op: wire.OpPlay, Cmd: cmd[0]}, nil
		case wire.OpDisconnect:
			return wire.ClientFrame{Op: wire.OpDisconnect}, nil
		default:
			// Unrecognized opcode byte on the request FIFO: not named as
			// an error case by spec §7 (which only covers malformed
			// CONNECT frames); treated as noise and skipped rather than
			// tearing the session down.
			continue
		}
	}
}
