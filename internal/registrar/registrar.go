// Package registrar implements the registration loop (spec §4.4, C4):
// reads CONNECT frames off the registration FIFO and enqueues them onto
// the admission queue.
//
// spec §4.4 has this loop also "check the introspection flag" between
// reads so a pending SIGUSR1 is serviced promptly. In this port that
// check is unnecessary: internal/introspection runs its own goroutine
// fed directly by signal.Notify, so a report is never gated on this
// loop's progress (see internal/introspection's package doc).
package registrar

import (
	"context"
	"io"
	"log/slog"

	"github.com/pacmanist/pacmanserver/internal/queue"
	"github.com/pacmanist/pacmanserver/internal/wire"
)

// Metrics is the subset of pkg/metrics.SessionMetrics the registrar
// updates.
type Metrics interface {
	IncAdmissions()
	SetQueueDepth(n int)
}

// Loop reads CONNECT frames from a reader (the registration FIFO opened
// read-write so EOF never occurs) and enqueues admission requests.
type Loop struct {
	Queue    *queue.Queue
	LevelDir string
	Logger   *slog.Logger
	Metrics  Metrics
}

// Run blocks until reg returns io.EOF (Run returns nil) or ctx is
// cancelled while Enqueue is waiting for a free queue slot (Run returns
// ctx's error). Every other read or decode error discards the frame and
// the loop continues. Cancelling ctx does not interrupt a read that is
// already blocked on reg.
func (l *Loop) Run(ctx context.Context, reg io.Reader) error {
	for {
		frame, err := wire.ReadConnect(reg)
		if err != nil {
			if err == io.EOF {
				// A read-write-opened FIFO never sees EOF from "no
				// writers"; a genuine EOF here means the fd was closed
				// out from under us (process shutdown).
				return nil
			}
			// Any other failure reading or decoding a CONNECT frame —
			// a bad opcode, a short read, or a truncated frame that
			// surfaces as io.ErrUnexpectedEOF — is malformed input:
			// discard it and keep serving (spec §7). wire.ReadConnect
			// and wire.DecodeConnect are the only producers of these
			// errors, and none of them indicate the register pipe
			// itself is unusable.
			l.Logger.Debug("discarding malformed connect frame", "err", err)
			continue
		}

		req := queue.Request{
			ReqPipe:   frame.ReqPipe,
			NotifPipe: frame.NotifPipe,
			LevelDir:  l.LevelDir,
		}
		if err := l.Queue.Enqueue(ctx, req); err != nil {
			return err
		}
		if l.Metrics != nil {
			l.Metrics.IncAdmissions()
			l.Metrics.SetQueueDepth(l.Queue.Depth())
		}
	}
}
