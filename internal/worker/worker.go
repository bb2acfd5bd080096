// Package worker implements the fixed-size worker pool (spec §4.5, C5):
// one long-lived goroutine per slot that dequeues admitted requests,
// enforces client-identity uniqueness, opens the client's pipes, and
// drives a session engine to completion.
package worker

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/pacmanist/pacmanserver/internal/board"
	"github.com/pacmanist/pacmanserver/internal/engine"
	"github.com/pacmanist/pacmanserver/internal/queue"
	"github.com/pacmanist/pacmanserver/internal/registry"
	"github.com/pacmanist/pacmanserver/internal/wire"
)

// Metrics is the subset of pkg/metrics.SessionMetrics a worker updates.
// Declared as an interface so tests can supply a no-op implementation
// without importing the prometheus client.
type Metrics interface {
	IncSessionsComplete(outcome string)
	SetSessionsActive(n int)
	IncBoardFrames()
}

// Worker drives exactly one registry slot for the lifetime of the
// process. It never exits in normal operation (spec §4.5).
type Worker struct {
	Slot     int
	Queue    *queue.Queue
	Registry *registry.Registry
	Loader   board.LevelLoader
	Mover    board.Mover
	Logger   *slog.Logger
	Metrics  Metrics
}

// Run blocks forever, servicing one session after another. Pass a ctx
// that is cancelled at process shutdown to let it return (used only by
// tests; the shipped binary runs workers for the life of the process).
func (w *Worker) Run(ctx context.Context) {
	log := w.Logger.With("slot", w.Slot)
	for {
		req, err := w.Queue.Dequeue(ctx)
		if err != nil {
			log.Info("worker stopping", "err", err)
			return
		}
		w.serve(log, req)
	}
}

func (w *Worker) serve(log *slog.Logger, req queue.Request) {
	// A fresh correlation id per dequeued request (SPEC_FULL.md A.1), not
	// once per worker at startup — a worker serves many sessions over
	// its lifetime and each needs its own id to be useful for log
	// correlation.
	log = log.With("session_id", uuid.NewString())

	claimed, err := w.Registry.ClaimIdentity(w.Slot, req.ReqPipe)
	if err != nil {
		log.Error("claim identity failed", "err", err)
		return
	}
	if !claimed {
		// Duplicate identity: open-then-close both of the client's pipes
		// to unblock its open-for-write/read calls, then discard the
		// request (spec §7).
		log.Warn("rejecting duplicate identity", "req_pipe", req.ReqPipe)
		unblock(req.ReqPipe)
		unblock(req.NotifPipe)
		return
	}
	defer w.Registry.ReleaseIdentity(w.Slot)

	reqFD, err := os.OpenFile(req.ReqPipe, os.O_RDWR, 0)
	if err != nil {
		log.Warn("open request pipe failed", "req_pipe", req.ReqPipe, "err", err)
		return
	}
	defer reqFD.Close()

	notifFD, err := os.OpenFile(req.NotifPipe, os.O_RDWR, 0)
	if err != nil {
		log.Warn("open notify pipe failed", "notif_pipe", req.NotifPipe, "err", err)
		return
	}
	defer notifFD.Close()

	// Supplemental connection acknowledgement (SPEC_FULL.md C.2a),
	// mirroring client_thread's immediate post-open response write.
	if _, err := notifFD.Write(ackFrame()); err != nil {
		log.Debug("ack write failed", "err", err)
	}

	sess := &engine.Session{
		Slot:     w.Slot,
		Registry: w.Registry,
		Loader:   w.Loader,
		Mover:    w.Mover,
		Logger:   log,
		OnBoardFrame: func() {
			if w.Metrics != nil {
				w.Metrics.IncBoardFrames()
			}
		},
	}

	if w.Metrics != nil {
		w.Metrics.SetSessionsActive(w.Registry.ActiveCount())
	}

	outcome := "ok"
	if err := sess.Run(reqFD, notifFD, req.LevelDir); err != nil {
		outcome = "error"
		log.Warn("session ended with error", "err", err)
	}

	if w.Metrics != nil {
		w.Metrics.IncSessionsComplete(outcome)
		w.Metrics.SetSessionsActive(w.Registry.ActiveCount())
	}
}

func unblock(pipe string) {
	f, err := os.OpenFile(pipe, os.O_RDWR, 0)
	if err != nil {
		return
	}
	f.Close()
}

func ackFrame() []byte {
	return wire.EncodeAck(0)
}
