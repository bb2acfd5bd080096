// Package introspection implements the signal-driven session report
// (spec §4.7, C7): on SIGUSR1, snapshot the live sessions from the
// registry, rank them by points, and write a text report to a fixed path.
//
// The reference server sets a volatile flag from an async-signal-safe
// handler and has its single-threaded main loop poll the flag between
// registrar iterations, because a POSIX signal handler cannot safely take
// locks or do I/O. Go's os/signal package already does that hand-off for
// us — signal.Notify delivers to a channel read by an ordinary goroutine,
// outside signal-handler context — so the flag-and-poll indirection has
// no idiomatic equivalent to preserve: a dedicated reporter goroutine
// selecting on that channel *is* "the main thread observing the signal
// and invoking C7," just without the polling latency the C version
// accepts between registrar reads. This divergence is recorded as a
// deliberate simplification, not an oversight (see DESIGN.md).
package introspection

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pacmanist/pacmanserver/internal/registry"
)

// Reporter owns the report path and the metrics/logging it emits while
// writing a report.
type Reporter struct {
	reg        *registry.Registry
	reportPath string
	logger     *slog.Logger
	onReport   func() // optional metrics hook, called once per report written
}

// New creates a Reporter bound to reg, writing to reportPath.
func New(reg *registry.Registry, reportPath string, logger *slog.Logger) *Reporter {
	return &Reporter{reg: reg, reportPath: reportPath, logger: logger}
}

// OnReport installs a callback invoked after each report is written
// (used to increment the introspection_report_cycles_total counter).
func (r *Reporter) OnReport(fn func()) {
	r.onReport = fn
}

// Report snapshots live sessions, ranks them, and (over)writes the report
// file. It is safe to call concurrently with session teardown: Snapshot
// takes the registry lock internally.
func (r *Reporter) Report() error {
	entries := r.reg.Snapshot()
	registry.SortByPointsDescending(entries)

	top := entries
	if len(top) > 5 {
		top = top[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pacman session server (PID %d)\n", os.Getpid())
	fmt.Fprintf(&b, "Live: %d\n", len(entries))
	for _, e := range top {
		fmt.Fprintf(&b, "slot=%d level=%q points=%d pos=(%d,%d) size=%dx%d\n",
			e.Slot, e.Level, e.Points, e.PacX, e.PacY, e.Width, e.Height)
	}

	if err := os.WriteFile(r.reportPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("introspection: write report: %w", err)
	}
	if r.logger != nil {
		r.logger.Info("wrote introspection report", "path", r.reportPath, "live", len(entries))
	}
	if r.onReport != nil {
		r.onReport()
	}
	return nil
}
