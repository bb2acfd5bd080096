// Package engine implements the per-session concurrent actor system
// (spec §4.6, C6): the input listener, the pacman tick, and one ticker
// per ghost, all sharing a board.Board under its reader/writer lock, plus
// the per-level loop that drives level progression.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pacmanist/pacmanserver/internal/board"
	"github.com/pacmanist/pacmanserver/internal/registry"
	"github.com/pacmanist/pacmanserver/internal/wire"
)

// outcome is the pacman actor's exit reason for one level, selecting the
// per-level loop's next action (spec §4.6 step 4/6).
type outcome int

const (
	outcomeNextLevel outcome = iota
	outcomeDead
	outcomeQuit
)

// mailbox is the single-slot, overwrite-on-write command inbox shared
// between the input listener and the pacman actor (spec GLOSSARY).
type mailbox struct {
	mu  sync.Mutex
	cmd byte
}

func (m *mailbox) set(c byte) {
	m.mu.Lock()
	m.cmd = c
	m.mu.Unlock()
}

func (m *mailbox) takeAndClear() byte {
	m.mu.Lock()
	c := m.cmd
	m.cmd = 0
	m.mu.Unlock()
	return c
}

// Session drives one client's game from admission to disconnect: the
// level-directory loop plus the per-level actor system. One Session is
// constructed per worker invocation (spec §4.5 step 4).
type Session struct {
	Slot     int
	Registry *registry.Registry
	Loader   board.LevelLoader
	Mover    board.Mover
	Logger   *slog.Logger

	// PollInterval bounds how long the input listener can remain parked
	// in a read after shutdown is requested (Design Notes §9: "either
	// approach satisfies §5 as long as the listener exits within a
	// bounded time"). Defaults to 50ms when zero.
	PollInterval time.Duration

	// Sleep substitutes for sleep_ms (spec §6); defaults to time.Sleep.
	// Exposed so tests can drive ticks without real wall-clock waits.
	Sleep func(ms int)

	// OnBoardFrame, if set, is called once per per-tick BOARD frame the
	// pacman actor writes successfully, wired to the
	// engine_board_frames_total counter. The initial, terminal and victory
	// frames do not call it.
	OnBoardFrame func()
}

func (s *Session) sleep(ms int) {
	if s.Sleep != nil {
		s.Sleep(ms)
		return
	}
	if ms <= 0 {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (s *Session) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return 50 * time.Millisecond
	}
	return s.PollInterval
}

// Run iterates levelDir's ".lvl" files in name order, skipping hidden
// entries, running one level after another until the pacman quits, dies,
// or the directory is exhausted (spec §4.6).
func (s *Session) Run(reqFD, notifFD *os.File, levelDir string) error {
	entries, err := os.ReadDir(levelDir)
	if err != nil {
		return fmt.Errorf("engine: read level dir %s: %w", levelDir, err)
	}

	accumulated := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".lvl" {
			continue
		}

		b := &board.Board{}
		if err := s.Loader.LoadLevel(b, name, levelDir, accumulated); err != nil {
			s.Logger.Warn("level load failed, skipping", "slot", s.Slot, "level", name, "err", err)
			continue
		}

		if err := s.Registry.Reserve(s.Slot); err != nil {
			s.Loader.UnloadLevel(b)
			return fmt.Errorf("engine: reserve slot %d: %w", s.Slot, err)
		}
		if err := s.Registry.Publish(s.Slot, b, name); err != nil {
			s.Loader.UnloadLevel(b)
			return fmt.Errorf("engine: publish slot %d: %w", s.Slot, err)
		}

		if err := wire.WriteBoard(notifFD, s.snapshotFrame(b)); err != nil {
			s.Logger.Debug("initial board write failed", "slot", s.Slot, "err", err)
		}

		out := s.runLevel(reqFD, notifFD, b)

		s.Registry.Retire(s.Slot)
		s.Loader.UnloadLevel(b)

		switch out {
		case outcomeNextLevel:
			accumulated = b.Pacman.Points
			continue
		default:
			// Dead or Quit: the per-level loop's single terminal-frame
			// writer below has already sent game_over=1 and the session
			// is over, regardless of how many levels remain.
			return nil
		}
	}

	// Level directory exhausted with no Dead/Quit along the way: victory.
	return wire.WriteBoard(notifFD, wire.BoardFrame{
		Width: 1, Height: 1, Victory: 1, Points: int32(accumulated), Cells: []byte{' '},
	})
}

// runLevel starts the per-session actors, waits for the pacman actor to
// exit, signals shutdown, and joins every other actor before returning.
// Terminal-frame emission for Dead/Quit is centralized here rather than
// inside the pacman actor: spec §4.6 names the responsibility in both
// the per-level loop and the pacman-actor description, and a single
// writer keeps the "at most one terminal frame" property (spec §8)
// trivially true instead of requiring the two call sites to coordinate.
func (s *Session) runLevel(reqFD, notifFD *os.File, b *board.Board) outcome {
	mb := &mailbox{}
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.inputListener(reqFD, mb, b)
	}()

	for i := range b.Ghosts {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			s.ghostActor(b, idx)
		}(i)
	}

	out := s.pacmanActor(notifFD, mb, b)

	b.Lock.Lock()
	b.Shutdown = true
	b.Lock.Unlock()

	wg.Wait()

	if out != outcomeNextLevel {
		if err := wire.WriteBoard(notifFD, s.terminalFrame(b)); err != nil {
			s.Logger.Debug("terminal board write failed", "slot", s.Slot, "err", err)
		}
	}
	return out
}

func (s *Session) pacmanActor(notifFD *os.File, mb *mailbox, b *board.Board) outcome {
	for {
		var mv board.Move
		if cmd := mb.takeAndClear(); cmd != 0 {
			mv = board.Move{Command: cmd, Turns: 1}
		} else if len(b.Pacman.Moves) > 0 {
			mv = b.Pacman.Moves[b.Pacman.Current%len(b.Pacman.Moves)]
			b.Pacman.Current++
		}

		if mv.Command == 'Q' || mv.Command == 'q' {
			return outcomeQuit
		}

		b.Lock.Lock()
		result := s.Mover.MovePacman(b, 0, mv)
		b.Lock.Unlock()

		switch result {
		case board.ReachedPortal:
			return outcomeNextLevel
		case board.DeadPacman:
			return outcomeDead
		}

		b.Lock.RLock()
		frame := s.snapshotFrame(b)
		b.Lock.RUnlock()

		if err := wire.WriteBoard(notifFD, frame); err != nil {
			return outcomeQuit
		}
		if s.OnBoardFrame != nil {
			s.OnBoardFrame()
		}

		s.sleep(b.Tempo)

		b.Lock.RLock()
		shutdown := b.Shutdown
		alive := b.Pacman.Alive
		b.Lock.RUnlock()
		if shutdown || !alive {
			return outcomeQuit
		}
	}
}

func (s *Session) ghostActor(b *board.Board, idx int) {
	for {
		passo := b.Ghosts[idx].Passo
		s.sleep(b.Tempo * (1 + passo))

		b.Lock.Lock()
		if b.Shutdown {
			b.Lock.Unlock()
			return
		}
		g := &b.Ghosts[idx]
		var mv board.Move
		if len(g.Moves) > 0 {
			mv = g.Moves[g.Current%len(g.Moves)]
			g.Current++
		}
		s.Mover.MoveGhost(b, idx, mv)
		b.Lock.Unlock()
	}
}

// inputListener reads PLAY/DISCONNECT frames from the client's request
// FIFO and posts them to the mailbox. It cannot be cancelled mid-read in
// the POSIX-thread sense the reference server uses (spec Design Notes
// §9); instead it polls a bounded read deadline and rechecks the board's
// shutdown flag between attempts, satisfying the same bound on exit
// latency without needing to close the (still-shared-across-levels) fd.
func (s *Session) inputListener(reqFD *os.File, mb *mailbox, b *board.Board) {
	shutdown := func() bool {
		b.Lock.RLock()
		defer b.Lock.RUnlock()
		return b.Shutdown
	}

	for {
		frame, err := readClientFrame(reqFD, s.pollInterval(), shutdown)
		if err != nil {
			mb.set('Q')
			return
		}
		switch frame.Op {
		case wire.OpPlay:
			mb.set(frame.Cmd)
		case wire.OpDisconnect:
			mb.set('Q')
			return
		}
	}
}

func (s *Session) snapshotFrame(b *board.Board) wire.BoardFrame {
	cells := renderCells(b)
	return wire.BoardFrame{
		Width:    int32(b.Width),
		Height:   int32(b.Height),
		Tempo:    int32(b.Tempo),
		Victory:  0,
		GameOver: 0,
		Points:   int32(b.Pacman.Points),
		Cells:    cells,
	}
}

func (s *Session) terminalFrame(b *board.Board) wire.BoardFrame {
	f := s.snapshotFrame(b)
	f.GameOver = 1
	return f
}

// renderCells applies the overlay rule (dot/portal visible only on an
// empty base glyph) and the charged-ghost override, per spec §4.1.
func renderCells(b *board.Board) []byte {
	cells := make([]byte, len(b.Cells))
	for i, c := range b.Cells {
		content := c.Content
		if content == ' ' {
			switch {
			case c.HasPortal:
				content = '@'
			case c.HasDot:
				content = '.'
			}
		}
		cells[i] = content
	}
	for _, g := range b.Ghosts {
		if !g.Charged {
			continue
		}
		idx := g.Y*b.Width + g.X
		if idx >= 0 && idx < len(cells) {
			cells[idx] = 'm'
		}
	}
	return cells
}
