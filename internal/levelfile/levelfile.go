// Package levelfile is a minimal, concrete implementation of the
// board.LevelLoader and board.Mover collaborators that spec §1 marks
// out of scope ("the level-file parser and move_pacman/move_ghost
// gameplay rules ... treated as pure functions over board state with
// documented return codes"). The wire format and movement rules below
// are not specified anywhere in the corpus; they exist only so the
// session engine has something concrete to drive in tests and in the
// shipped binary, and can be swapped for a real parser without touching
// internal/engine.
package levelfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pacmanist/pacmanserver/internal/board"
)

const (
	glyphWall   = '#'
	glyphDot    = '.'
	glyphPortal = '@'
	glyphPacman = 'P'
	glyphGhost  = 'G'
	glyphFloor  = ' '
)

// Loader implements board.LevelLoader over ".lvl" text files: a header
// line "width height tempo" followed by height rows of width glyphs.
type Loader struct{}

// LoadLevel reads dir/name and populates b. startingPoints carries
// accumulated points across levels per spec §4.6 step 1.
func (Loader) LoadLevel(b *board.Board, name, dir string, startingPoints int) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("levelfile: open %s: %w", name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return fmt.Errorf("levelfile: %s: missing header", name)
	}
	var width, height, tempo int
	if _, err := fmt.Sscanf(scanner.Text(), "%d %d %d", &width, &height, &tempo); err != nil {
		return fmt.Errorf("levelfile: %s: bad header: %w", name, err)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("levelfile: %s: non-positive dimensions", name)
	}

	cells := make([]board.Cell, width*height)
	var pacmanSet bool
	var ghosts []board.Ghost
	var pacman board.Pacman

	for y := 0; y < height; y++ {
		if !scanner.Scan() {
			return fmt.Errorf("levelfile: %s: missing row %d", name, y)
		}
		row := scanner.Text()
		if len(row) < width {
			return fmt.Errorf("levelfile: %s: row %d shorter than width", name, y)
		}
		for x := 0; x < width; x++ {
			glyph := row[x]
			idx := y*width + x
			switch glyph {
			case glyphDot:
				cells[idx] = board.Cell{Content: glyphFloor, HasDot: true}
			case glyphPortal:
				cells[idx] = board.Cell{Content: glyphFloor, HasPortal: true}
			case glyphPacman:
				cells[idx] = board.Cell{Content: glyphFloor}
				pacman = board.Pacman{X: x, Y: y, Alive: true, Points: startingPoints}
				pacmanSet = true
			case glyphGhost:
				cells[idx] = board.Cell{Content: glyphFloor}
				ghosts = append(ghosts, board.Ghost{X: x, Y: y, Passo: 0})
			default:
				cells[idx] = board.Cell{Content: glyph}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("levelfile: %s: %w", name, err)
	}
	if !pacmanSet {
		return fmt.Errorf("levelfile: %s: no pacman start position", name)
	}

	b.Width = width
	b.Height = height
	b.Tempo = tempo
	b.LevelName = name
	b.Cells = cells
	b.Pacman = pacman
	b.Ghosts = ghosts
	b.Shutdown = false
	return nil
}

// UnloadLevel releases the board's level-scoped state. The board struct
// itself is owned by the engine; there is nothing else to free in this
// pure-Go implementation (no heap buffers outside the GC's reach), but
// the call is kept to preserve the load/unload symmetry spec §3 requires.
func (Loader) UnloadLevel(b *board.Board) {
	b.Cells = nil
	b.Ghosts = nil
}

// Rules implements board.Mover with grid-walk semantics: directional
// commands move one cell if not blocked by a wall glyph, portals end the
// level, dots are collected for points, and ghosts colliding with pacman
// kill it.
type Rules struct{}

func step(x, y int, cmd byte) (int, int) {
	switch cmd {
	case 'w', 'W':
		return x, y - 1
	case 's', 'S':
		return x, y + 1
	case 'a', 'A':
		return x - 1, y
	case 'd', 'D':
		return x + 1, y
	default:
		return x, y
	}
}

func (Rules) MovePacman(b *board.Board, idx int, mv board.Move) board.MoveResult {
	p := &b.Pacman
	nx, ny := step(p.X, p.Y, mv.Command)
	if nx < 0 || ny < 0 || nx >= b.Width || ny >= b.Height {
		return board.OK
	}
	target := b.CellAt(nx, ny)
	if target.Content == glyphWall {
		return board.OK
	}

	p.X, p.Y = nx, ny
	if target.HasDot {
		target.HasDot = false
		p.Points++
	}

	for i := range b.Ghosts {
		g := &b.Ghosts[i]
		if g.X == p.X && g.Y == p.Y {
			p.Alive = false
			return board.DeadPacman
		}
	}

	if target.HasPortal {
		return board.ReachedPortal
	}
	return board.OK
}

func (Rules) MoveGhost(b *board.Board, idx int, mv board.Move) error {
	g := &b.Ghosts[idx]
	nx, ny := step(g.X, g.Y, mv.Command)
	if nx < 0 || ny < 0 || nx >= b.Width || ny >= b.Height {
		return nil
	}
	if b.CellAt(nx, ny).Content == glyphWall {
		return nil
	}
	g.X, g.Y = nx, ny
	if g.X == b.Pacman.X && g.Y == b.Pacman.Y {
		b.Pacman.Alive = false
	}
	return nil
}
