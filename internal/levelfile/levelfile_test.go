package levelfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacmanist/pacmanserver/internal/board"
)

func writeLevel(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadLevelParsesGridAndActors(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "a.lvl", "3 3 50\n###\n#P@\n###\n")

	var b board.Board
	require.NoError(t, Loader{}.LoadLevel(&b, "a.lvl", dir, 12))

	assert.Equal(t, 3, b.Width)
	assert.Equal(t, 3, b.Height)
	assert.Equal(t, 50, b.Tempo)
	assert.Equal(t, 1, b.Pacman.X)
	assert.Equal(t, 1, b.Pacman.Y)
	assert.Equal(t, 12, b.Pacman.Points, "starting points carry across levels")
	assert.True(t, b.CellAt(2, 1).HasPortal)
}

func TestLoadLevelRejectsMissingPacman(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "b.lvl", "2 1 50\n##\n")

	var b board.Board
	err := Loader{}.LoadLevel(&b, "b.lvl", dir, 0)
	assert.Error(t, err)
}

func TestMovePacmanCollectsDotAndReachesPortal(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "c.lvl", "3 1 50\nP.@\n")

	var b board.Board
	require.NoError(t, Loader{}.LoadLevel(&b, "c.lvl", dir, 0))

	rules := Rules{}
	result := rules.MovePacman(&b, 0, board.Move{Command: 'd'})
	assert.Equal(t, board.OK, result)
	assert.Equal(t, 1, b.Pacman.Points, "walking onto a dot scores a point")

	result = rules.MovePacman(&b, 0, board.Move{Command: 'd'})
	assert.Equal(t, board.ReachedPortal, result)
}

func TestMovePacmanBlockedByWall(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "d.lvl", "2 1 50\nP#\n")

	var b board.Board
	require.NoError(t, Loader{}.LoadLevel(&b, "d.lvl", dir, 0))

	result := Rules{}.MovePacman(&b, 0, board.Move{Command: 'd'})
	assert.Equal(t, board.OK, result)
	assert.Equal(t, 0, b.Pacman.X, "a wall blocks movement, pacman stays put")
}

func TestMoveGhostIntoPacmanKillsIt(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "e.lvl", "2 1 50\nPG\n")

	var b board.Board
	require.NoError(t, Loader{}.LoadLevel(&b, "e.lvl", dir, 0))
	require.Len(t, b.Ghosts, 1)

	require.NoError(t, Rules{}.MoveGhost(&b, 0, board.Move{Command: 'a'}))
	assert.False(t, b.Pacman.Alive)
}

func TestUnloadLevelClearsState(t *testing.T) {
	var b board.Board
	b.Cells = []board.Cell{{}}
	b.Ghosts = []board.Ghost{{}}
	Loader{}.UnloadLevel(&b)
	assert.Nil(t, b.Cells)
	assert.Nil(t, b.Ghosts)
}
