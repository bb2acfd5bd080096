package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellAtIndexing(t *testing.T) {
	b := &Board{Width: 3, Height: 2, Cells: make([]Cell, 6)}
	b.CellAt(2, 1).Content = 'X'
	assert.Equal(t, byte('X'), b.Cells[1*3+2].Content)
}
