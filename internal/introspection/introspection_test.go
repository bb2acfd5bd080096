package introspection

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacmanist/pacmanserver/internal/board"
	"github.com/pacmanist/pacmanserver/internal/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestReportRanking mirrors spec §8 scenario 4: three live sessions with
// points {40, 100, 10} produce a report with a header, "Live: 3", and
// the three entries ranked 100, 40, 10.
func TestReportRanking(t *testing.T) {
	reg := registry.New(3)
	for slot, points := range map[int]int{0: 40, 1: 100, 2: 10} {
		require.NoError(t, reg.Reserve(slot))
		b := &board.Board{Width: 5, Height: 5}
		b.Pacman.Points = points
		require.NoError(t, reg.Publish(slot, b, fmt.Sprintf("level-%d.lvl", slot)))
	}

	path := filepath.Join(t.TempDir(), "report.txt")
	r := New(reg, path, discardLogger())

	var cycles int
	r.OnReport(func() { cycles++ })

	require.NoError(t, r.Report())
	assert.Equal(t, 1, cycles)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "Live: 3")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 5) // header + live count + 3 entries

	assert.Contains(t, lines[2], "points=100")
	assert.Contains(t, lines[3], "points=40")
	assert.Contains(t, lines[4], "points=10")
}

func TestReportCapsAtFiveEntries(t *testing.T) {
	reg := registry.New(7)
	for slot := 0; slot < 7; slot++ {
		require.NoError(t, reg.Reserve(slot))
		b := &board.Board{Width: 1, Height: 1}
		b.Pacman.Points = slot
		require.NoError(t, reg.Publish(slot, b, "lvl"))
	}

	path := filepath.Join(t.TempDir(), "report.txt")
	r := New(reg, path, discardLogger())
	require.NoError(t, r.Report())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2+5, "report lists at most 5 entries even with more live sessions")
}

func TestReportOverwritesPreviousFile(t *testing.T) {
	reg := registry.New(1)
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale content that should be replaced\n"), 0644))

	r := New(reg, path, discardLogger())
	require.NoError(t, r.Report())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale content")
	assert.Contains(t, string(data), "Live: 0")
}
