package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		pct      float64
		expected string
	}{
		{0, "[----------]   0%"},
		{50, "[#####-----]  50%"},
		{95, "[#########-]  95%"},
		{100, "[##########] 100%"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ProgressBar(tt.pct))
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "380", formatNumber(380))
	assert.Equal(t, "1.5", formatNumber(1.5))
	assert.Equal(t, "-2", formatNumber(-2))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate(strings.Repeat("abcdefghij", 2), 10))
	assert.Equal(t, "01HZXK3N8Q", formatID("01HZXK3N8QJ5Y2T7V9W0X1Y2Z3"))
	assert.Equal(t, "1", formatID("1"))
}

func TestKPITable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		n := KPITable(&buf, nil, "plant")
		assert.Equal(t, 0, n)
		assert.Equal(t, "No KPIs found for project 'plant'\n", buf.String())
	})

	t.Run("rows with progress", func(t *testing.T) {
		var buf bytes.Buffer
		n := KPITable(&buf, kpi.Defaults()[:2], "plant")
		assert.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "KPIs for project 'plant'")
		assert.Contains(t, out, "Kiln Feed")
		assert.Contains(t, out, "[#########-]  95%")
		assert.Contains(t, out, "[#########-]  97%")
		assert.True(t, strings.HasSuffix(out, "2 KPIs found\n"))
	})

	t.Run("zero target", func(t *testing.T) {
		var buf bytes.Buffer
		KPITable(&buf, []kpi.KPI{{ID: "z", Name: "Idle", Value: 5}}, "plant")
		assert.Contains(t, buf.String(), "[----------]   0%")
		assert.Contains(t, buf.String(), "1 KPI found")
	})
}

func TestKPIJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, KPIJSONL(&buf, kpi.Defaults()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "1", first["id"])
	assert.Equal(t, "Kiln Feed", first["name"])
	assert.Equal(t, 95.0, first["progress"])
}

func TestBoardText(t *testing.T) {
	var buf bytes.Buffer
	BoardText(&buf, board.Defaults().SetDate("Week 12"))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Plant Priorities\nWeek 12\n"))
	assert.Less(t, strings.Index(out, "== Column 1 =="), strings.Index(out, "== Column 2 =="))
	assert.Less(t, strings.Index(out, "[shield] Safety"), strings.Index(out, "[factory] Production"))
	assert.Contains(t, out, "• Kiln feed rate  380/400 t/h [#########-]  95%")
	assert.Contains(t, out, "• Replace raw mill separator bearings\n")

	buf.Reset()
	BoardText(&buf, board.Board{})
	assert.Equal(t, "(untitled board)\n\nNo sections\n", buf.String())
}

func TestBoardJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BoardJSON(&buf, board.Defaults()))

	var decoded board.Board
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, board.Defaults(), decoded)
}
