package notify

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		require.True(t, IsReported(fmt.Errorf("wrapped: %w", err)))
		require.False(t, IsReported(errors.New("Test Error")))
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestWriteError(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	writeError(&buf, "Configuration missing", "Set the store credentials.",
		map[string]string{"Missing": "GAUGE_PROJECT_ID"},
		[]string{"Export GAUGE_PROJECT_ID", "Add it to .env"})

	out := buf.String()
	assert.Contains(t, out, "Configuration missing\n\n")
	assert.Contains(t, out, "  Missing: GAUGE_PROJECT_ID\n")
	assert.Contains(t, out, "Either:\n  1. Export GAUGE_PROJECT_ID\n  2. Add it to .env\n")
}

func TestTerminal(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	term := NewTerminal(&buf)

	t.Run("alerts every failure", func(t *testing.T) {
		term.Alert("save", errors.New("permission denied"))
		term.Alert("save", errors.New("permission denied"))
		assert.Equal(t, 2, strings.Count(buf.String(), "✗ Could not save: permission denied"))
		buf.Reset()
	})

	t.Run("banner shows once per state", func(t *testing.T) {
		offline := errors.New("no response from store")
		term.Status("kpis", nil)
		assert.Empty(t, buf.String(), "live from the start prints nothing")

		term.Status("kpis", offline)
		term.Status("kpis", offline)
		assert.Equal(t, 1, strings.Count(buf.String(), "OFFLINE: no response from store"))

		term.Status("kpis", nil)
		term.Status("kpis", nil)
		assert.Equal(t, 1, strings.Count(buf.String(), "✓ kpis is live again"))
	})
}
