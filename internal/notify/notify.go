// Package notify prints user-facing messages: command results, one-shot
// write failure alerts and the connectivity banner.
package notify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	banner = color.New(color.FgWhite, color.BgRed, color.Bold)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Printf("✓ %s", msg)
	} else {
		green.Print(msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Printf("⚠️  %s", msg)
	} else {
		yellow.Print(msg)
	}
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// ReportedError is returned by Error once the details are on stderr, so
// main only sets the exit code.
type ReportedError struct {
	Title string
}

func (e *ReportedError) Error() string {
	return e.Title
}

// IsReported reports whether err has already been shown to the user.
func IsReported(err error) bool {
	var r *ReportedError
	return errors.As(err, &r)
}

// Error prints a titled error with explanation and suggestions to stderr and
// returns an error carrying only the title, for Cobra.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details printed between the
// explanation and the suggestions.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	writeError(os.Stderr, title, explanation, context, suggestions)

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return &ReportedError{Title: title}
}

func writeError(w io.Writer, title, explanation string, context map[string]string, suggestions []string) {
	red.Fprintf(w, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}

	if len(context) > 0 {
		fmt.Fprintf(w, "\n")
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "  %s: %s\n", key, context[key])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(w, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(w, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(w, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
			}
		}
	}
}

// Terminal shows alerts and the connectivity banner on a writer. It
// implements replica.Alerter and is safe for concurrent use.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	offline map[string]string // path -> banner text currently shown
}

// NewTerminal returns a Terminal writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, offline: make(map[string]string)}
}

// Alert prints a one-shot write failure.
func (t *Terminal) Alert(action string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	red.Fprintf(t.w, "✗ Could not %s: %v\n", action, err)
}

// Status shows the banner for path when err is set and announces recovery
// when it clears. Repeated identical states print nothing.
func (t *Terminal) Status(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	shown, isOffline := t.offline[path]
	if err == nil {
		if isOffline {
			delete(t.offline, path)
			green.Fprintf(t.w, "✓ %s is live again\n", path)
		}
		return
	}

	text := BannerText(err)
	if isOffline && shown == text {
		return
	}
	t.offline[path] = text
	banner.Fprintf(t.w, " %s ", text)
	fmt.Fprintln(t.w)
}

// BannerText is the one-line connectivity message for err.
func BannerText(err error) string {
	return "OFFLINE: " + err.Error()
}
