package main

import (
	"fmt"
	"os"

	"github.com/dyluth/gauge/cmd/gauge/commands"
	"github.com/dyluth/gauge/internal/notify"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		if !notify.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
