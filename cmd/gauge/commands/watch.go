package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/format"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/spf13/cobra"
)

var watchBoard bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow KPI changes live",
	Long: `Follow the project's KPIs live in the terminal.

The table is reprinted on every change from any client. An OFFLINE banner
is shown while the store cannot be reached and cleared when it comes back.
Press Ctrl-C to stop.

Examples:
  gauge watch
  gauge watch --board`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchBoard, "board", false, "Also follow the priorities board")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	term := notify.NewTerminal(os.Stderr)
	opts := replicaOptions(cfg, configuredMode(cfg), term)
	project := cfg.Store.ProjectID

	kpis := newKPIs(client, opts)
	kpis.OnChange(func(v replica.View[kpi.KPI]) {
		term.Status(kpi.Path, v.Err)
		if v.Loading {
			return
		}
		fmt.Println()
		if format.KPITable(os.Stdout, v.Items, project) == 0 {
			notify.Info("No KPIs in project '%s'.\n", project)
		}
	})

	runners := []runner{kpis}
	if watchBoard {
		doc := newBoard(client, opts)
		doc.OnChange(func(v replica.DocumentView[board.Board]) {
			term.Status(board.Path, v.Err)
			if v.Exists {
				fmt.Println()
				format.BoardText(os.Stdout, v.Value)
			}
		})
		runners = append(runners, doc)
	}

	notify.Step("Watching project '%s' (Ctrl-C to stop)\n", project)
	g, ctx := startGroup(cmd.Context(), runners...)
	<-ctx.Done()
	return g.stop()
}
