package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/format"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/spf13/cobra"
)

var boardOutputFormat string

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Inspect the priorities board",
}

var boardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the priorities board",
	Long: `Print the priorities board grouped into columns.

Output Formats:
  default - Sections and items with progress bars
  json    - The board document as stored

Examples:
  gauge board show
  gauge board show --output=json | jq '.sections[].title'`,
	Args: cobra.NoArgs,
	RunE: runBoardShow,
}

func init() {
	boardShowCmd.Flags().StringVarP(&boardOutputFormat, "output", "o", "default", "Output format: default or json")
	boardCmd.AddCommand(boardShowCmd)
	rootCmd.AddCommand(boardCmd)
}

func runBoardShow(cmd *cobra.Command, args []string) error {
	if boardOutputFormat != "default" && boardOutputFormat != "json" {
		return notify.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", boardOutputFormat),
			[]string{"Use --output default or --output json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	doc := newBoard(client, replicaOptions(cfg, replica.Confirmed, &collector{}))
	onChange, exists := whenChanged(func(v replica.DocumentView[board.Board]) bool { return v.Exists })
	doc.OnChange(onChange)
	g, ctx := startGroup(cmd.Context(), doc)
	defer g.stop()

	if err := waitReady(ctx, doc); err != nil {
		return err
	}
	view, err := doc.View(ctx)
	if err == nil && view.Err == nil && !view.Exists {
		await(ctx, exists, cfg.Sync.ConnectTimeout)
		view, err = doc.View(ctx)
	}
	if err != nil {
		return err
	}
	if view.Err != nil {
		return offlineError(board.Path, view.Err)
	}

	if boardOutputFormat == "json" {
		return format.BoardJSON(os.Stdout, view.Value)
	}
	format.BoardText(os.Stdout, view.Value)
	return nil
}
