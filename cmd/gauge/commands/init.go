package commands

import (
	"fmt"

	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit   bool
	initProject string
	initURL     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write starter configuration",
	Long: `Write starter configuration into the current directory.

Creates:
  • gauge.yml - sync and server settings
  • .env      - store credentials (GAUGE_PROJECT_ID, GAUGE_DATABASE_URL, GAUGE_API_KEY)

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing gauge.yml and .env")
	initCmd.Flags().StringVarP(&initProject, "project", "p", "", "Project id (required)")
	initCmd.Flags().StringVar(&initURL, "database-url", scaffold.DefaultDatabaseURL, "Store URL")
	_ = initCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	written, err := scaffold.Initialize(".", scaffold.Params{Project: initProject, DatabaseURL: initURL}, forceInit)
	if err != nil {
		return notify.Error("initialization failed", err.Error(), nil)
	}

	notify.Success("Initialized gauge project '%s'\n\nCreated:\n", initProject)
	for _, path := range written {
		fmt.Printf("  ✓ %s\n", path)
	}
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add .env to your .gitignore")
	fmt.Println("  2. Start a local store:  gauge dev up")
	fmt.Println("  3. Open the dashboard:   gauge serve")
	return nil
}
