package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/gauge/internal/config"
	"github.com/dyluth/gauge/internal/devstore"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/spf13/cobra"
)

var (
	devProject string
	devImage   string
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run a local store for development",
	Long: `Run a throwaway Redis container that stands in for the shared store.

The project id comes from --project, or from GAUGE_PROJECT_ID / .env /
gauge.yml when the flag is omitted.`,
}

var devUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the local store",
	Long: `Start a local store container for the project.

The container publishes Redis on the first free port from 6379 and is
labelled so 'gauge dev down' can find it again.

Examples:
  gauge dev up --project plant-a
  gauge dev up --image redis:7.2-alpine`,
	Args: cobra.NoArgs,
	RunE: runDevUp,
}

var devDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the local store",
	Long: `Stop and remove the project's local store container.

All data in it is lost. The command does not prompt for confirmation.`,
	Args: cobra.NoArgs,
	RunE: runDevDown,
}

var devStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local store",
	Args:  cobra.NoArgs,
	RunE:  runDevStatus,
}

func init() {
	devCmd.PersistentFlags().StringVarP(&devProject, "project", "p", "", "Project id (default from configuration)")
	devUpCmd.Flags().StringVar(&devImage, "image", devstore.DefaultImage, "Store image")
	devCmd.AddCommand(devUpCmd, devDownCmd, devStatusCmd)
	rootCmd.AddCommand(devCmd)
}

// devTarget returns the project id dev commands act on.
func devTarget() (string, error) {
	project := devProject
	if project == "" {
		cfg, err := config.Read(sources())
		if err != nil {
			return "", err
		}
		project = cfg.Store.ProjectID
	}
	if project == "" {
		return "", notify.Error(
			"project id required",
			"Dev stores are named after the project they serve.",
			[]string{
				"Pass it explicitly:\n     gauge dev up --project plant-a",
				fmt.Sprintf("Set %s in the environment or .env", config.EnvProjectID),
			},
		)
	}
	if err := config.ValidateProject(project); err != nil {
		return "", notify.Error("invalid project id", err.Error(), []string{"Use lowercase letters, digits and hyphens"})
	}
	return project, nil
}

func runDevUp(cmd *cobra.Command, args []string) error {
	project, err := devTarget()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cli, err := devstore.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	notify.Step("Starting store for project '%s'...\n", project)
	inst, err := devstore.NewManager(cli, devImage).Up(ctx, project)
	if errors.Is(err, devstore.ErrAlreadyRunning) {
		return notify.Error(
			"dev store already exists",
			fmt.Sprintf("Project '%s' already has a local store.", project),
			[]string{
				"Show it:\n     gauge dev status",
				"Recreate it:\n     gauge dev down && gauge dev up",
			},
		)
	}
	if err != nil {
		return err
	}

	notify.Success("Started %s on port %d\n\n", inst.Name, inst.Port)
	notify.Info("Point gauge at it:\n")
	notify.Info("  export %s=%s\n", config.EnvProjectID, project)
	notify.Info("  export %s=%s\n", config.EnvDatabaseURL, inst.URL)
	return nil
}

func runDevDown(cmd *cobra.Command, args []string) error {
	project, err := devTarget()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cli, err := devstore.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	removed, err := devstore.NewManager(cli, "").Down(ctx, project)
	if errors.Is(err, devstore.ErrNotFound) {
		return notify.Error(
			"no dev store found",
			fmt.Sprintf("Project '%s' has no local store.", project),
			[]string{"Start one first:\n     gauge dev up"},
		)
	}
	for _, name := range removed {
		notify.Step("Removed %s\n", name)
	}
	if err != nil {
		return err
	}
	notify.Success("Dev store for '%s' removed\n", project)
	return nil
}

func runDevStatus(cmd *cobra.Command, args []string) error {
	project, err := devTarget()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cli, err := devstore.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	inst, err := devstore.NewManager(cli, "").Find(ctx, project)
	if errors.Is(err, devstore.ErrNotFound) {
		notify.Warning("Project '%s' has no local store\n", project)
		return nil
	}
	if err != nil {
		return err
	}

	notify.Info("%s  %s  %s  run %s\n", inst.Name, inst.Status, inst.URL, inst.RunID)
	return nil
}
