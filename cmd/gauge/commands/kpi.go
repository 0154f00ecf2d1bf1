package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/gauge/internal/format"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/dyluth/gauge/internal/resolver"
	"github.com/spf13/cobra"
)

var (
	kpiOutputFormat string

	kpiName   string
	kpiValue  float64
	kpiTarget float64
	kpiUnit   string
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "List and edit KPI cards",
	Long: `List and edit the project's KPI cards.

Every write goes through the shared store and shows up on all screens.
IDs can be shortened to any unique prefix of at least 6 characters.

Examples:
  # Show all KPIs
  gauge kpi list

  # Add a KPI
  gauge kpi add --name "Raw Mill Feed" --value 210 --target 220 --unit t/h

  # Update the current value
  gauge kpi set 01HZX4 --value 215

  # Remove a KPI
  gauge kpi rm 01HZX4`,
}

var kpiListCmd = &cobra.Command{
	Use:   "list",
	Short: "List KPIs sorted by name",
	Args:  cobra.NoArgs,
	RunE:  runKPIList,
}

var kpiAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a KPI",
	Args:  cobra.NoArgs,
	RunE:  runKPIAdd,
}

var kpiSetCmd = &cobra.Command{
	Use:   "set ID",
	Short: "Change fields of a KPI",
	Args:  cobra.ExactArgs(1),
	RunE:  runKPISet,
}

var kpiRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove a KPI",
	Args:  cobra.ExactArgs(1),
	RunE:  runKPIRm,
}

func init() {
	kpiListCmd.Flags().StringVarP(&kpiOutputFormat, "output", "o", "default", "Output format: default or jsonl")

	for _, c := range []*cobra.Command{kpiAddCmd, kpiSetCmd} {
		c.Flags().StringVar(&kpiName, "name", "", "Display name")
		c.Flags().Float64Var(&kpiValue, "value", 0, "Current value")
		c.Flags().Float64Var(&kpiTarget, "target", 0, "Target value")
		c.Flags().StringVar(&kpiUnit, "unit", "", "Unit label, e.g. t/h")
	}

	kpiCmd.AddCommand(kpiListCmd, kpiAddCmd, kpiSetCmd, kpiRmCmd)
	rootCmd.AddCommand(kpiCmd)
}

// applyKPIFlags sets the fields whose flags were given.
func applyKPIFlags(cmd *cobra.Command, k kpi.KPI) kpi.KPI {
	flags := cmd.Flags()
	if flags.Changed("name") {
		k.Name = kpiName
	}
	if flags.Changed("value") {
		k.Value = kpiValue
	}
	if flags.Changed("target") {
		k.Target = kpiTarget
	}
	if flags.Changed("unit") {
		k.Unit = kpiUnit
	}
	return k
}

// kpiFunc does a command's work. The returned report, if any, prints the
// outcome and only runs once every queued write was accepted.
type kpiFunc func(ctx context.Context, kpis *replica.Collection[kpi.KPI], project string) (report func(), err error)

// withKPIs runs fn against a live KPI replica, then drains its writes.
// One-shot commands wait for the store to confirm each write so failures
// can be reported before exiting.
func withKPIs(cmd *cobra.Command, fn kpiFunc) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	alerts := &collector{}
	kpis := newKPIs(client, replicaOptions(cfg, replica.Confirmed, alerts))
	onChange, populated := whenChanged(func(v replica.View[kpi.KPI]) bool { return len(v.Items) > 0 })
	kpis.OnChange(onChange)

	g, ctx := startGroup(cmd.Context(), kpis)
	if err := waitReady(ctx, kpis); err != nil {
		g.stop()
		return err
	}

	view, err := kpis.View(ctx)
	if err == nil && view.Err == nil && len(view.Items) == 0 {
		// an empty project is seeded on first sight
		await(ctx, populated, cfg.Sync.ConnectTimeout)
		view, err = kpis.View(ctx)
	}
	if err == nil && view.Err != nil {
		g.stop()
		return offlineError(kpi.Path, view.Err)
	}
	var report func()
	if err == nil {
		report, err = fn(ctx, kpis, cfg.Store.ProjectID)
	}
	return finishWrites(g, alerts, err, report)
}

// finishWrites stops g, which drains queued writes, and runs report only
// when nothing failed.
func finishWrites(g *group, alerts *collector, err error, report func()) error {
	if stopErr := g.stop(); err == nil {
		err = stopErr
	}
	if err != nil {
		return err
	}
	if err := alerts.Err(); err != nil {
		return notify.Error("write rejected by the store", err.Error(), []string{"Check the store is reachable and accepts writes, then retry"})
	}
	if report != nil {
		report()
	}
	return nil
}

func runKPIList(cmd *cobra.Command, args []string) error {
	if kpiOutputFormat != "default" && kpiOutputFormat != "jsonl" {
		return notify.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", kpiOutputFormat),
			[]string{"Use --output default or --output jsonl"},
		)
	}

	return withKPIs(cmd, func(ctx context.Context, kpis *replica.Collection[kpi.KPI], project string) (func(), error) {
		items, err := kpis.Items(ctx)
		if err != nil {
			return nil, err
		}
		if kpiOutputFormat == "jsonl" {
			return nil, format.KPIJSONL(os.Stdout, items)
		}
		if format.KPITable(os.Stdout, items, project) == 0 {
			notify.Info("No KPIs in project '%s'.\n", project)
		}
		return nil, nil
	})
}

func runKPIAdd(cmd *cobra.Command, args []string) error {
	return withKPIs(cmd, func(ctx context.Context, kpis *replica.Collection[kpi.KPI], project string) (func(), error) {
		draft := applyKPIFlags(cmd, kpi.NewDraft())
		id, err := kpis.Create(ctx, draft)
		if err != nil {
			return nil, err
		}
		return func() { notify.Success("Added KPI %s (%s)\n", draft.Name, id) }, nil
	})
}

func runKPISet(cmd *cobra.Command, args []string) error {
	return withKPIs(cmd, func(ctx context.Context, kpis *replica.Collection[kpi.KPI], project string) (func(), error) {
		id, err := resolveKPI(ctx, kpis, args[0])
		if err != nil {
			return nil, err
		}
		current, err := kpis.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		updated := applyKPIFlags(cmd, current)
		if updated == current {
			notify.Warning("Nothing to change for %s\n", id)
			return nil, nil
		}
		if err := kpis.Save(ctx, updated); err != nil {
			return nil, err
		}
		return func() {
			notify.Success("Updated %s: %s\n", updated.Name, format.ProgressBar(updated.Progress()))
		}, nil
	})
}

func runKPIRm(cmd *cobra.Command, args []string) error {
	return withKPIs(cmd, func(ctx context.Context, kpis *replica.Collection[kpi.KPI], project string) (func(), error) {
		id, err := resolveKPI(ctx, kpis, args[0])
		if err != nil {
			return nil, err
		}
		if err := kpis.Remove(ctx, id); err != nil {
			return nil, err
		}
		return func() { notify.Success("Removed KPI %s\n", id) }, nil
	})
}

// resolveKPI expands a short id against the live KPI ids.
func resolveKPI(ctx context.Context, kpis *replica.Collection[kpi.KPI], input string) (string, error) {
	items, err := kpis.Items(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(items))
	for i, k := range items {
		ids[i] = k.ID
	}

	id, err := resolver.ResolveID(ids, input)
	switch {
	case err == nil:
		return id, nil
	case resolver.IsAmbiguousError(err):
		amb := err.(*resolver.AmbiguousError)
		return "", notify.Error("ambiguous KPI id", resolver.FormatAmbiguousError(amb), []string{"Use more characters of the id"})
	case resolver.IsNotFoundError(err):
		return "", notify.Error("KPI not found", err.Error(), []string{"List KPIs with:\n  gauge kpi list"})
	default:
		return "", err
	}
}
