package commands

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/dyluth/gauge/internal/web"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live dashboard API",
	Long: `Serve the dashboard API for shared screens.

Keeps live replicas of the KPIs and the priorities board and exposes:
  GET  /healthz      store and replica health
  *    /api/kpis     list, add, change and remove KPIs
  *    /api/edit     per-screen edit session (X-Gauge-Viewer header)
  *    /api/board    board title, date, sections and items
  GET  /api/stream   server-sent events with every change and alert

Write failures and connectivity problems are also printed on the terminal.

Examples:
  gauge serve
  gauge serve --listen :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	client, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	term := notify.NewTerminal(os.Stderr)
	var srv *web.Server
	alerts := fanout{term, replica.AlerterFunc(func(action string, err error) {
		if srv != nil {
			srv.Alert(action, err)
		}
	})}

	opts := replicaOptions(cfg, configuredMode(cfg), alerts)
	kpis := newKPIs(client, opts)
	doc := newBoard(client, opts)
	kpis.OnChange(func(v replica.View[kpi.KPI]) { term.Status(kpi.Path, v.Err) })
	doc.OnChange(func(v replica.DocumentView[board.Board]) { term.Status(board.Path, v.Err) })

	srv = web.New(kpis, doc, client, log.WithField("project", cfg.Store.ProjectID))

	g, ctx := startGroup(cmd.Context(), kpis, doc)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(cfg.Server.Listen) }()
	notify.Success("Serving project '%s' on %s\n", cfg.Store.ProjectID, cfg.Server.Listen)

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	if stopErr := g.stop(); err == nil {
		err = stopErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	notify.Info("Stopped.\n")
	return nil
}
