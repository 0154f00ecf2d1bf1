package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/config"
	"github.com/dyluth/gauge/internal/kpi"
	"github.com/dyluth/gauge/internal/notify"
	"github.com/dyluth/gauge/internal/replica"
	"github.com/dyluth/gauge/pkg/store"
	log "github.com/sirupsen/logrus"
)

// openStore connects to the configured store.
func openStore(cfg *config.GaugeConfig) (*store.Client, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	client, err := store.NewClient(opts, cfg.Store.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}
	return client, nil
}

func replicaOptions(cfg *config.GaugeConfig, mode replica.WriteMode, alerter replica.Alerter) replica.Options {
	return replica.Options{
		ConnectTimeout: cfg.Sync.ConnectTimeout,
		DrainTimeout:   cfg.Sync.DrainTimeout,
		Mode:           mode,
		Alerter:        alerter,
		Logger:         log.WithField("project", cfg.Store.ProjectID),
	}
}

// configuredMode is the write mode long-running commands use.
func configuredMode(cfg *config.GaugeConfig) replica.WriteMode {
	if cfg.Confirmed() {
		return replica.Confirmed
	}
	return replica.Optimistic
}

func newKPIs(client *store.Client, opts replica.Options) *replica.Collection[kpi.KPI] {
	return replica.NewCollection[kpi.KPI](client, kpi.Path, kpi.Shape{}, kpi.Seed(), opts)
}

func newBoard(client *store.Client, opts replica.Options) *replica.Document[board.Board] {
	defaults := board.Defaults()
	return replica.NewDocument[board.Board](client, board.Path, &defaults, opts)
}

type runner interface {
	Run(ctx context.Context) error
	Ready() <-chan struct{}
}

// group runs replicas in the background until stopped.
type group struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

func startGroup(ctx context.Context, runners ...runner) (*group, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g := &group{cancel: cancel}
	for _, r := range runners {
		g.wg.Add(1)
		go func(r runner) {
			defer g.wg.Done()
			if err := r.Run(ctx); err != nil {
				g.mu.Lock()
				g.errs = append(g.errs, err)
				g.mu.Unlock()
				cancel()
			}
		}(r)
	}
	return g, ctx
}

// stop cancels every replica and waits for queued writes to drain.
func (g *group) stop() error {
	g.cancel()
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}

// waitReady blocks until every runner has had its first delivery, error or
// connect timeout.
func waitReady(ctx context.Context, runners ...runner) error {
	for _, r := range runners {
		select {
		case <-r.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// whenChanged returns a channel that receives once per OnChange call while
// cond holds. Commands use it to wait for a freshly written seed to come
// back from the store.
func whenChanged[V any](cond func(V) bool) (func(V), <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return func(v V) {
		if cond(v) {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}, ch
}

// await waits for ch, giving up after d.
func await(ctx context.Context, ch <-chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// collector gathers write failures for one-shot commands.
type collector struct {
	mu   sync.Mutex
	errs []error
}

func (c *collector) Alert(action string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, fmt.Errorf("could not %s: %w", action, err))
}

func (c *collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.errs...)
}

// fanout forwards alerts to several alerters.
type fanout []replica.Alerter

func (f fanout) Alert(action string, err error) {
	for _, a := range f {
		a.Alert(action, err)
	}
}

// offlineError reports a replica that never got live data.
func offlineError(path string, err error) error {
	return notify.ErrorWithContext(
		"store unavailable",
		notify.BannerText(err),
		map[string]string{"path": path},
		[]string{
			"Check GAUGE_DATABASE_URL points at a running store",
			"Raise sync.connect_timeout / GAUGE_CONNECT_TIMEOUT on slow links",
		},
	)
}
