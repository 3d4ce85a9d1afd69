package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/weathermon/weathermon/internal/aggregate"
	"github.com/weathermon/weathermon/internal/alerts"
	"github.com/weathermon/weathermon/internal/config"
	"github.com/weathermon/weathermon/internal/ingest"
	"github.com/weathermon/weathermon/internal/retention"
	"github.com/weathermon/weathermon/internal/scheduler"
	"github.com/weathermon/weathermon/internal/service"
	"github.com/weathermon/weathermon/internal/store"
)

type cli struct {
	DB     string        `name:"db" env:"WEATHERMON_DB" default:"data/weathermon.db" help:"Path to the sqlite database."`
	Config config.Config `embed:""`

	Serve     serveCmd     `cmd:"" default:"1" help:"Run the scheduled pipeline and ops endpoints."`
	Ingest    ingestCmd    `cmd:"" help:"Fetch and store one observation, then exit."`
	Aggregate aggregateCmd `cmd:"" help:"Build and save one dashboard summary, then exit."`
	Alerts    alertsCmd    `cmd:"" help:"Evaluate alert rules once, then exit."`
	Sweep     sweepCmd     `cmd:"" help:"Run the retention sweep once, then exit."`
	Digest    digestCmd    `cmd:"" help:"Print an alert digest for the configured city."`
}

// app carries the wired components into the kong command Run methods.
type app struct {
	cfg     *config.Config
	svc     *service.Service
	sched   *scheduler.Scheduler
	sweeper *retention.Sweeper
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("weathermon"),
		kong.Description("City weather monitoring: scheduled ingestion, aggregation, alerting and retention."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	cfg := &flags.Config
	client := ingest.NewClient(cfg.Provider)
	ingestor := ingest.NewIngestor(st, client)
	builder := aggregate.NewBuilder(st)
	evaluator := alerts.NewEvaluator(st, cfg.Alerts, alerts.LogNotifier{})
	sweeper := retention.NewSweeper(st, cfg.Retention)
	sched := scheduler.New(cfg.City, cfg.Schedule, ingestor, builder, evaluator, sweeper)
	svc := service.New(st, ingestor, builder, evaluator)

	err = kctx.Run(&app{cfg: cfg, svc: svc, sched: sched, sweeper: sweeper})
	kctx.FatalIfErrorf(err)
}

type serveCmd struct {
	OpsAddr string `env:"OPS_ADDR" default:":9090" help:"Listen address for /metrics and /health."`
}

func (c *serveCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go a.sched.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: c.OpsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("serving ops endpoints on %s, monitoring %s", c.OpsAddr, a.cfg.City)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type ingestCmd struct{}

func (c *ingestCmd) Run(a *app) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.svc.Ingest(ctx, a.cfg.City); err != nil {
		return err
	}
	log.Printf("ingested one observation for %s", a.cfg.City)
	return nil
}

type aggregateCmd struct{}

func (c *aggregateCmd) Run(a *app) error {
	summary, err := a.svc.BuildAndSaveSummary(a.cfg.City)
	if err != nil {
		return err
	}
	if summary == nil {
		log.Printf("no observations for %s yet, nothing to aggregate", a.cfg.City)
		return nil
	}
	log.Printf("saved summary for %s generated at %s", summary.City, summary.GeneratedAt.Format(time.RFC3339))
	return nil
}

type alertsCmd struct{}

func (c *alertsCmd) Run(a *app) error {
	ids, err := a.svc.CheckAlerts(a.cfg.City)
	if err != nil {
		return err
	}
	log.Printf("alert evaluation for %s created %d alerts", a.cfg.City, len(ids))
	return nil
}

type sweepCmd struct{}

func (c *sweepCmd) Run(a *app) error {
	return a.sweeper.Sweep(a.cfg.City)
}

type digestCmd struct {
	Hours int `default:"24" help:"Lookback window in hours."`
}

func (c *digestCmd) Run(a *app) error {
	digest, err := a.svc.AlertDigest(a.cfg.City, c.Hours)
	if err != nil {
		return err
	}
	fmt.Printf("Alert digest for %s (last %dh): %d alerts\n", digest.City, digest.PeriodHours, digest.Total)
	for severity, n := range digest.BySeverity {
		fmt.Printf("  %s: %d\n", severity, n)
	}
	for _, alert := range digest.Alerts {
		fmt.Printf("  [%s] %s %s - %s\n", alert.TriggeredAt.Format(time.RFC3339), alert.Severity, alert.Type, alert.Message)
	}
	return nil
}
