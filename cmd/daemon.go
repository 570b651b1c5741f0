package cmd

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/ftahirops/queryguard/analysis"
	"github.com/ftahirops/queryguard/model"
	"github.com/ftahirops/queryguard/schedule"
)

// runDaemon starts the long-running daemon: four scheduler jobs with
// independent cadences, stopped gracefully on SIGINT/SIGTERM.
func runDaemon(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return ExitCodeError{Code: exitConfig}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.shutdown()

	collectionInterval := time.Duration(cfg.Schedule.CollectionIntervalSeconds) * time.Second
	analysisInterval := time.Duration(cfg.Schedule.AnalysisIntervalSeconds) * time.Second
	analysisWindow := analysisInterval * 12 // look back over the recent window, default 1h at the 5m cadence
	if analysisWindow < time.Hour {
		analysisWindow = time.Hour
	}

	sched := schedule.New()
	sched.AddInterval("collection", collectionInterval, collectionInterval, func(jobCtx context.Context) error {
		return a.collectJob(jobCtx)
	})
	sched.AddInterval("analysis", analysisInterval, analysisInterval, func(jobCtx context.Context) error {
		return a.analysisJob(jobCtx, analysisWindow)
	})
	sched.AddDailyAt("baseline-rebuild", cfg.Schedule.BaselineRebuildHour, 0, time.Hour, func(jobCtx context.Context) error {
		built, skipped, failed, err := rebuildBaselines(jobCtx, a, "", 7*24*time.Hour)
		if err != nil {
			return err
		}
		log.Info("baseline rebuild built=%d skipped=%d failed=%d", built, skipped, failed)

		// Retention rides the same daily slot: samples older than
		// four baseline windows can never feed another build.
		purged, err := a.stores.samples.PurgeOlderThan(jobCtx, time.Now().UTC().Add(-28*24*time.Hour))
		if err != nil {
			return err
		}
		if purged > 0 {
			log.Info("purged %d samples past retention", purged)
		}
		return nil
	})
	sched.AddDailyAt("daily-summary", cfg.Schedule.DailySummaryHour, 0, 10*time.Minute, func(jobCtx context.Context) error {
		return a.dailySummaryJob(jobCtx)
	})

	log.Info("daemon starting: collection every %s, analysis every %s, rebuild at %02d:00, summary at %02d:00",
		collectionInterval, analysisInterval, cfg.Schedule.BaselineRebuildHour, cfg.Schedule.DailySummaryHour)

	if err := sched.Run(ctx); err != nil {
		fmt.Printf("%s daemon stopped: %v\n", failStyle.Render("✗"), err)
		return ExitCodeError{Code: exitPartial}
	}
	log.Info("daemon stopped")
	return nil
}

// collectJob runs one collection cycle. Per-target failures are
// reported in the summary and never fail the job; the job errors only
// when no target succeeded at all, feeding the scheduler's
// consecutive-failure threshold.
func (a *app) collectJob(ctx context.Context) error {
	targets := a.cfg.ResolveTargets()
	if len(targets) == 0 {
		return nil
	}
	summary := a.collector.Run(ctx, targets)
	log.Info("collection done targets=%d ok=%d failed=%d",
		summary.TotalTargets, summary.SucceededTargets, summary.FailedTargets)
	if summary.SucceededTargets == 0 {
		return fmt.Errorf("all %d targets failed", summary.TotalTargets)
	}
	return nil
}

// analysisJob runs one analysis pass, routes new events through the
// alert gateway, attempts gated auto-remediation, and retains the
// hotspot ranking for the daily summary.
func (a *app) analysisJob(ctx context.Context, window time.Duration) error {
	collectTargets := a.cfg.ResolveTargets()
	targets := make([]model.Target, len(collectTargets))
	for i, ct := range collectTargets {
		targets[i] = ct.Target
	}

	summary := a.analyzer.Run(ctx, targets, window)
	log.Info("analysis done targets=%d fingerprints=%d created=%d updated=%d hotspots=%d",
		summary.TargetsAnalyzed, summary.FingerprintsSeen, summary.EventsCreated, summary.EventsUpdated, len(summary.Hotspots))

	a.hotspots.Set(summary.Hotspots)
	a.gateway.SendRegressionEvents(summary.Events)

	if a.cfg.Remediation.EnableRemediation {
		a.autoRemediate(ctx, summary.Events)
	}

	if len(summary.PerTargetFailures) == len(targets) && len(targets) > 0 {
		return fmt.Errorf("analysis failed for all %d targets", len(targets))
	}
	return nil
}

// autoRemediate attempts the highest-priority safe suggestion for
// each new event. The executor's gate sequence decides; every
// attempt, refusal included, lands in the audit log.
func (a *app) autoRemediate(ctx context.Context, events []model.RegressionEvent) {
	for _, evt := range events {
		for _, s := range a.advisor.Propose(evt) {
			if s.Safety != model.SafetySafe {
				continue
			}
			result := a.executor.ExecuteAsync(ctx, evt.Target, evt.FingerprintID, s, "queryguard-auto", a.cfg.Remediation.DryRun)
			if result.RefusalCode != "" {
				log.Info("remediation refused fingerprint=%s type=%s code=%s", evt.FingerprintID, s.Type, result.RefusalCode)
			} else if result.Err != nil {
				log.Error("remediation failed fingerprint=%s type=%s: %v", evt.FingerprintID, s.Type, result.Err)
			} else {
				log.Info("remediation applied fingerprint=%s type=%s rows=%d", evt.FingerprintID, s.Type, result.RowsAffected)
			}
			break // one attempt per event; the rest stay advisory
		}
	}
}

// dailySummaryJob assembles and fans out the daily summary.
func (a *app) dailySummaryJob(ctx context.Context) error {
	summary, err := analysis.BuildDailySummary(ctx, a.stores.events, a.stores.audits, a.hotspots.Get(5), time.Now().UTC())
	if err != nil {
		return err
	}
	a.gateway.SendDailySummary(summary)
	log.Info("daily summary sent new=%d ack=%d resolved=%d", summary.NewCount, summary.AcknowledgedCount, summary.ResolvedCount)
	return nil
}
