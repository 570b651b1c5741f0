package cmd

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ftahirops/queryguard/model"
)

// runAnalyzeOnce performs a single analysis pass over the selected
// targets and prints detected regressions and hotspots without
// routing alerts.
func runAnalyzeOnce(args []string) error {
	fs := flag.NewFlagSet("analyze-once", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	selector := fs.String("target", "", "instance or instance/database selector")
	window := fs.Duration("window", time.Hour, "recent window to analyze")
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

	collectTargets := filterTargets(cfg.ResolveTargets(), *selector)
	if len(collectTargets) == 0 {
		fmt.Fprintf(os.Stderr, "queryguard: no enabled targets match %s\n", selectorLabel(*selector))
		return ExitCodeError{Code: exitConfig}
	}
	targets := make([]model.Target, len(collectTargets))
	for i, ct := range collectTargets {
		targets[i] = ct.Target
	}

	log.Info("analyzing %s over %s", selectorLabel(*selector), *window)
	summary := a.analyzer.Run(ctx, targets, *window)

	fmt.Println(titleStyle.Render("Analysis summary"))
	fmt.Printf("  targets=%d fingerprints=%d events created=%d updated=%d\n",
		summary.TargetsAnalyzed, summary.FingerprintsSeen, summary.EventsCreated, summary.EventsUpdated)

	for _, evt := range summary.Events {
		style := warnStyle
		if evt.Severity >= model.SeverityHigh {
			style = failStyle
		}
		fmt.Printf("  %s %s on %s fingerprint=%s %s: %.0f -> %.0f (+%.0f%%)\n",
			style.Render(evt.Severity.String()), evt.Type, evt.Target.Key(), evt.FingerprintID,
			evt.MetricName, evt.BaselineValue, evt.CurrentValue, evt.ChangePercent)
		for _, s := range a.advisor.Propose(evt) {
			fmt.Printf("      %s %s %s\n", dimStyle.Render(fmt.Sprintf("#%d", s.Priority)), s.Title,
				dimStyle.Render(fmt.Sprintf("[%s, confidence %.1f]", s.Safety, s.Confidence)))
		}
	}

	if len(summary.Hotspots) > 0 {
		fmt.Println(titleStyle.Render("Hotspots"))
		for _, h := range summary.Hotspots {
			fmt.Printf("  %2d. %-30s %5.1f%% of %s  %s\n",
				h.Rank, h.Target.Key(), h.PercentageOfTotal*100, h.MetricType,
				dimStyle.Render(fmt.Sprintf("fingerprint=%s execs=%d", h.FingerprintID, h.ExecCount)))
		}
	}

	for key, ferr := range summary.PerTargetFailures {
		fmt.Printf("  %s %s %v\n", failStyle.Render("✗"), key, ferr)
	}
	if len(summary.PerTargetFailures) > 0 {
		return ExitCodeError{Code: exitPartial}
	}
	return nil
}
