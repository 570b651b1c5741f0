package cmd

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// runCollectOnce performs a single collection cycle over the selected
// targets and prints the per-target outcome.
func runCollectOnce(args []string) error {
	fs := flag.NewFlagSet("collect-once", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	selector := fs.String("target", "", "instance or instance/database selector")
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

	targets := filterTargets(cfg.ResolveTargets(), *selector)
	if len(targets) == 0 {
		fmt.Fprintf(os.Stderr, "queryguard: no enabled targets match %s\n", selectorLabel(*selector))
		return ExitCodeError{Code: exitConfig}
	}

	log.Info("collecting %s (%d targets)", selectorLabel(*selector), len(targets))
	summary := a.collector.Run(ctx, targets)

	fmt.Println(titleStyle.Render("Collection summary"))
	for _, inst := range summary.Instances {
		if inst.InstanceErr != nil {
			fmt.Printf("  %s %s  %v\n", failStyle.Render("✗"), inst.InstanceName, inst.InstanceErr)
			continue
		}
		for _, tr := range inst.TargetResults {
			if tr.Err != nil {
				fmt.Printf("  %s %-30s %v\n", failStyle.Render("✗"), tr.Target.Key(), tr.Err)
			} else {
				fmt.Printf("  %s %-30s %s\n", okStyle.Render("✓"), tr.Target.Key(),
					dimStyle.Render(fmt.Sprintf("%d rows, %d samples, %s", tr.RowsObserved, tr.SamplesWritten, tr.Duration.Round(time.Millisecond))))
			}
		}
	}
	fmt.Printf("%s %d/%d targets in %s\n",
		dimStyle.Render("done:"), summary.SucceededTargets, summary.TotalTargets,
		summary.FinishedAtUTC.Sub(summary.StartedAtUTC).Round(time.Millisecond))

	if summary.FailedTargets > 0 {
		return ExitCodeError{Code: exitPartial}
	}
	return nil
}
