package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/ftahirops/queryguard/internal/errs"
)

// runRebuildBaselines rebuilds the active baseline for every
// fingerprint whose baseline is missing or stale.
func runRebuildBaselines(args []string) error {
	fs := flag.NewFlagSet("rebuild-baselines", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	selector := fs.String("target", "", "instance or instance/database selector")
	lookback := fs.Duration("lookback", 7*24*time.Hour, "sample window per baseline")
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

	built, skipped, failed, err := rebuildBaselines(ctx, a, *selector, *lookback)
	if err != nil {
		fmt.Printf("%s %v\n", failStyle.Render("✗"), err)
		return ExitCodeError{Code: exitPartial}
	}

	fmt.Println(titleStyle.Render("Baseline rebuild"))
	fmt.Printf("  %s built=%d skipped=%d failed=%d\n", statusLabel(failed == 0), built, skipped, failed)
	if failed > 0 {
		return ExitCodeError{Code: exitPartial}
	}
	return nil
}

// rebuildBaselines drives the Baseline Builder over every stale
// fingerprint matching selector. Fingerprints without enough samples
// are skipped, not failed: a sparse query simply has no baseline yet.
func rebuildBaselines(ctx context.Context, a *app, selector string, lookback time.Duration) (built, skipped, failed int, err error) {
	stale, err := a.stores.baselines.GetStale(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return 0, 0, 0, err
	}

	for _, fingerprintID := range stale {
		if ctx.Err() != nil {
			return built, skipped, failed, ctx.Err()
		}
		if selector != "" {
			fp, err := a.stores.fingerprints.Get(ctx, fingerprintID)
			if err != nil {
				failed++
				continue
			}
			if fp == nil || (fp.InstanceName != selector && fp.InstanceName+"/"+fp.DatabaseName != selector) {
				continue
			}
		}
		if _, err := a.builder.Build(ctx, fingerprintID, lookback); err != nil {
			var storeErr *errs.StoreError
			if errors.As(err, &storeErr) && storeErr.Op == "baseline build" {
				skipped++ // not enough samples in the window
				continue
			}
			log.Error("baseline rebuild failed fingerprint=%s: %v", fingerprintID, err)
			failed++
			continue
		}
		built++
	}
	return built, skipped, failed, nil
}
