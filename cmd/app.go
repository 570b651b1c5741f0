package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ftahirops/queryguard/alert"
	"github.com/ftahirops/queryguard/analysis"
	"github.com/ftahirops/queryguard/baseline"
	"github.com/ftahirops/queryguard/collect"
	"github.com/ftahirops/queryguard/config"
	"github.com/ftahirops/queryguard/internal/logx"
	"github.com/ftahirops/queryguard/model"
	"github.com/ftahirops/queryguard/remediate"
	"github.com/ftahirops/queryguard/storage/litestore"
	"github.com/ftahirops/queryguard/storage/pgstore"
)

var log = logx.New("cmd")

// fingerprintStore is the union of the fingerprint contracts the
// collection and analysis pipelines need from one backing store.
type fingerprintStore interface {
	collect.FingerprintRepo
	analysis.FingerprintLister
	Get(ctx context.Context, id string) (*model.Fingerprint, error)
}

// baselineStore adds the staleness scan the rebuild command uses on
// top of the builder's read/save contract.
type baselineStore interface {
	baseline.Repo
	GetStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

type eventStore interface {
	analysis.EventRepo
	analysis.EventSummarizer
}

type auditStore interface {
	remediate.AuditRepo
	analysis.AuditCounter
}

// stores bundles one backing implementation (litestore or pgstore)
// behind the shared contracts.
type stores struct {
	fingerprints fingerprintStore
	snapshots    collect.SnapshotStore
	samples      collect.SampleStore
	baselines    baselineStore
	events       eventStore
	audits       auditStore
	close        func()
}

// app is the fully wired process: every component constructed once at
// startup with explicit dependencies, no ambient container.
type app struct {
	cfg       config.Config
	stores    *stores
	secrets   *config.SecretResolver
	statsSrc  *pgstore.StatsSource
	stats     collect.StatsSource
	collector *collect.Orchestrator
	analyzer  *analysis.Orchestrator
	builder   *baseline.Builder
	gateway   *alert.Gateway
	advisor   *remediate.Advisor
	executor  *remediate.Executor
	hotspots  *analysis.LatestHotspots
}

// loadConfig loads and validates the config file; any failure is a
// fatal ConfigError mapped to exit code 1 by the callers.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queryguard: %v\n", err)
		return cfg, ExitCodeError{Code: exitConfig}
	}
	return cfg, nil
}

// newApp wires the process from an already validated config.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	secrets := config.NewSecretResolver(cfg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queryguard: %v\n", err)
		return nil, ExitCodeError{Code: exitConfig}
	}

	statsSrc := pgstore.NewStatsSource(secrets)
	stats := collect.NewBreakingStatsSource(statsSrc)

	collector := collect.NewOrchestrator(stats, st.fingerprints, st.snapshots, st.samples, collect.OrchestratorConfig{
		ContinueOnDatabaseError: true,
		ContinueOnInstanceError: true,
		Parallelism:             cfg.Parallelism,
	})

	analyzer := analysis.NewOrchestrator(st.fingerprints, st.baselines, st.samples, st.events)
	analyzer.Rules = cfg.RegressionRules.ToRules()
	analyzer.Incidents = analysis.NewIncidentRecorder(cfg.DataDir)

	builder := baseline.NewBuilder(st.samples, st.baselines)
	if cfg.RegressionRules.MinimumBaselineSamples > 0 {
		builder.MinSamples = cfg.RegressionRules.MinimumBaselineSamples
	}

	gateway := alert.NewGateway(buildChannels(cfg.Alerts), alert.GatewayConfig{
		CooldownMinutes:  cfg.Alerts.CooldownMinutes,
		MaxAlertsPerHour: cfg.Alerts.MaxAlertsPerHour,
	})
	if cfg.Alerts.RedisCooldownURL != "" {
		opts, err := redis.ParseURL(cfg.Alerts.RedisCooldownURL)
		if err != nil {
			st.close()
			fmt.Fprintf(os.Stderr, "queryguard: parse redis_cooldown_url: %v\n", err)
			return nil, ExitCodeError{Code: exitConfig}
		}
		gateway.WithTracker(alert.NewRedisTracker(redis.NewClient(opts), "queryguard"))
	}

	executor := remediate.NewExecutor(pgstore.NewTargetExecutor(secrets), st.audits, cfg.Remediation.ToExecutorConfig())

	return &app{
		cfg:       cfg,
		stores:    st,
		secrets:   secrets,
		statsSrc:  statsSrc,
		stats:     stats,
		collector: collector,
		analyzer:  analyzer,
		builder:   builder,
		gateway:   gateway,
		advisor:   remediate.NewAdvisor(),
		executor:  executor,
		hotspots:  &analysis.LatestHotspots{},
	}, nil
}

func (a *app) shutdown() {
	a.statsSrc.Close()
	a.stores.close()
}

// openStores opens the configured backing store and exposes its repo
// views behind the shared contracts.
func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		dsn := cfg.Storage.DSN
		if env := os.Getenv("QUERYGUARD_STORE_DSN"); env != "" {
			dsn = env
		}
		store, err := pgstore.Open(ctx, dsn, cfg.Parallelism*2)
		if err != nil {
			return nil, err
		}
		return &stores{
			fingerprints: store.Fingerprints(),
			snapshots:    store.Snapshots(),
			samples:      store.Samples(),
			baselines:    store.Baselines(),
			events:       store.Events(),
			audits:       store.Audits(),
			close:        store.Close,
		}, nil
	default: // sqlite
		path := cfg.Storage.Path
		if path == "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			path = filepath.Join(cfg.DataDir, "queryguard.db")
		}
		store, err := litestore.Open(path)
		if err != nil {
			return nil, err
		}
		return &stores{
			fingerprints: store.Fingerprints(),
			snapshots:    store.Snapshots(),
			samples:      store.Samples(),
			baselines:    store.Baselines(),
			events:       store.Events(),
			audits:       store.Audits(),
			close:        func() { store.Close() },
		}, nil
	}
}

// buildChannels constructs every configured alert channel, disabled
// ones included; the gateway skips any channel that is not enabled,
// so test-channels does not list them.
func buildChannels(cfg config.AlertConfig) []alert.Channel {
	return []alert.Channel{
		alert.NewSlackChannel(cfg.Slack.WebhookURL, cfg.Slack.Enabled),
		alert.NewEmailChannel(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Recipients, cfg.SMTP.Enabled),
		alert.NewWebhookChannel(cfg.Webhook.URL, cfg.Webhook.Enabled),
	}
}

// filterTargets applies the -target selector: empty keeps everything,
// "instance" keeps that instance, "instance/database" keeps one target.
func filterTargets(targets []collect.CollectTarget, selector string) []collect.CollectTarget {
	if selector == "" {
		return targets
	}
	var out []collect.CollectTarget
	for _, t := range targets {
		if t.Target.InstanceName == selector || t.Target.Key() == selector {
			out = append(out, t)
		}
	}
	return out
}

// selectorLabel renders a selector for log lines.
func selectorLabel(selector string) string {
	if selector == "" {
		return "all targets"
	}
	if strings.Contains(selector, "/") {
		return "target " + selector
	}
	return "instance " + selector
}
