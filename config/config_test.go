package config

import "testing"

func TestDefaultPassesValidateOnceInstancesAdded(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error with no instances configured")
	}

	cfg.Instances = []InstanceConfig{{Name: "sql01", Databases: []DatabaseConfig{{Name: "orders", Enabled: true}}}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestResolveTargetsSkipsDisabledDatabases(t *testing.T) {
	cfg := Default()
	cfg.Instances = []InstanceConfig{{
		Name: "sql01",
		Databases: []DatabaseConfig{
			{Name: "orders", Enabled: true},
			{Name: "archive", Enabled: false},
		},
	}}

	targets := cfg.ResolveTargets()
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1 (disabled database skipped)", len(targets))
	}
	if targets[0].Target.DatabaseName != "orders" {
		t.Errorf("DatabaseName = %s, want orders", targets[0].Target.DatabaseName)
	}
	if targets[0].Settings.TopN != cfg.Global.TopN {
		t.Errorf("TopN = %d, want inherited global %d", targets[0].Settings.TopN, cfg.Global.TopN)
	}
}

func TestResolveTargetsAppliesCascadeOverrides(t *testing.T) {
	cfg := Default()
	cfg.Instances = []InstanceConfig{{
		Name:    "sql01",
		Cascade: Cascade{TopN: 25},
		Databases: []DatabaseConfig{
			{Name: "orders", Enabled: true, Cascade: Cascade{TopN: 5}},
		},
	}}

	targets := cfg.ResolveTargets()
	if targets[0].Settings.TopN != 5 {
		t.Fatalf("TopN = %d, want 5 (database override wins)", targets[0].Settings.TopN)
	}
}
