package config_test

import (
	"path/filepath"
	"testing"

	"github.com/chaoslab/dsim/pkg/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := config.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cluster.NodeCount != config.DefaultConfig().Cluster.NodeCount {
		t.Fatal("expected default cluster node count when file is absent")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cluster.NodeCount = 7
	path := filepath.Join(t.TempDir(), "dsim.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Cluster.NodeCount != 7 {
		t.Fatalf("expected node count 7 after round trip, got %d", loaded.Cluster.NodeCount)
	}
}

func TestValidateRejectsBadIPBase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cluster.IPBase = "not-an-ip"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad ip_base")
	}
}

