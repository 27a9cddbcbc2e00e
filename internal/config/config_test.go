package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg := FromViper(v)

	if cfg.Sampling.NumSeeds != 80 || cfg.Sampling.MaxPages != 6 || cfg.Sampling.PageLimit != 50 {
		t.Errorf("sampling defaults: %+v", cfg.Sampling)
	}
	if cfg.Retention.Horizon != 90*24*time.Hour || cfg.Retention.BatchSize != 10000 {
		t.Errorf("retention defaults: %+v", cfg.Retention)
	}
	if cfg.Analysis.BinSize != 5000 || cfg.Analysis.MaxTrophy != 15000 {
		t.Errorf("analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Sampling.RequestInterval != 250*time.Millisecond {
		t.Errorf("request interval: %v", cfg.Sampling.RequestInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CR_TOKEN", " secret ")
	t.Setenv("PG_DSN", "postgres://u@h/db")
	t.Setenv("CLAN_LOCATIONS", "57000000, 57000007,")
	t.Setenv("MIN_MEMBERS", "10")
	t.Setenv("N_PLAYERS", "25")

	v := viper.New()
	SetDefaults(v)
	cfg := FromViper(v)

	if cfg.Token != "secret" {
		t.Errorf("token: got %q", cfg.Token)
	}
	if cfg.DSN != "postgres://u@h/db" {
		t.Errorf("PG_DSN alias: got %q", cfg.DSN)
	}
	if len(cfg.Sampling.Locations) != 2 || cfg.Sampling.Locations[1] != "57000007" {
		t.Errorf("locations: %v", cfg.Sampling.Locations)
	}
	if cfg.Sampling.MinMembers == nil || *cfg.Sampling.MinMembers != 10 {
		t.Errorf("min members: %v", cfg.Sampling.MinMembers)
	}
	if cfg.Sampling.MaxMembers != nil {
		t.Errorf("max members should be unset, got %v", *cfg.Sampling.MaxMembers)
	}
	if cfg.Sampling.NumPlayers != 25 {
		t.Errorf("players: %d", cfg.Sampling.NumPlayers)
	}
}

func TestRequireToken(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireToken()
	var me *MissingError
	if !errors.As(err, &me) || me.Key != KeyToken {
		t.Fatalf("expected MissingError for token, got %v", err)
	}
	cfg.Token = "x"
	if err := cfg.RequireToken(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInitReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmetrics.yaml")
	if err := os.WriteFile(path, []byte("n_clans: 12\nbin_size: 1000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	if err := Init(v, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	cfg := FromViper(v)
	if cfg.Sampling.NumClans != 12 || cfg.Analysis.BinSize != 1000 {
		t.Errorf("config file not applied: clans=%d bin=%d", cfg.Sampling.NumClans, cfg.Analysis.BinSize)
	}
}
