// Package config resolves crmetrics settings from flags, environment, an
// optional config file and a .env file, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys. Each is also read from the upper-cased environment variable.
const (
	KeyToken          = "cr_token"
	KeyAPIURL         = "cr_api_url"
	KeyDSN            = "db_dsn"
	KeyDataDir        = "data_dir"
	KeyLogLevel       = "log_level"
	KeyMetricsFile    = "metrics_file"
	KeyNumClans       = "n_clans"
	KeyNumSeeds       = "num_seeds"
	KeySeedMinLen     = "seed_min_len"
	KeySeedMaxLen     = "seed_max_len"
	KeyMaxPages       = "max_pages_per_seed"
	KeyPageLimit      = "limit_per_page"
	KeyLocations      = "clan_locations"
	KeyMinMembers     = "min_members"
	KeyMaxMembers     = "max_members"
	KeyNumPlayers     = "n_players"
	KeySleepMS        = "sleep_ms"
	KeyRetries        = "retries"
	KeyBatchSize      = "batch_size"
	KeyRetentionDays  = "retention_days"
	KeyRetentionBatch = "retention_batch"
	KeyBinSize        = "bin_size"
	KeyMinTrophy      = "min_trophy"
	KeyMaxTrophy      = "max_trophy"
	KeyMinSample      = "min_sample"
	KeyTopN           = "topn"
)

// Sampling holds the harvesting knobs.
type Sampling struct {
	NumClans        int
	NumSeeds        int
	SeedMinLen      int
	SeedMaxLen      int
	MaxPages        int
	PageLimit       int
	Locations       []string
	MinMembers      *int
	MaxMembers      *int
	NumPlayers      int
	RequestInterval time.Duration
	Retries         int
}

// Retention holds the sweep knobs.
type Retention struct {
	Horizon   time.Duration
	BatchSize int
}

// Analysis holds the aggregation knobs.
type Analysis struct {
	BinSize   int
	MinTrophy int
	MaxTrophy int
	MinSample int
	TopN      int
}

// Config is the resolved configuration for one command invocation.
type Config struct {
	Token       string
	APIURL      string
	DSN         string
	DataDir     string
	LogLevel    string
	MetricsFile string
	BatchSize   int
	Sampling    Sampling
	Retention   Retention
	Analysis    Analysis
}

// MissingError is a required setting that was not provided.
type MissingError struct {
	Key  string
	Hint string
}

func (e *MissingError) Error() string {
	msg := fmt.Sprintf("missing %s", strings.ToUpper(e.Key))
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// DefaultDSN is the SQLite file used when no DSN is configured.
func DefaultDSN() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".crmetrics", "crmetrics.db")
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "https://api.clashroyale.com/v1")
	v.SetDefault(KeyDSN, DefaultDSN())
	v.SetDefault(KeyDataDir, "data")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyNumClans, 300)
	v.SetDefault(KeyNumSeeds, 80)
	v.SetDefault(KeySeedMinLen, 3)
	v.SetDefault(KeySeedMaxLen, 4)
	v.SetDefault(KeyMaxPages, 6)
	v.SetDefault(KeyPageLimit, 50)
	v.SetDefault(KeyNumPlayers, 400)
	v.SetDefault(KeySleepMS, 250)
	v.SetDefault(KeyRetries, 5)
	v.SetDefault(KeyBatchSize, 5000)
	v.SetDefault(KeyRetentionDays, 90)
	v.SetDefault(KeyRetentionBatch, 10000)
	v.SetDefault(KeyBinSize, 5000)
	v.SetDefault(KeyMinTrophy, 0)
	v.SetDefault(KeyMaxTrophy, 15000)
	v.SetDefault(KeyMinSample, 50)
	v.SetDefault(KeyTopN, 30)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// PG_DSN is the historical name of the connection string.
	_ = v.BindEnv(KeyDSN, "DB_DSN", "PG_DSN")
}

// Init loads .env (if present) and an optional config file into v.
func Init(v *viper.Viper, configFile string) error {
	_ = godotenv.Load() // .env is optional; real env vars win
	SetDefaults(v)
	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", configFile, err)
	}
	return nil
}

// FromViper resolves a Config from v.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Token:       strings.TrimSpace(v.GetString(KeyToken)),
		APIURL:      v.GetString(KeyAPIURL),
		DSN:         v.GetString(KeyDSN),
		DataDir:     v.GetString(KeyDataDir),
		LogLevel:    v.GetString(KeyLogLevel),
		MetricsFile: v.GetString(KeyMetricsFile),
		BatchSize:   v.GetInt(KeyBatchSize),
		Sampling: Sampling{
			NumClans:        v.GetInt(KeyNumClans),
			NumSeeds:        v.GetInt(KeyNumSeeds),
			SeedMinLen:      v.GetInt(KeySeedMinLen),
			SeedMaxLen:      v.GetInt(KeySeedMaxLen),
			MaxPages:        v.GetInt(KeyMaxPages),
			PageLimit:       v.GetInt(KeyPageLimit),
			Locations:       splitList(v.GetString(KeyLocations)),
			MinMembers:      optionalInt(v, KeyMinMembers),
			MaxMembers:      optionalInt(v, KeyMaxMembers),
			NumPlayers:      v.GetInt(KeyNumPlayers),
			RequestInterval: time.Duration(v.GetInt(KeySleepMS)) * time.Millisecond,
			Retries:         v.GetInt(KeyRetries),
		},
		Retention: Retention{
			Horizon:   time.Duration(v.GetInt(KeyRetentionDays)) * 24 * time.Hour,
			BatchSize: v.GetInt(KeyRetentionBatch),
		},
		Analysis: Analysis{
			BinSize:   v.GetInt(KeyBinSize),
			MinTrophy: v.GetInt(KeyMinTrophy),
			MaxTrophy: v.GetInt(KeyMaxTrophy),
			MinSample: v.GetInt(KeyMinSample),
			TopN:      v.GetInt(KeyTopN),
		},
	}
	return cfg
}

// RequireToken fails when no API token is configured.
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return &MissingError{Key: KeyToken, Hint: "put it in .env or export it"}
	}
	return nil
}

// DataPath joins name onto the data directory.
func (c *Config) DataPath(name string) string {
	return filepath.Join(c.DataDir, name)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalInt(v *viper.Viper, key string) *int {
	if !v.IsSet(key) || strings.TrimSpace(v.GetString(key)) == "" {
		return nil
	}
	n := v.GetInt(key)
	return &n
}
