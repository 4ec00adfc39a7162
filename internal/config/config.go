// Package config holds the run parameters shared by the one-shot mapper and
// the daemon, and loads them from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats understood by the writer. Anything else falls back to SAM.
const FormatSAM = "sam"

// Params is one snapshot of every tunable. It is a plain value: each job and
// batch works on its own copy, so calibration results never leak between
// runs.
type Params struct {
	// Reference and index
	Reference    string `yaml:"reference"`
	IndexPath    string `yaml:"index"`
	RebuildIndex bool   `yaml:"rebuild_index"`
	IndexOnly    bool   `yaml:"index_only"`
	Sensitive    bool   `yaml:"sensitive"` // adds the secondary spaced-seed index
	Circular     bool   `yaml:"circular"`

	// Queries
	Reads     string `yaml:"reads"`
	ReadsDir  string `yaml:"reads_dir"`
	BatchMB   int64  `yaml:"batch_mb"` // <= 0 loads the whole file
	StartRead int64  `yaml:"start_read"`
	NumReads  int64  `yaml:"num_reads"` // < 0 means all

	// Mapping
	Threads          int   `yaml:"threads"`     // 0 = automatic
	MaxRegions       int64 `yaml:"max_regions"` // 0 = calibrate, < 0 = no ceiling
	MaxRegionsCutoff int64 `yaml:"max_regions_cutoff"`
	MaxHits          int64 `yaml:"max_hits"` // < 0 = percentile probe, 0 = unlimited
	MinVotes         int   `yaml:"min_votes"`
	Multiple         bool  `yaml:"multiple_alignments"`
	Ordered          bool  `yaml:"ordered_output"`

	// Output
	Output       string `yaml:"output"` // "" or "-" is stdout
	OutputFormat string `yaml:"output_format"`
	SAMVerbosity int    `yaml:"sam_verbosity"`
	CommandLine  string `yaml:"-"`

	// Daemon
	WatchDir     string        `yaml:"watch_dir"`
	OutputDir    string        `yaml:"output_dir"`
	Suffix       string        `yaml:"suffix"`
	SkipExisting bool          `yaml:"skip_existing"`
	DryRun       bool          `yaml:"dry_run"`
	WatchBackend string        `yaml:"watch_backend"`
	QuietPeriod  time.Duration `yaml:"quiet_period"`

	// Diagnostics and bookkeeping
	Verbose     int    `yaml:"verbose"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	LedgerPath  string `yaml:"ledger"`
	StatsPath   string `yaml:"stats"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Defaults returns the parameters used when neither a file nor a flag sets
// a value.
func Defaults() Params {
	return Params{
		BatchMB:      1024,
		StartRead:    0,
		NumReads:     -1,
		MaxRegions:   0,
		MaxHits:      -1,
		MinVotes:     2,
		OutputFormat: FormatSAM,
		WatchBackend: "auto",
		QuietPeriod:  2 * time.Second,
		Verbose:      1,
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Clone returns an independent copy.
func (p Params) Clone() Params { return p }

// LoadFrom reads YAML from path on top of Defaults. Unknown keys are
// rejected. An empty path returns Defaults.
func LoadFrom(path string) (Params, error) {
	p := Defaults()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return p, nil
}

// SaveTo writes p as YAML.
func SaveTo(p Params, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks values that are wrong in every mode.
func (p Params) Validate() error {
	switch {
	case p.Threads < 0:
		return errors.New("threads must be ≥ 0")
	case p.MinVotes < 0:
		return errors.New("min_votes must be ≥ 0")
	case p.SAMVerbosity < 0:
		return errors.New("sam_verbosity must be ≥ 0")
	case p.QuietPeriod < 0:
		return errors.New("quiet_period must be ≥ 0")
	}
	switch p.WatchBackend {
	case "", "auto", "inotify", "fsnotify":
	default:
		return fmt.Errorf("invalid watch_backend %q", p.WatchBackend)
	}
	switch p.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q", p.LogFormat)
	}
	return nil
}

// PrimaryIndexPath is the index blob location; it defaults to the
// reference path plus ".idx".
func (p Params) PrimaryIndexPath() string {
	if p.IndexPath != "" {
		return p.IndexPath
	}
	return p.Reference + ".idx"
}

// SecondaryIndexPath is where the secondary index of a sensitive run lives.
func (p Params) SecondaryIndexPath() string { return p.PrimaryIndexPath() + "sec" }
