// internal/cli/options.go
package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"seqmap/internal/config"
)

// Program names; the daemon registers the watch flags.
const (
	MapName    = "seqmap"
	DaemonName = "seqmapd"
)

// Options is the parsed command line: the parameters after the config file
// and the flags were applied, plus the flags that only steer the CLI.
type Options struct {
	Params     config.Params
	ConfigPath string
	SaveConfig string
	ListJobs   bool
	Version    bool
}

// ParseArgs loads --config (if given) and then applies every other flag on
// top of it, so flags always win over the file. fs.Name() selects which
// flag groups exist.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help bool
	daemon := fs.Name() == DaemonName

	opt.ConfigPath = configPath(argv)
	p, err := config.LoadFrom(opt.ConfigPath)
	if err != nil {
		return opt, err
	}

	fs.StringVar(&opt.ConfigPath, "config", opt.ConfigPath, "YAML parameter file; flags override it")
	fs.StringVar(&opt.SaveConfig, "save-config", "", "write the effective parameters as YAML to this path and exit")

	// Reference and index
	fs.StringVar(&p.Reference, "reference", p.Reference, "reference FASTA (optionally gzipped) [*]")
	fs.StringVar(&p.IndexPath, "index", p.IndexPath, "index blob path (default <reference>.idx)")
	fs.BoolVar(&p.RebuildIndex, "rebuild-index", p.RebuildIndex, "regenerate the index even if the blob exists")
	fs.BoolVar(&p.IndexOnly, "index-only", p.IndexOnly, "build and store the index, then exit")
	fs.BoolVar(&p.Sensitive, "sensitive", p.Sensitive, "add the secondary spaced-seed index")
	fs.BoolVar(&p.Circular, "circular", p.Circular, "treat reference sequences as circular")

	// Queries
	fs.Int64Var(&p.BatchMB, "batch-mb", p.BatchMB, "query batch size in MiB (0 = whole file)")
	fs.Int64Var(&p.StartRead, "start-read", p.StartRead, "first query to map (0-based)")
	fs.Int64Var(&p.NumReads, "num-reads", p.NumReads, "queries to map from --start-read (-1 = all)")

	// Mapping
	fs.IntVar(&p.Threads, "threads", p.Threads, "worker threads (0 = min(24, CPUs/2))")
	fs.Int64Var(&p.MaxRegions, "max-regions", p.MaxRegions, "candidate regions per query (0 = calibrate, -1 = no ceiling)")
	fs.Int64Var(&p.MaxRegionsCutoff, "max-regions-cutoff", p.MaxRegionsCutoff, "region-reduction cutoff (0 = max-regions/5)")
	fs.Int64Var(&p.MaxHits, "max-hits", p.MaxHits, "skip seeds with more hits (-1 = calibrate, 0 = unlimited)")
	fs.IntVar(&p.MinVotes, "min-votes", p.MinVotes, "seed votes needed to report a placement")
	fs.BoolVar(&p.Multiple, "multiple", p.Multiple, "report secondary alignments for ambiguous queries")
	fs.BoolVar(&p.Ordered, "ordered", p.Ordered, "write results in input order")

	// Output
	fs.StringVar(&p.OutputFormat, "output-format", p.OutputFormat, "output format: sam")
	fs.IntVar(&p.SAMVerbosity, "sam-verbosity", p.SAMVerbosity, "1 = redacted @PG line, >= 4 = full reference names")
	fs.StringVar(&p.OutputDir, "output-dir", p.OutputDir, "directory for per-file .sam output")
	fs.StringVar(&p.Suffix, "suffix", p.Suffix, "only map files whose name ends with this")

	if daemon {
		fs.StringVar(&p.WatchDir, "watch", p.WatchDir, "directory to watch for query files [*]")
		fs.BoolVar(&p.SkipExisting, "skip-existing", p.SkipExisting, "ignore files already in the watch directory")
		fs.BoolVar(&p.DryRun, "dry-run", p.DryRun, "log dequeued files without mapping them")
		fs.StringVar(&p.WatchBackend, "watch-backend", p.WatchBackend, "auto | inotify | fsnotify")
		fs.DurationVar(&p.QuietPeriod, "quiet-period", p.QuietPeriod, "fsnotify: idle time before a file counts as written")
		fs.StringVar(&p.MetricsAddr, "metrics-addr", p.MetricsAddr, "serve Prometheus metrics on this address")
		fs.BoolVar(&opt.ListJobs, "list-jobs", false, "print the jobs recorded in --ledger as JSONL and exit")
	} else {
		fs.StringVar(&p.Reads, "reads", p.Reads, "query FASTA/FASTQ file or '-' for stdin [*]")
		fs.StringVar(&p.ReadsDir, "reads-dir", p.ReadsDir, "map every file in this directory")
		fs.StringVar(&p.Output, "output", p.Output, "output path ('-' or empty = stdout)")
	}

	// Diagnostics and bookkeeping
	fs.IntVar(&p.Verbose, "verbose", p.Verbose, "0 = quiet, 1 = info and progress, 2 = debug")
	fs.StringVar(&p.LogLevel, "log-level", p.LogLevel, "debug | info | warn | error (overrides --verbose)")
	fs.StringVar(&p.LogFormat, "log-format", p.LogFormat, "console | json")
	fs.StringVar(&p.LedgerPath, "ledger", p.LedgerPath, "SQLite job ledger path")
	fs.StringVar(&p.StatsPath, "stats", p.StatsPath, "JSONL job statistics path ('-' = stdout)")

	fs.BoolVar(&opt.Version, "v", false, "print version and exit (shorthand)")
	fs.BoolVar(&opt.Version, "version", false, "print version and exit")
	fs.BoolVar(&help, "h", false, "show this help message (shorthand)")

	if err := fs.Parse(argv); err != nil {
		return opt, err
	}
	if help {
		return opt, flag.ErrHelp
	}
	if fs.NArg() > 0 {
		return opt, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	p.CommandLine = strings.Join(append([]string{fs.Name()}, argv...), " ")
	opt.Params = p
	if opt.Version {
		return opt, nil
	}

	if err := p.Validate(); err != nil {
		return opt, err
	}
	switch {
	case opt.ListJobs && p.LedgerPath == "":
		return opt, errors.New("--list-jobs needs --ledger")
	case opt.ListJobs, opt.SaveConfig != "":
		return opt, nil
	}
	if p.Reference == "" {
		return opt, errors.New("--reference is required")
	}
	if daemon {
		switch {
		case p.WatchDir == "":
			return opt, errors.New("--watch is required")
		case p.OutputDir == "":
			return opt, errors.New("--output-dir is required")
		}
		return opt, nil
	}
	switch {
	case p.IndexOnly:
	case p.Reads != "" && p.ReadsDir != "":
		return opt, errors.New("--reads conflicts with --reads-dir")
	case p.Reads == "" && p.ReadsDir == "":
		return opt, errors.New("provide --reads or --reads-dir")
	case p.ReadsDir != "" && p.OutputDir == "":
		return opt, errors.New("--reads-dir needs --output-dir")
	case p.StatsPath == "-" && p.ReadsDir == "" && (p.Output == "" || p.Output == "-"):
		return opt, errors.New("--stats - conflicts with output on stdout")
	}
	return opt, nil
}

// configPath finds the --config value before flags are bound, so that the
// file can supply the defaults the flags then override.
func configPath(argv []string) string {
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if a == "--" {
			break
		}
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}
