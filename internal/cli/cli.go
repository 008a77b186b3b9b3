package cli

import (
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tdh8316/rosterscan/internal/config"
	"github.com/tdh8316/rosterscan/internal/httpx"
	"github.com/tdh8316/rosterscan/internal/output"
	"github.com/tdh8316/rosterscan/internal/retry"
)

var ErrHelp = errors.New("help requested")

type Command string

const (
	Scan       Command = "scan"
	Probe      Command = "probe"
	Candidates Command = "candidates"
	Validate   Command = "validate"
	Export     Command = "export"
)

type Options struct {
	Command Command
	Args    []string

	ConfigPath    string
	NoColor       bool
	Verbose       bool
	NoProgress    bool
	Update        bool
	SkipPreflight bool

	// export
	CSVOut   string
	Category string

	overrides []func(*config.Config) error
}

// Apply lays the flags that were set explicitly over cfg.
func (o Options) Apply(cfg *config.Config) error {
	for _, fn := range o.overrides {
		if err := fn(cfg); err != nil {
			return err
		}
	}
	return cfg.Validate()
}

type flagValues struct {
	timeout          time.Duration
	runTimeout       time.Duration
	proxies          []string
	tor              bool
	database         string
	site             string
	probeConcurrency int
	probeRPS         float64
	onExhaustion     string
	concurrency      int
	maxPages         int
	listingURL       string
	limit            int
	format           string
	out              string
}

// Parse runs the command tree over args. It returns ErrHelp when only
// help was printed.
func Parse(args []string, stdout, stderr io.Writer) (Options, error) {
	var (
		opts Options
		fv   flagValues
	)

	capture := func(c Command) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			opts.Command = c
			opts.Args = args
			opts.overrides = collect(cmd, &fv)
			return nil
		}
	}

	root := &cobra.Command{
		Use:           "rosterscan",
		Short:         "rosterscan harvests a people directory and finds each person's account on a target site.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "config file (a .local sibling is merged over it)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored stdout output")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.BoolVar(&opts.Update, "update", false, "update the site database before run from the Sherlock repository")
	pf.BoolVar(&opts.SkipPreflight, "skip-preflight", false, "do not check that the target site is reachable first")
	pf.DurationVar(&fv.timeout, "timeout", 0, "HTTP request timeout (e.g. 15s)")
	pf.StringSliceVar(&fv.proxies, "proxy", nil, "proxy URL, repeatable (http, https, socks5)")
	pf.BoolVarP(&fv.tor, "tor", "t", false, "use the local Tor SOCKS proxy")
	pf.StringVar(&fv.database, "database", "", "Sherlock-style site database (default: data.json)")
	pf.StringVar(&fv.site, "site", "", "target site name in the database (default: HackerNews)")
	pf.IntVar(&fv.probeConcurrency, "probe-concurrency", 0, "candidates probed at once per person")
	pf.Float64Var(&fv.probeRPS, "probe-rps", 0, "probe requests per second (0 = unlimited)")
	pf.StringVar(&fv.onExhaustion, "on-exhaustion", "", "skip or abort when a listing page keeps failing")

	scan := &cobra.Command{
		Use:   "scan",
		Short: "Walk the directory, enrich every person and write the results",
		Args:  cobra.NoArgs,
		RunE:  capture(Scan),
	}
	sf := scan.Flags()
	sf.IntVar(&fv.concurrency, "concurrency", 0, "detail pages enriched at once")
	sf.IntVar(&fv.maxPages, "max-pages", 0, "listing page ceiling")
	sf.StringVar(&fv.listingURL, "listing-url", "", "listing URL with a {page} placeholder")
	sf.IntVar(&fv.limit, "limit", 0, "stop after this many people")
	sf.DurationVar(&fv.runTimeout, "run-timeout", 0, "overall run timeout; unfinished people are kept as incomplete")
	sf.StringVar(&fv.format, "format", "", "output format: jsonl, json or csv")
	sf.StringVarP(&fv.out, "out", "o", "", "output file")
	sf.BoolVar(&opts.NoProgress, "no-progress", false, "hide the progress spinner")

	probe := &cobra.Command{
		Use:   "probe NAME...",
		Short: "Find target-site accounts for the given names",
		Args:  cobra.MinimumNArgs(1),
		RunE:  capture(Probe),
	}

	candidates := &cobra.Command{
		Use:   "candidates NAME...",
		Short: "Print the ranked username candidates for the given names",
		Args:  cobra.MinimumNArgs(1),
		RunE:  capture(Candidates),
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the target-site definition with its claimed/unclaimed usernames",
		Args:  cobra.NoArgs,
		RunE:  capture(Validate),
	}

	export := &cobra.Command{
		Use:   "export INPUT",
		Short: "Export matched people from a previous run as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  capture(Export),
	}
	export.Flags().StringVar(&opts.CSVOut, "csv", "", "CSV output path")
	export.Flags().StringVar(&opts.Category, "category", "", "only people in this category")
	_ = export.MarkFlagRequired("csv")

	root.AddCommand(scan, probe, candidates, validate, export)

	if err := root.Execute(); err != nil {
		return Options{}, err
	}
	if opts.Command == "" {
		return Options{}, ErrHelp
	}
	return opts, nil
}

func collect(cmd *cobra.Command, fv *flagValues) []func(*config.Config) error {
	var out []func(*config.Config) error
	set := func(name string, fn func(*config.Config) error) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			out = append(out, fn)
		}
	}

	set("timeout", func(c *config.Config) error { c.Timeout = fv.timeout; return nil })
	set("proxy", func(c *config.Config) error { c.Proxies = fv.proxies; return nil })
	set("tor", func(c *config.Config) error {
		if fv.tor {
			c.Proxies = append(c.Proxies, httpx.DefaultTorProxyURL)
		}
		return nil
	})
	set("database", func(c *config.Config) error { c.Database = fv.database; return nil })
	set("site", func(c *config.Config) error { c.Site = fv.site; return nil })
	set("probe-concurrency", func(c *config.Config) error { c.ProbeConcurrency = fv.probeConcurrency; return nil })
	set("probe-rps", func(c *config.Config) error { c.ProbeRPS = fv.probeRPS; return nil })
	set("on-exhaustion", func(c *config.Config) error {
		a, err := retry.ParseAction(fv.onExhaustion)
		if err != nil {
			return err
		}
		c.PagePolicy.OnExhaustion = a
		return nil
	})
	set("concurrency", func(c *config.Config) error { c.Concurrency = fv.concurrency; return nil })
	set("max-pages", func(c *config.Config) error { c.MaxPages = fv.maxPages; return nil })
	set("listing-url", func(c *config.Config) error { c.ListingURL = fv.listingURL; return nil })
	set("limit", func(c *config.Config) error { c.Limit = fv.limit; return nil })
	set("run-timeout", func(c *config.Config) error { c.RunTimeout = fv.runTimeout; return nil })
	set("format", func(c *config.Config) error {
		f, err := output.ParseFormat(fv.format)
		if err != nil {
			return err
		}
		c.Format = string(f)
		return nil
	})
	set("out", func(c *config.Config) error { c.Output = fv.out; return nil })
	return out
}
