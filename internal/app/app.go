package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/rosterscan/internal/cli"
	"github.com/tdh8316/rosterscan/internal/config"
	"github.com/tdh8316/rosterscan/internal/data"
	"github.com/tdh8316/rosterscan/internal/directory"
	"github.com/tdh8316/rosterscan/internal/failure"
	"github.com/tdh8316/rosterscan/internal/harvest"
	"github.com/tdh8316/rosterscan/internal/httpx"
	"github.com/tdh8316/rosterscan/internal/match"
	"github.com/tdh8316/rosterscan/internal/model"
	"github.com/tdh8316/rosterscan/internal/names"
	"github.com/tdh8316/rosterscan/internal/output"
	"github.com/tdh8316/rosterscan/internal/probe"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

// env is everything a command needs once configuration is settled.
type env struct {
	opts    cli.Options
	cfg     config.Config
	log     *logrus.Logger
	printer *output.Printer
	stdout  io.Writer
	stderr  io.Writer

	pool    *httpx.Pool
	site    string
	sd      data.SiteData
	prober  *probe.Prober
	matcher *match.Matcher
}

func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := cli.Parse(args, stdout, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err.Error())
		return exitConfig
	}

	color.NoColor = opts.NoColor
	log := newLogger(stderr, opts.Verbose, opts.NoColor)

	cfg, err := config.Load(opts.ConfigPath)
	if err == nil {
		err = opts.Apply(&cfg)
	}
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return exitConfig
	}

	e := &env{
		opts:    opts,
		cfg:     cfg,
		log:     log,
		printer: output.NewPrinter(stdout, opts.NoColor, opts.Verbose),
		stdout:  stdout,
		stderr:  stderr,
	}

	if opts.Command == cli.Export {
		return e.export()
	}

	if code := e.setup(ctx); code != exitOK {
		return code
	}
	defer e.pool.Close()

	switch opts.Command {
	case cli.Candidates:
		for _, name := range opts.Args {
			e.printer.Candidates(name, e.matcher.Candidates(name))
		}
		return exitOK
	case cli.Validate:
		return e.validate(ctx)
	}

	if !opts.SkipPreflight {
		if code := e.preflight(ctx); code != exitOK {
			return code
		}
	}

	if opts.Command == cli.Probe {
		return e.probe(ctx)
	}
	return e.scan(ctx)
}

func newLogger(w io.Writer, verbose, noColor bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: noColor,
		FullTimestamp: true,
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// setup builds the HTTP pool, resolves the target site and constructs the
// prober and matcher.
func (e *env) setup(ctx context.Context) int {
	cfg := e.cfg

	pool, err := httpx.NewPool(httpx.ClientConfig{
		Timeout:   cfg.Timeout,
		Proxies:   cfg.Proxies,
		ProxyUser: cfg.ProxyUser,
		ProxyPass: cfg.ProxyPass,
	})
	if err != nil {
		e.log.WithError(err).Error("failed to initialize HTTP client")
		return exitConfig
	}
	e.pool = pool
	if len(cfg.Proxies) > 0 {
		e.log.WithField("proxies", pool.Len()).Debug("proxy pool ready")
	}

	if e.opts.Update {
		e.updateDatabase(ctx)
	}

	site, sd, err := data.Resolve(cfg.Database, cfg.Site)
	if err != nil {
		pool.Close()
		e.log.WithError(err).Error("database error")
		return exitConfig
	}
	e.site, e.sd = site, sd

	rules, err := names.NewRules(sd.RegexCheck, cfg.MinLength, cfg.MaxLength)
	if err != nil {
		pool.Close()
		e.log.WithError(err).Error("invalid username rules")
		return exitConfig
	}

	e.prober, err = probe.New(httpx.NewLimited(pool, cfg.ProbeRPS, cfg.ProbeBurst), site, sd, probe.Config{UserAgent: cfg.UserAgent})
	if err != nil {
		pool.Close()
		e.log.WithError(err).Error("invalid target site definition")
		return exitConfig
	}

	e.matcher = match.New(e.prober, match.Config{
		Rules:       rules,
		Concurrency: cfg.ProbeConcurrency,
		Policy:      cfg.ProbePolicy,
	}, e.log)
	return exitOK
}

func (e *env) updateDatabase(ctx context.Context) {
	e.printer.Info("Update database: Downloading...")
	err := data.UpdateFromRemote(ctx, e.pool, e.cfg.UserAgent, e.cfg.Database)
	if err != nil {
		e.printer.Warn("Failed to update database: %v (using existing or built-in)", err)
		return
	}
	e.printer.Info("Update database: Done")
}

// preflight makes sure the target site answers before any work starts.
func (e *env) preflight(ctx context.Context) int {
	attempts, err := e.cfg.ProbePolicy.Do(ctx, func(int) error {
		return e.prober.Ping(ctx)
	})
	if err != nil {
		e.log.WithFields(logrus.Fields{"site": e.site, "attempts": attempts}).WithError(err).Error("target site unreachable")
		return exitFatal
	}
	return exitOK
}

func (e *env) validate(ctx context.Context) int {
	e.printer.Info("Checking %s...", e.site)
	f := e.prober.Validate(ctx)
	e.printer.Validation(e.site, f)
	if f != nil {
		return exitFatal
	}
	return exitOK
}

func (e *env) probe(ctx context.Context) int {
	// every name gets a line, matched or not
	printer := output.NewPrinter(e.stdout, e.opts.NoColor, true)
	for _, name := range e.opts.Args {
		rec := model.PersonRecord{Name: name, Socials: model.SocialLinks{}}
		e.matcher.Resolve(ctx, &rec)
		printer.Person(rec)
		if ctx.Err() != nil {
			return exitFatal
		}
	}
	return exitOK
}

func (e *env) scan(ctx context.Context) int {
	cfg := e.cfg

	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		e.log.WithError(err).Error("invalid configuration")
		return exitConfig
	}

	walker, err := directory.NewWalker(e.pool, directory.WalkerConfig{
		ListingURL: cfg.ListingURL,
		StartPage:  cfg.StartPage,
		MaxPages:   cfg.MaxPages,
		Selectors:  cfg.Selectors,
		UserAgent:  cfg.UserAgent,
		Policy:     cfg.PagePolicy,
	}, e.log)
	if err != nil {
		e.log.WithError(err).Error("invalid configuration")
		return exitConfig
	}

	details := directory.NewDetailFetcher(e.pool, directory.DetailConfig{
		Selectors:  cfg.Selectors,
		UserAgent:  cfg.UserAgent,
		Policy:     cfg.DetailPolicy,
		TargetSite: e.site,
		TargetURL:  e.sd.URL,
	}, e.matcher, e.log)

	runner := harvest.NewRunner(walker, details, harvest.Config{
		Concurrency: cfg.Concurrency,
		Limit:       cfg.Limit,
		Timeout:     cfg.RunTimeout,
	}, e.log)

	var progress *output.Progress
	if !e.opts.NoProgress {
		progress = output.NewProgress(e.stderr)
	}

	fmt.Fprintf(e.stdout, "\nHarvesting %s\n", cfg.ListingURL)
	res, runErr := runner.Run(ctx, func(rec model.PersonRecord) {
		e.printer.Person(rec)
		if progress != nil {
			progress.Record(rec)
		}
	})
	if progress != nil {
		progress.Finish()
	}

	code := exitOK
	if runErr != nil {
		e.log.WithError(runErr).Error("run did not finish")
		code = exitFatal
	}

	if len(res.Records) > 0 {
		if err := output.WriteFile(cfg.Output, format, res.Records); err != nil {
			e.log.WithError(err).Error("failed to write output")
			return exitFatal
		}
	}

	counts := res.Counts()
	gaps := make([]int, 0, len(res.Walk.Gaps))
	for _, g := range res.Walk.Gaps {
		gaps = append(gaps, g.Page)
	}
	summary := output.Summary{
		Records:     len(res.Records),
		Pages:       res.Walk.Pages,
		Gaps:        gaps,
		Direct:      counts.Direct,
		Permutation: counts.Permutation,
		None:        counts.None,
		Complete:    counts.Complete,
		Incomplete:  counts.Incomplete,
		ProbeErrors: counts.ProbeErrors,
		Elapsed:     res.Elapsed,
		TimedOut:    res.TimedOut,
	}
	if len(res.Records) > 0 {
		summary.Output = cfg.Output
	}
	fmt.Fprintln(e.stdout)
	output.RenderSummary(e.stdout, summary)
	return code
}

func (e *env) export() int {
	in, err := os.Open(e.opts.Args[0])
	if err != nil {
		e.log.WithError(err).Error("cannot open input")
		return exitFatal
	}
	defer in.Close()

	recs, err := output.ReadRecords(in)
	if err != nil {
		e.log.WithError(err).Error("cannot read input")
		if failure.IsParse(err) {
			return exitConfig
		}
		return exitFatal
	}

	out, err := os.Create(e.opts.CSVOut)
	if err != nil {
		e.log.WithError(err).Error("cannot create csv")
		return exitFatal
	}
	n, err := output.Export(out, recs, e.opts.Category)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		e.log.WithError(err).Error("export failed")
		return exitFatal
	}

	if n == 0 {
		e.printer.Warn("No matched people found.")
	}
	e.printer.Info("CSV exported to: %s (%d people)", e.opts.CSVOut, n)
	return exitOK
}
