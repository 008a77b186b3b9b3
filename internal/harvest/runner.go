// Package harvest runs a directory walk through a bounded pool of
// enrichment workers and returns the records in listing order.
package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/rosterscan/internal/directory"
	"github.com/tdh8316/rosterscan/internal/model"
)

const DefaultConcurrency = 8

// ErrUnreachable means every listing page was skipped and nothing was found.
var ErrUnreachable = errors.New("directory unreachable: every listing page failed")

type Walker interface {
	Walk(ctx context.Context, yield func(model.PersonRecord) bool) (directory.WalkStats, error)
}

type Enricher interface {
	Enrich(ctx context.Context, rec model.PersonRecord) model.PersonRecord
}

type Config struct {
	Concurrency int
	// Limit stops the walk after this many people. Zero means no limit.
	Limit int
	// Timeout bounds the whole run. Records still pending when it fires
	// are returned incomplete.
	Timeout time.Duration
}

type Result struct {
	Records  []model.PersonRecord
	Walk     directory.WalkStats
	TimedOut bool
	Elapsed  time.Duration
}

type Runner struct {
	walker   Walker
	enricher Enricher
	cfg      Config
	log      *logrus.Logger
}

func NewRunner(w Walker, e Enricher, cfg Config, log *logrus.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Runner{walker: w, enricher: e, cfg: cfg, log: log}
}

// Run walks the directory and enriches every record. onResult, if set, is
// called from the calling goroutine as each record finishes, in completion
// order. The returned records are always in listing order and include
// every record the walker produced.
func (r *Runner) Run(ctx context.Context, onResult func(model.PersonRecord)) (Result, error) {
	start := time.Now()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
	}
	defer cancel()

	var (
		walked  []model.PersonRecord
		stats   directory.WalkStats
		walkErr error
	)

	jobs := make(chan model.PersonRecord)
	results := make(chan model.PersonRecord, r.cfg.Concurrency)

	var wg sync.WaitGroup
	wg.Add(r.cfg.Concurrency)
	for range r.cfg.Concurrency {
		go func() {
			defer wg.Done()
			for rec := range jobs {
				results <- r.enricher.Enrich(runCtx, rec)
			}
		}()
	}

	go func() {
		defer close(results)
		wg.Wait()
	}()

	go func() {
		defer close(jobs)
		stats, walkErr = r.walker.Walk(runCtx, func(rec model.PersonRecord) bool {
			if r.cfg.Limit > 0 && len(walked) >= r.cfg.Limit {
				return false
			}
			walked = append(walked, rec)
			select {
			case <-runCtx.Done():
				return false
			case jobs <- rec:
				return true
			}
		})
	}()

	done := make(map[int]model.PersonRecord)
	for rec := range results {
		done[rec.Index] = rec
		if onResult != nil {
			onResult(rec)
		}
	}

	res := Result{
		Walk:     stats,
		TimedOut: ctx.Err() == nil && runCtx.Err() != nil,
		Records:  make([]model.PersonRecord, 0, len(walked)),
	}
	for _, rec := range walked {
		if out, ok := done[rec.Index]; ok {
			res.Records = append(res.Records, out)
			continue
		}
		rec.Enrichment = model.EnrichmentIncomplete
		rec.AddError("not enriched: " + cause(runCtx).Error())
		res.Records = append(res.Records, rec)
	}
	res.Elapsed = time.Since(start)

	if res.TimedOut {
		r.log.WithField("timeout", r.cfg.Timeout).Warn("run timed out; pending records marked incomplete")
	}

	switch {
	case ctx.Err() != nil:
		return res, ctx.Err()
	case walkErr != nil && runCtx.Err() == nil:
		return res, walkErr
	case len(walked) == 0 && len(stats.Gaps) > 0 && len(stats.Gaps) == stats.Pages:
		return res, ErrUnreachable
	}
	return res, nil
}

func cause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

// Counts tallies records by match confidence and enrichment state.
type Counts struct {
	Direct, Permutation, None int
	Complete, Incomplete      int
	ProbeErrors               int
}

func (r Result) Counts() Counts {
	var c Counts
	for _, rec := range r.Records {
		switch rec.Match.Confidence {
		case model.ConfidenceDirect:
			c.Direct++
		case model.ConfidencePermutation:
			c.Permutation++
		default:
			c.None++
		}
		if rec.Enrichment == model.EnrichmentComplete {
			c.Complete++
		} else {
			c.Incomplete++
		}
		c.ProbeErrors += len(rec.Match.ProbeErrors)
	}
	return c
}
