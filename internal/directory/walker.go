// Package directory walks a paginated people directory and enriches each
// person from their detail page.
package directory

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/rosterscan/internal/failure"
	"github.com/tdh8316/rosterscan/internal/httpx"
	"github.com/tdh8316/rosterscan/internal/model"
	"github.com/tdh8316/rosterscan/internal/retry"
)

// PagePlaceholder is replaced with the page number in a listing URL.
const PagePlaceholder = "{page}"

const DefaultMaxPages = 50

type WalkerConfig struct {
	ListingURL string
	StartPage  int
	// MaxPages is the page-count ceiling. A listing URL without
	// PagePlaceholder is a single page.
	MaxPages  int
	Selectors Selectors
	UserAgent string
	Policy    retry.Policy
}

// Gap is a listing page that was skipped after its retries ran out.
type Gap struct {
	Page int
	URL  string
	Err  error
}

type WalkStats struct {
	Pages   int
	Records int
	Gaps    []Gap
}

type Walker struct {
	client httpx.Doer
	cfg    WalkerConfig
	log    *logrus.Logger
}

func NewWalker(client httpx.Doer, cfg WalkerConfig, log *logrus.Logger) (*Walker, error) {
	if strings.TrimSpace(cfg.ListingURL) == "" {
		return nil, &failure.ConfigError{Field: "listing_url", Message: "must not be empty"}
	}
	if cfg.MaxPages < 0 {
		return nil, &failure.ConfigError{Field: "max_pages", Message: "must not be negative"}
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if !strings.Contains(cfg.ListingURL, PagePlaceholder) {
		cfg.MaxPages = 1
	}
	if cfg.StartPage == 0 {
		cfg.StartPage = 1
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Walker{client: client, cfg: cfg, log: log}, nil
}

func (w *Walker) PageURL(page int) string {
	return strings.ReplaceAll(w.cfg.ListingURL, PagePlaceholder, strconv.Itoa(page))
}

// Walk fetches listing pages in order and passes each new record to yield.
// It stops when a page adds no new records, a later page answers 404 or
// 410, the page ceiling is reached, or yield returns false. A page whose retries run out is recorded as a
// Gap, or aborts the walk when the policy says so.
func (w *Walker) Walk(ctx context.Context, yield func(model.PersonRecord) bool) (WalkStats, error) {
	var stats WalkStats
	seen := make(map[string]struct{})

	for page := w.cfg.StartPage; page < w.cfg.StartPage+w.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL := w.PageURL(page)
		logger := w.log.WithField("page", page)

		stats.Pages++
		var recs []model.PersonRecord
		_, err := w.cfg.Policy.DoNotify(ctx, func(int) error {
			p, err := httpx.Get(ctx, w.client, pageURL, w.cfg.UserAgent)
			if err != nil {
				return err
			}
			recs, err = ParseListing(p.Body, pageURL, w.cfg.Selectors)
			return err
		}, func(err error, attempt int, wait time.Duration) {
			logger.WithFields(logrus.Fields{"attempt": attempt, "wait": wait}).WithError(err).Debug("retrying listing page")
		})
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if page > w.cfg.StartPage && pastEnd(err) {
				logger.WithError(err).Debug("listing ended")
				break
			}
			if w.cfg.Policy.OnExhaustion == retry.Abort {
				return stats, errors.Wrapf(err, "listing page %d", page)
			}
			logger.WithError(err).Warn("skipping listing page")
			stats.Gaps = append(stats.Gaps, Gap{Page: page, URL: pageURL, Err: err})
			continue
		}

		fresh := 0
		for _, rec := range recs {
			key := rec.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			fresh++

			rec.Index = stats.Records
			stats.Records++
			if !yield(rec) {
				return stats, nil
			}
		}
		logger.WithField("records", fresh).Debug("listing page parsed")
		if fresh == 0 {
			break
		}
	}
	return stats, nil
}

// pastEnd reports whether err means the listing has no such page.
func pastEnd(err error) bool {
	var se *failure.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone
}
