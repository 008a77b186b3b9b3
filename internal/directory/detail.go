package directory

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/rosterscan/internal/data"
	"github.com/tdh8316/rosterscan/internal/httpx"
	"github.com/tdh8316/rosterscan/internal/model"
	"github.com/tdh8316/rosterscan/internal/retry"
)

// Resolver assigns a target-site match to a record. *match.Matcher
// implements it.
type Resolver interface {
	Resolve(ctx context.Context, rec *model.PersonRecord)
}

type DetailConfig struct {
	Selectors Selectors
	UserAgent string
	Policy    retry.Policy
	// TargetSite and TargetURL identify links that belong under the
	// target-site key of SocialLinks.
	TargetSite string
	TargetURL  string
}

type DetailFetcher struct {
	client   httpx.Doer
	cfg      DetailConfig
	resolver Resolver
	log      *logrus.Logger

	targetKey  string
	targetHost string
}

func NewDetailFetcher(client httpx.Doer, cfg DetailConfig, resolver Resolver, log *logrus.Logger) *DetailFetcher {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	d := &DetailFetcher{
		client:    client,
		cfg:       cfg,
		resolver:  resolver,
		log:       log,
		targetKey: data.Key(cfg.TargetSite),
	}
	if u, err := url.Parse(cfg.TargetURL); err == nil {
		d.targetHost = bareHost(u.Hostname())
	}
	return d
}

// Enrich fetches rec's detail page, then matches the person against the
// target site. A failed fetch marks the record incomplete but the match
// still runs on what the listing gave us.
func (d *DetailFetcher) Enrich(ctx context.Context, rec model.PersonRecord) model.PersonRecord {
	if rec.Socials == nil {
		rec.Socials = model.SocialLinks{}
	}
	logger := d.log.WithField("person", rec.Name)

	complete := true
	if rec.DetailURL != "" {
		if err := d.fetch(ctx, &rec, logger); err != nil {
			complete = false
			rec.AddError("detail: " + err.Error())
			logger.WithError(err).Warn("detail page unavailable")
		}
	}

	if d.resolver != nil {
		d.resolver.Resolve(ctx, &rec)
	}

	if err := ctx.Err(); err != nil {
		complete = false
		rec.AddError("cancelled: " + err.Error())
	}
	if complete {
		rec.Enrichment = model.EnrichmentComplete
	} else {
		rec.Enrichment = model.EnrichmentIncomplete
	}
	return rec
}

func (d *DetailFetcher) fetch(ctx context.Context, rec *model.PersonRecord, logger *logrus.Entry) error {
	var (
		desc    string
		socials model.SocialLinks
	)
	_, err := d.cfg.Policy.DoNotify(ctx, func(int) error {
		page, err := httpx.Get(ctx, d.client, rec.DetailURL, d.cfg.UserAgent)
		if err != nil {
			return err
		}
		desc, socials, err = ParseDetail(page.Body, rec.DetailURL, d.cfg.Selectors, d.Platform)
		return err
	}, func(err error, attempt int, wait time.Duration) {
		logger.WithFields(logrus.Fields{"attempt": attempt, "wait": wait}).WithError(err).Debug("retrying detail page")
	})
	if err != nil {
		return err
	}

	if desc != "" {
		rec.Description = desc
	}
	for k, v := range socials {
		rec.Socials.Set(k, v)
	}
	return nil
}

var altPlatforms = map[string]string{
	"twitter":  "twitter",
	"x":        "twitter",
	"linkedin": "linkedin",
}

// Platform names the SocialLinks key for a link. A recognised icon alt
// text wins, then the host decides; anything unknown is a personal site.
func (d *DetailFetcher) Platform(href, alt string) string {
	if fields := strings.Fields(strings.ToLower(alt)); len(fields) > 0 {
		if p, ok := altPlatforms[strings.Trim(fields[0], ".,:")]; ok {
			return p
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return "website"
	}
	host := bareHost(u.Hostname())
	switch {
	case host == "twitter.com" || host == "x.com":
		return "twitter"
	case host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com"):
		return "linkedin"
	case d.targetHost != "" && host == d.targetHost:
		return d.targetKey
	default:
		return "website"
	}
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}
