package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/tdh8316/rosterscan/internal/data"
	"github.com/tdh8316/rosterscan/internal/failure"
	"github.com/tdh8316/rosterscan/internal/httpx"
	"github.com/tdh8316/rosterscan/internal/model"
)

// Prober checks whether usernames exist on one target site. It keeps no
// state between probes; every Probe is a single idempotent GET.
type Prober struct {
	client httpx.Doer
	cfg    Config

	site      string
	sd        data.SiteData
	re        *regexp2.Regexp
	notFound  []string
	rateLimit []string
}

func New(client httpx.Doer, site string, sd data.SiteData, cfg Config) (*Prober, error) {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = httpx.DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpx.DefaultUserAgent
	}

	if sd.URL == "" || !strings.Contains(sd.URL, "{}") {
		return nil, &failure.ConfigError{Field: site + ".url", Message: "missing {} placeholder"}
	}

	p := &Prober{
		client:    client,
		cfg:       cfg,
		site:      site,
		sd:        sd,
		notFound:  data.Messages(sd.ErrorMsg),
		rateLimit: data.Messages(sd.RateLimitMsg),
	}

	switch sd.ErrorType {
	case "status_code", "response_url":
	case "message":
		if len(p.notFound) == 0 {
			return nil, &failure.ConfigError{Field: site + ".errorMsg", Message: "required for errorType=message"}
		}
	default:
		return nil, &failure.ConfigError{Field: site + ".errorType", Message: fmt.Sprintf("unsupported error type %q", sd.ErrorType)}
	}

	if sd.RegexCheck != "" {
		re, err := regexp2.Compile(sd.RegexCheck, regexp2.None)
		if err != nil {
			return nil, &failure.ConfigError{Field: site + ".regexCheck", Message: "invalid regex", Cause: err}
		}
		p.re = re
	}

	return p, nil
}

func (p *Prober) Site() string { return p.site }

func (p *Prober) ProfileURL(username string) string {
	return strings.ReplaceAll(p.sd.URL, "{}", username)
}

func (p *Prober) probeURL(username string) string {
	if p.sd.URLProbe != "" {
		return strings.ReplaceAll(p.sd.URLProbe, "{}", username)
	}
	return p.ProfileURL(username)
}

// Allowed reports whether username passes the site's regexCheck.
func (p *Prober) Allowed(username string) bool {
	if p.re == nil {
		return username != ""
	}
	ok, err := p.re.MatchString(username)
	return err == nil && ok
}

// Probe classifies c as EXISTS, NOT_FOUND or ERROR. It never retries;
// ERROR results carry a *failure.NetworkError, *failure.StatusError or
// *failure.RateLimitError.
func (p *Prober) Probe(ctx context.Context, c model.Candidate) model.ProbeResult {
	res := model.ProbeResult{Candidate: c, Outcome: model.OutcomeNotFound, Attempts: 1}

	// Username not valid for this site => not found, no request.
	if !p.Allowed(c.Username) {
		res.Attempts = 0
		return res
	}

	profileURL := p.ProfileURL(c.Username)
	page, err := httpx.Fetch(ctx, p.client, p.probeURL(c.Username), p.cfg.UserAgent, p.cfg.MaxBodyBytes)
	if err != nil {
		res.Outcome = model.OutcomeError
		res.Err = err
		return res
	}

	if reason, limited := p.rateLimited(page); limited {
		res.Outcome = model.OutcomeError
		res.Err = &failure.RateLimitError{URL: page.URL, Reason: reason}
		return res
	}
	if page.StatusCode >= 500 || page.StatusCode == http.StatusRequestTimeout {
		res.Outcome = model.OutcomeError
		res.Err = &failure.StatusError{URL: page.URL, StatusCode: page.StatusCode}
		return res
	}

	ok2xx := page.StatusCode >= 200 && page.StatusCode < 300
	gone := page.StatusCode == http.StatusNotFound || page.StatusCode == http.StatusGone
	if !ok2xx && !gone {
		// blocked or denied, not an answer about the username
		res.Outcome = model.OutcomeError
		res.Err = &failure.StatusError{URL: page.URL, StatusCode: page.StatusCode}
		return res
	}

	exists := false
	switch p.sd.ErrorType {
	case "status_code":
		exists = ok2xx

	case "message":
		exists = ok2xx && !containsAny(string(page.Body), p.notFound)

	case "response_url":
		exists = ok2xx && page.FinalURL == profileURL
	}

	if exists {
		res.Outcome = model.OutcomeExists
		res.Link = profileURL
		res.Body = page.Body
	}
	return res
}

func (p *Prober) rateLimited(page httpx.Page) (string, bool) {
	switch page.StatusCode {
	case http.StatusTooManyRequests:
		return "HTTP 429", true
	case http.StatusServiceUnavailable:
		return "HTTP 503", true
	}
	body := string(page.Body)
	for _, m := range p.rateLimit {
		if strings.Contains(body, m) {
			return m, true
		}
	}
	return "", false
}

func containsAny(body string, msgs []string) bool {
	for _, m := range msgs {
		if m != "" && strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// Ping checks that the site's main page answers at all.
func (p *Prober) Ping(ctx context.Context) error {
	target := p.sd.URLMain
	if target == "" {
		target = p.ProfileURL(p.sd.UsedUsername)
	}
	page, err := httpx.Fetch(ctx, p.client, target, p.cfg.UserAgent, 64<<10)
	if err != nil {
		return err
	}
	if reason, limited := p.rateLimited(page); limited {
		return &failure.RateLimitError{URL: target, Reason: reason}
	}
	if page.StatusCode >= 500 {
		return &failure.StatusError{URL: target, StatusCode: page.StatusCode}
	}
	return nil
}

// Validate probes the site's claimed and unclaimed usernames and returns
// a failure when either does not classify as expected.
func (p *Prober) Validate(ctx context.Context) *ValidationFailure {
	sd := p.sd
	if sd.UsedUsername == "" || sd.UnusedUsername == "" {
		missing := fmt.Errorf("missing username_claimed/username_unclaimed in database")
		return &ValidationFailure{
			Site:           p.site,
			UsedUsername:   sd.UsedUsername,
			UnusedUsername: sd.UnusedUsername,
			Used:           model.ProbeResult{Candidate: model.Candidate{Username: sd.UsedUsername}, Outcome: model.OutcomeError, Err: missing},
			Unused:         model.ProbeResult{Candidate: model.Candidate{Username: sd.UnusedUsername}, Outcome: model.OutcomeError, Err: missing},
		}
	}

	used := p.Probe(ctx, model.Candidate{Username: sd.UsedUsername})
	unused := p.Probe(ctx, model.Candidate{Username: sd.UnusedUsername, Rank: 1})
	if used.Outcome == model.OutcomeExists && unused.Outcome == model.OutcomeNotFound {
		return nil
	}
	return &ValidationFailure{
		Site:           p.site,
		UsedUsername:   sd.UsedUsername,
		UnusedUsername: sd.UnusedUsername,
		Used:           used,
		Unused:         unused,
	}
}
