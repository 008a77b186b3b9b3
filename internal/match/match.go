// Package match correlates a person with a target-site account, either from
// a profile link already on their page or by probing ranked username
// candidates.
package match

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tdh8316/rosterscan/internal/data"
	"github.com/tdh8316/rosterscan/internal/model"
	"github.com/tdh8316/rosterscan/internal/names"
	"github.com/tdh8316/rosterscan/internal/profiles"
	"github.com/tdh8316/rosterscan/internal/retry"
)

// Target is the site being probed. *probe.Prober implements it.
type Target interface {
	Site() string
	Probe(ctx context.Context, c model.Candidate) model.ProbeResult
	UsernameFromURL(link string) (string, bool)
	ProfileURL(username string) string
}

type Config struct {
	Rules names.Rules
	// Concurrency bounds in-flight probes per person. 1 probes sequentially.
	Concurrency int
	Policy      retry.Policy
}

type Matcher struct {
	target Target
	cfg    Config
	log    *logrus.Logger

	group singleflight.Group
	memo  sync.Map // normalized name -> model.Match
}

func New(target Target, cfg Config, log *logrus.Logger) *Matcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Matcher{target: target, cfg: cfg, log: log}
}

// Candidates returns the ranked usernames that would be probed for name.
func (m *Matcher) Candidates(name string) []model.Candidate {
	return names.Generate(names.Normalize(name), m.cfg.Rules)
}

// Resolve matches rec and records the outcome on it. A permutation match
// also fills the target-site entry of rec.Socials.
func (m *Matcher) Resolve(ctx context.Context, rec *model.PersonRecord) {
	rec.Match = m.Match(ctx, *rec)
	if rec.Socials == nil {
		rec.Socials = model.SocialLinks{}
	}
	if rec.Match.Confidence == model.ConfidencePermutation {
		rec.Socials.Set(data.Key(m.target.Site()), rec.Match.Link)
	}
}

// Match determines rec's target-site username. A direct link on the
// record short-circuits probing entirely. Finding nothing is a valid
// outcome reported as ConfidenceNone.
func (m *Matcher) Match(ctx context.Context, rec model.PersonRecord) model.Match {
	tokens := names.Normalize(rec.Name)

	if username, ok := m.direct(rec.Socials); ok {
		return model.Match{
			Username:   username,
			Link:       m.target.ProfileURL(username),
			Confidence: model.ConfidenceDirect,
			Score:      score(tokens, username),
		}
	}

	if len(tokens) == 0 {
		return model.Match{Confidence: model.ConfidenceNone}
	}

	key := strings.Join(tokens, " ")
	if cached, ok := m.memo.Load(key); ok {
		return cached.(model.Match)
	}

	v, _, _ := m.group.Do(key, func() (any, error) {
		res := m.enumerate(ctx, rec.Name, tokens)
		if ctx.Err() == nil {
			m.memo.Store(key, res)
		}
		return res, nil
	})
	return v.(model.Match)
}

func (m *Matcher) direct(socials model.SocialLinks) (string, bool) {
	if len(socials) == 0 {
		return "", false
	}
	siteKey := data.Key(m.target.Site())
	keys := make([]string, 0, len(socials))
	for k := range socials {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == siteKey) != (keys[j] == siteKey) {
			return keys[i] == siteKey
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		if username, ok := m.target.UsernameFromURL(socials[k]); ok {
			return username, true
		}
	}
	return "", false
}

func (m *Matcher) enumerate(ctx context.Context, person string, tokens []string) model.Match {
	cands := names.Generate(tokens, m.cfg.Rules)
	out := model.Match{Confidence: model.ConfidenceNone}

	var results []*model.ProbeResult
	if m.cfg.Concurrency <= 1 {
		results = m.sequential(ctx, person, cands)
	} else {
		results = m.windowed(ctx, person, cands)
	}

	winner := -1
	for i, r := range results {
		if r != nil && r.Outcome == model.OutcomeExists {
			winner = i
			break
		}
	}

	for i, r := range results {
		if r == nil || (winner >= 0 && i > winner) {
			continue
		}
		out.Probed++
		if r.Outcome == model.OutcomeError {
			out.ProbeErrors = append(out.ProbeErrors, model.ProbeError{
				Username: r.Candidate.Username,
				Rank:     r.Candidate.Rank,
				Error:    errString(r.Err),
			})
		}
	}

	if winner < 0 {
		return out
	}

	w := results[winner]
	out.Username = w.Candidate.Username
	out.Link = w.Link
	out.Confidence = model.ConfidencePermutation
	out.Score = score(tokens, out.Username)
	if extract, ok := profiles.For(m.target.Site()); ok && len(w.Body) > 0 {
		p, err := extract(w.Body)
		if err != nil {
			m.log.WithFields(logrus.Fields{"person": person, "username": out.Username}).
				WithError(err).Debug("profile details unavailable")
		} else {
			out.Profile = p
		}
	}
	return out
}

func (m *Matcher) sequential(ctx context.Context, person string, cands []model.Candidate) []*model.ProbeResult {
	results := make([]*model.ProbeResult, len(cands))
	for i, c := range cands {
		if ctx.Err() != nil {
			break
		}
		r := m.probe(ctx, person, c)
		results[i] = &r
		if r.Outcome == model.OutcomeExists {
			break
		}
	}
	return results
}

// windowed probes up to Concurrency candidates at once. Once a candidate
// at rank r exists, nothing ranked after r is started and in-flight probes
// ranked after r are cancelled, so the lowest-rank hit always wins.
func (m *Matcher) windowed(ctx context.Context, person string, cands []model.Candidate) []*model.ProbeResult {
	results := make([]*model.ProbeResult, len(cands))
	cancels := make([]context.CancelFunc, len(cands))
	best := len(cands)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)

	for i, c := range cands {
		mu.Lock()
		stop := i > best || ctx.Err() != nil
		mu.Unlock()
		if stop {
			break
		}

		g.Go(func() error {
			mu.Lock()
			if i > best {
				mu.Unlock()
				return nil
			}
			pctx, cancel := context.WithCancel(ctx)
			cancels[i] = cancel
			mu.Unlock()
			defer cancel()

			r := m.probe(pctx, person, c)

			mu.Lock()
			defer mu.Unlock()
			if i > best {
				return nil
			}
			results[i] = &r
			if r.Outcome == model.OutcomeExists && i < best {
				best = i
				for j := i + 1; j < len(cancels); j++ {
					if cancels[j] != nil {
						cancels[j]()
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *Matcher) probe(ctx context.Context, person string, c model.Candidate) model.ProbeResult {
	var res model.ProbeResult
	attempts, err := m.cfg.Policy.DoNotify(ctx, func(int) error {
		res = m.target.Probe(ctx, c)
		if res.Outcome == model.OutcomeError {
			return res.Err
		}
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		m.log.WithFields(logrus.Fields{
			"person":    person,
			"candidate": c.Username,
			"attempt":   attempt,
			"wait":      wait,
		}).WithError(err).Debug("probe failed, retrying")
	})

	res.Candidate = c
	if err != nil && res.Outcome != model.OutcomeError {
		res.Outcome = model.OutcomeError
		res.Err = err
	}
	if res.Attempts > 0 {
		res.Attempts = attempts
	}
	return res
}

func score(tokens []string, username string) float64 {
	if len(tokens) == 0 || username == "" {
		return 0
	}
	return matchr.JaroWinkler(strings.Join(tokens, ""), strings.ToLower(username), false)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
