package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/rosterscan/internal/data"
	"github.com/tdh8316/rosterscan/internal/directory"
	"github.com/tdh8316/rosterscan/internal/match"
	"github.com/tdh8316/rosterscan/internal/model"
	"github.com/tdh8316/rosterscan/internal/names"
	"github.com/tdh8316/rosterscan/internal/probe"
	"github.com/tdh8316/rosterscan/internal/retry"
)

var people = []string{"Ada Lovelace", "Alan Turing", "Grace Hopper", "Ken Thompson", "Barbara Liskov"}

func slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// fakeWorld serves a two page directory (five people, then none), their
// detail pages with staggered delays, and a Hacker News lookalike where
// only "turing" exists. Ken Thompson links his account directly.
func fakeWorld(t *testing.T) (srv *httptest.Server, pageHits, probeHits *atomic.Int32) {
	t.Helper()
	pageHits, probeHits = &atomic.Int32{}, &atomic.Int32{}

	mux := http.NewServeMux()
	mux.HandleFunc("/people", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		var b strings.Builder
		b.WriteString(`<section><h2 class="text-2xl">Partners</h2><ul>`)
		if r.URL.Query().Get("page") == "1" {
			for _, n := range people {
				fmt.Fprintf(&b, `<a href="/people/%s"><li><strong>%s</strong><strong>Partner</strong></li></a>`, slug(n), n)
			}
		}
		b.WriteString(`</ul></section>`)
		_, _ = w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/people/", func(w http.ResponseWriter, r *http.Request) {
		s := strings.TrimPrefix(r.URL.Path, "/people/")
		// earlier people answer later so completion order is reversed
		for i, n := range people {
			if slug(n) == s {
				time.Sleep(time.Duration(len(people)-i) * 15 * time.Millisecond)
			}
		}
		links := ""
		if s == "ken-thompson" {
			links = `<a href="` + srv.URL + `/user?id=ken"><img alt="YC"></a>`
		}
		_, _ = fmt.Fprintf(w, `<div class="prose">Bio of %s.</div><div class="mr-10">%s</div>`, s, links)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		probeHits.Add(1)
		if r.URL.Query().Get("id") == "turing" {
			_, _ = w.Write([]byte(`<table><tr><td>karma:</td><td>1936</td></tr></table>`))
			return
		}
		_, _ = w.Write([]byte("No such user."))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, pageHits, probeHits
}

func newRunner(t *testing.T, base string, cfg Config) *Runner {
	t.Helper()
	policy := retry.Policy{MaxRetries: 1, Backoff: retry.Constant, BaseDelay: time.Millisecond, OnExhaustion: retry.Skip}

	sd := data.Builtin[data.DefaultSite]
	sd.URL = base + "/user?id={}"
	sd.URLMain = base + "/"
	prober, err := probe.New(http.DefaultClient, data.DefaultSite, sd, probe.Config{})
	require.NoError(t, err)

	matcher := match.New(prober, match.Config{
		Rules:       names.MustRules(sd.RegexCheck, 0, 0),
		Concurrency: 1,
		Policy:      policy,
	}, nil)

	walker, err := directory.NewWalker(http.DefaultClient, directory.WalkerConfig{
		ListingURL: base + "/people?page={page}",
		Selectors:  directory.DefaultSelectors(),
		Policy:     policy,
	}, nil)
	require.NoError(t, err)

	details := directory.NewDetailFetcher(http.DefaultClient, directory.DetailConfig{
		Selectors:  directory.DefaultSelectors(),
		Policy:     policy,
		TargetSite: data.DefaultSite,
		TargetURL:  sd.URL,
	}, matcher, nil)

	return NewRunner(walker, details, cfg, nil)
}

func TestRunEndToEnd(t *testing.T) {
	srv, pageHits, _ := fakeWorld(t)
	runner := newRunner(t, srv.URL, Config{Concurrency: 5})

	var completion []int
	res, err := runner.Run(context.Background(), func(rec model.PersonRecord) {
		completion = append(completion, rec.Index)
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), pageHits.Load())
	assert.Equal(t, 2, res.Walk.Pages)
	require.Len(t, res.Records, 5)
	assert.NotEqual(t, []int{0, 1, 2, 3, 4}, completion)

	for i, rec := range res.Records {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, people[i], rec.Name)
		assert.Equal(t, model.EnrichmentComplete, rec.Enrichment, rec.Name)
		assert.Equal(t, "Bio of "+slug(people[i])+".", rec.Description)
	}

	turing := res.Records[1].Match
	assert.Equal(t, "turing", turing.Username)
	assert.Equal(t, model.ConfidencePermutation, turing.Confidence)
	require.NotNil(t, turing.Profile)
	assert.Equal(t, "1936", turing.Profile.Karma)
	assert.Equal(t, srv.URL+"/user?id=turing", res.Records[1].Socials["hackernews"])

	ken := res.Records[3].Match
	assert.Equal(t, "ken", ken.Username)
	assert.Equal(t, model.ConfidenceDirect, ken.Confidence)
	assert.Zero(t, ken.Probed)

	assert.Equal(t, model.ConfidenceNone, res.Records[0].Match.Confidence)

	c := res.Counts()
	assert.Equal(t, Counts{Direct: 1, Permutation: 1, None: 3, Complete: 5}, c)
}

func TestRunTimeoutKeepsRecords(t *testing.T) {
	srv, _, _ := fakeWorld(t)
	runner := newRunner(t, srv.URL, Config{Concurrency: 1, Timeout: 40 * time.Millisecond})

	res, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	require.NotEmpty(t, res.Records)

	incomplete := 0
	for i, rec := range res.Records {
		assert.Equal(t, i, rec.Index)
		if rec.Enrichment == model.EnrichmentIncomplete {
			incomplete++
			assert.NotEmpty(t, rec.Errors)
		}
	}
	assert.NotZero(t, incomplete)
}

type stubWalker struct {
	recs  []model.PersonRecord
	stats directory.WalkStats
	err   error
}

func (s stubWalker) Walk(_ context.Context, yield func(model.PersonRecord) bool) (directory.WalkStats, error) {
	for _, r := range s.recs {
		if !yield(r) {
			break
		}
	}
	return s.stats, s.err
}

type markEnricher struct{ n atomic.Int32 }

func (m *markEnricher) Enrich(_ context.Context, rec model.PersonRecord) model.PersonRecord {
	m.n.Add(1)
	rec.Enrichment = model.EnrichmentComplete
	return rec
}

func TestRunUnreachableDirectory(t *testing.T) {
	w := stubWalker{stats: directory.WalkStats{Pages: 3, Gaps: []directory.Gap{{Page: 1}, {Page: 2}, {Page: 3}}}}
	res, err := NewRunner(w, &markEnricher{}, Config{}, nil).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Empty(t, res.Records)
}

func TestRunWalkErrorKeepsEnrichedRecords(t *testing.T) {
	recs := make([]model.PersonRecord, 3)
	for i := range recs {
		recs[i] = model.PersonRecord{Index: i, Name: "P" + strconv.Itoa(i)}
	}
	enricher := &markEnricher{}
	w := stubWalker{recs: recs, err: fmt.Errorf("listing page 2: boom")}

	res, err := NewRunner(w, enricher, Config{Concurrency: 2}, nil).Run(context.Background(), nil)
	require.Error(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, int32(3), enricher.n.Load())
}

func TestRunParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs := []model.PersonRecord{{Index: 0, Name: "A"}}
	res, err := NewRunner(stubWalker{recs: recs}, &markEnricher{}, Config{}, nil).Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Records, 1)
}

func TestRunLimit(t *testing.T) {
	recs := make([]model.PersonRecord, 10)
	for i := range recs {
		recs[i] = model.PersonRecord{Index: i, Name: "P" + strconv.Itoa(i)}
	}
	enricher := &markEnricher{}
	res, err := NewRunner(stubWalker{recs: recs}, enricher, Config{Limit: 3}, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "P2", res.Records[2].Name)
	assert.Equal(t, int32(3), enricher.n.Load())
}
