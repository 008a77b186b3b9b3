package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/rosterscan/internal/output"
)

// fakeSites serves a one page directory and a Hacker News lookalike.
func fakeSites(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/people", func(w http.ResponseWriter, r *http.Request) {
		body := `<section><h2 class="text-2xl">Partners</h2><ul></ul></section>`
		if r.URL.Query().Get("page") == "1" {
			body = `<section><h2 class="text-2xl">Partners</h2><ul>
				<a href="/people/alan"><li><strong>Alan Turing</strong><strong>Partner</strong></li></a>
				<a href="/people/grace"><li><strong>Grace Hopper</strong><strong>Partner</strong></li></a>
			</ul></section>`
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/people/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `<div class="prose">About %s.</div>`, strings.TrimPrefix(r.URL.Path, "/people/"))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "turing" {
			_, _ = w.Write([]byte(`<table><tr><td>karma:</td><td>42</td></tr></table>`))
			return
		}
		_, _ = w.Write([]byte("No such user."))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("front page"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// workspace writes a config and site database pointing at base.
func workspace(t *testing.T, base, extra string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()

	db := map[string]any{
		"HackerNews": map[string]any{
			"errorType":          "message",
			"errorMsg":           "No such user.",
			"url":                base + "/user?id={}",
			"urlMain":            base + "/",
			"username_claimed":   "turing",
			"username_unclaimed": "nobody",
			"regexCheck":         "^[A-Za-z0-9_-]{2,15}$",
		},
	}
	raw, err := json.Marshal(db)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), raw, 0o600))

	cfgPath = filepath.Join(dir, "rosterscan.json5")
	body := fmt.Sprintf(`{
		version: "1.1",
		directory: { listing_url: %q },
		target: { database: %q, probe_rps: 1000, probe_burst: 100 },
		retry: {
			pages: { max_retries: 1, base_delay: "1ms" },
			details: { max_retries: 1, base_delay: "1ms" },
			probes: { max_retries: 1, base_delay: "1ms" },
		},
		output: { path: %q },
		%s
	}`, base+"/people?page={page}", filepath.Join(dir, "data.json"), filepath.Join(dir, "out.jsonl"), extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return dir, cfgPath
}

func TestRunScan(t *testing.T) {
	srv := fakeSites(t)
	dir, cfgPath := workspace(t, srv.URL, "")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"scan", "--config", cfgPath, "--no-color", "--no-progress"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "[+] Alan Turing: turing (permutation)")
	assert.Contains(t, stdout.String(), "Permutation match")

	f, err := os.Open(filepath.Join(dir, "out.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	recs, err := output.ReadRecords(f)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Alan Turing", recs[0].Name)
	require.NotNil(t, recs[0].MatchedUsername)
	assert.Equal(t, "turing", *recs[0].MatchedUsername)
	assert.Equal(t, "42", recs[0].Profile.Karma)
	assert.Equal(t, "none", string(recs[1].MatchConfidence))
	require.NotNil(t, recs[1].Description)
	assert.Equal(t, "About grace.", *recs[1].Description)

	csvPath := filepath.Join(dir, "people.csv")
	code = Run(context.Background(), []string{"export", filepath.Join(dir, "out.jsonl"), "--csv", csvPath, "--no-color"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "Name,Title,Category,Username,Created,Karma,About\nAlan Turing,Partner,Partners,turing,,42,\n", string(raw))
}

func TestRunCandidates(t *testing.T) {
	srv := fakeSites(t)
	_, cfgPath := workspace(t, srv.URL, "")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"candidates", "--config", cfgPath, "--no-color", "John Smith"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "  0  john\n  1  smith\n  2  johnsmith\n")
}

func TestRunValidate(t *testing.T) {
	srv := fakeSites(t)
	_, cfgPath := workspace(t, srv.URL, "")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"validate", "--config", cfgPath, "--no-color"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "[+] HackerNews: working")
}

func TestRunProbe(t *testing.T) {
	srv := fakeSites(t)
	_, cfgPath := workspace(t, srv.URL, "")

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"probe", "--config", cfgPath, "--no-color", "Alan Turing", "Nobody Atall"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "[+] Alan Turing: turing (permutation)")
	assert.Contains(t, stdout.String(), "[-] Nobody Atall: No match")
}

func TestRunConfigErrors(t *testing.T) {
	srv := fakeSites(t)
	_, cfgPath := workspace(t, srv.URL, `concurrency: -1,`)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, Run(context.Background(), []string{"scan", "--config", cfgPath}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "concurrency")

	assert.Equal(t, 2, Run(context.Background(), []string{"bogus"}, &stdout, &stderr))
	assert.Equal(t, 0, Run(context.Background(), []string{"--help"}, &stdout, &stderr))
}

func TestRunUnreachableTarget(t *testing.T) {
	srv := fakeSites(t)
	dir, cfgPath := workspace(t, srv.URL, "")
	srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"scan", "--config", cfgPath, "--no-color", "--no-progress"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "target site unreachable")
	_, err := os.Stat(filepath.Join(dir, "out.jsonl"))
	assert.True(t, os.IsNotExist(err))
}
