package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const SherlockDataURL = "https://raw.githubusercontent.com/sherlock-project/sherlock/refs/heads/master/sherlock_project/resources/data.json"

// DefaultSite is the target site used when none is configured.
const DefaultSite = "HackerNews"

type SiteData struct {
	ErrorType string `json:"errorType"`
	ErrorMsg  any    `json:"errorMsg"`

	URL      string `json:"url"`
	URLMain  string `json:"urlMain"`
	URLProbe string `json:"urlProbe"`
	URLError string `json:"errorUrl"`

	UsedUsername   string `json:"username_claimed"`
	UnusedUsername string `json:"username_unclaimed"`
	RegexCheck     string `json:"regexCheck"`

	// Not part of the Sherlock schema.
	RateLimitMsg any `json:"rateLimitMsg,omitempty"`
}

// Builtin holds site definitions that do not depend on a database file.
var Builtin = map[string]SiteData{
	DefaultSite: {
		ErrorType:      "message",
		ErrorMsg:       []any{"No such user."},
		URL:            "https://news.ycombinator.com/user?id={}",
		URLMain:        "https://news.ycombinator.com/",
		UsedUsername:   "pg",
		UnusedUsername: "noonewouldeverusethis7",
		RegexCheck:     "^[A-Za-z0-9_-]{2,15}$",
		RateLimitMsg:   []any{"We're having some trouble serving your request"},
	},
}

// LoadSites loads sherlock-style data.json but safely ignores the top-level "$schema".
func LoadSites(filename string) (map[string]SiteData, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	out := make(map[string]SiteData, len(entries))
	for siteName, msg := range entries {
		if siteName == "$schema" {
			continue
		}

		var sd SiteData
		if err := json.Unmarshal(msg, &sd); err != nil {
			return nil, fmt.Errorf("site %q: %w", siteName, err)
		}
		out[siteName] = sd
	}

	return out, nil
}

// Resolve picks the target site named name. The database file is optional;
// when it is missing or lacks the site, the built-in definitions are used.
// Lookup is case-insensitive.
func Resolve(dbPath, name string) (string, SiteData, error) {
	if name == "" {
		name = DefaultSite
	}

	var sites map[string]SiteData
	if dbPath != "" {
		loaded, err := LoadSites(dbPath)
		switch {
		case err == nil:
			sites = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return "", SiteData{}, errors.Wrapf(err, "load %s", dbPath)
		}
	}

	// Database entries win over built-ins, but keep our rate limit hints.
	if actual, sd, ok := lookup(sites, name); ok {
		if b, ok := Builtin[actual]; ok && sd.RateLimitMsg == nil {
			sd.RateLimitMsg = b.RateLimitMsg
		}
		return actual, sd, nil
	}
	if actual, sd, ok := lookup(Builtin, name); ok {
		return actual, sd, nil
	}
	return "", SiteData{}, fmt.Errorf("unknown target site %q", name)
}

func lookup(sites map[string]SiteData, name string) (string, SiteData, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for actual, sd := range sites {
		if strings.ToLower(actual) == key {
			return actual, sd, true
		}
	}
	return "", SiteData{}, false
}

// Messages flattens an errorMsg / rateLimitMsg value (string or list).
func Messages(v any) []string {
	switch m := v.(type) {
	case string:
		if m == "" {
			return nil
		}
		return []string{m}
	case []string:
		return m
	case []any:
		out := make([]string, 0, len(m))
		for _, it := range m {
			if s, ok := it.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Key is the socials map key for a site name.
func Key(site string) string {
	return strings.ToLower(site)
}

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

func UpdateFromRemote(ctx context.Context, client Doer, userAgent string, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SherlockDataURL, nil)
	if err != nil {
		return err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("download failed: %s (%s)", resp.Status, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Refuse to replace a working database with something unparseable.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return errors.Wrap(err, "downloaded database is not valid json")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	tmp := destPath + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, destPath)
}
