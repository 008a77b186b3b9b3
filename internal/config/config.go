// Package config loads rosterscan.json5, merges rosterscan.local.json5
// over it and resolves the result into typed settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/mcuadros/go-version"
	"github.com/pkg/errors"
	"github.com/titanous/json5"

	"github.com/tdh8316/rosterscan/internal/data"
	"github.com/tdh8316/rosterscan/internal/directory"
	"github.com/tdh8316/rosterscan/internal/failure"
	"github.com/tdh8316/rosterscan/internal/httpx"
	"github.com/tdh8316/rosterscan/internal/retry"
)

const (
	DefaultPath = "rosterscan.json5"

	// SchemaVersion is written by this build; MinVersion is the oldest
	// file layout still understood.
	SchemaVersion = "1.1"
	MinVersion    = "1.0"

	EnvProxyUser = "ROSTERSCAN_PROXY_USER"
	EnvProxyPass = "ROSTERSCAN_PROXY_PASS"

	DefaultListingURL = "https://www.ycombinator.com/people?page={page}"
)

// File mirrors the on-disk layout. Durations are strings like "15s".
// Numbers are pointers so that an explicit 0 is told apart from unset.
type File struct {
	Version string `json:"version"`

	Directory struct {
		ListingURL string              `json:"listing_url"`
		StartPage  *int                `json:"start_page"`
		MaxPages   *int                `json:"max_pages"`
		Selectors  directory.Selectors `json:"selectors"`
	} `json:"directory"`

	Target struct {
		Site             string   `json:"site"`
		Database         string   `json:"database"`
		ProbeConcurrency *int     `json:"probe_concurrency"`
		ProbeRPS         *float64 `json:"probe_rps"`
		ProbeBurst       *int     `json:"probe_burst"`
		MinLength        *int     `json:"min_length"`
		MaxLength        *int     `json:"max_length"`
	} `json:"target"`

	HTTP struct {
		Timeout   string   `json:"timeout"`
		UserAgent string   `json:"user_agent"`
		Proxies   []string `json:"proxies"`
	} `json:"http"`

	Concurrency *int   `json:"concurrency"`
	Limit       *int   `json:"limit"`
	RunTimeout  string `json:"run_timeout"`

	Retry struct {
		Pages   PolicyFile `json:"pages"`
		Details PolicyFile `json:"details"`
		Probes  PolicyFile `json:"probes"`
	} `json:"retry"`

	Output struct {
		Format string `json:"format"`
		Path   string `json:"path"`
	} `json:"output"`
}

type PolicyFile struct {
	MaxRetries   *int   `json:"max_retries"`
	Backoff      string `json:"backoff"`
	BaseDelay    string `json:"base_delay"`
	MaxDelay     string `json:"max_delay"`
	OnExhaustion string `json:"on_exhaustion"`
}

// Config is the resolved run configuration.
type Config struct {
	Version string

	ListingURL string
	StartPage  int
	MaxPages   int
	Selectors  directory.Selectors

	Site             string
	Database         string
	ProbeConcurrency int
	ProbeRPS         float64
	ProbeBurst       int
	MinLength        int
	MaxLength        int

	Timeout   time.Duration
	UserAgent string
	Proxies   []string
	ProxyUser string
	ProxyPass string

	Concurrency int
	Limit       int
	RunTimeout  time.Duration

	PagePolicy   retry.Policy
	DetailPolicy retry.Policy
	ProbePolicy  retry.Policy

	Format string
	Output string
}

func Default() Config {
	probes := retry.Default()
	probes.MaxRetries = 1

	return Config{
		Version:          SchemaVersion,
		ListingURL:       DefaultListingURL,
		StartPage:        1,
		MaxPages:         directory.DefaultMaxPages,
		Selectors:        directory.DefaultSelectors(),
		Site:             data.DefaultSite,
		Database:         "data.json",
		ProbeConcurrency: 1,
		ProbeRPS:         2,
		ProbeBurst:       1,
		Timeout:          15 * time.Second,
		UserAgent:        httpx.DefaultUserAgent,
		Concurrency:      8,
		PagePolicy:       retry.Default(),
		DetailPolicy:     retry.Default(),
		ProbePolicy:      probes,
		Format:           "jsonl",
		Output:           "rosterscan.jsonl",
	}
}

// Load reads path and its .local sibling. Neither file has to exist; the
// defaults then stand alone. Proxy credentials come from the environment,
// after loading .env next to the config file when present.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	f, found, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if found {
		if err := f.apply(&cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return Config{}, err
	}
	cfg.ProxyUser = os.Getenv(EnvProxyUser)
	cfg.ProxyPass = os.Getenv(EnvProxyPass)

	return cfg, cfg.Validate()
}

// ReadFile parses path and decodes <name>.local.<ext> over it, so the
// local file only replaces the keys it names. found is false when neither
// file exists.
func ReadFile(path string) (File, bool, error) {
	var out File
	found := false

	base, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return out, false, &failure.ConfigError{Field: path, Message: "read", Cause: err}
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, false, &failure.ConfigError{Field: path, Message: "parse", Cause: err}
		}
		found = true
	}

	localPath := localName(path)
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, false, &failure.ConfigError{Field: localPath, Message: "read", Cause: err}
	}
	if len(local) > 0 {
		if err := json5.Unmarshal(local, &out); err != nil {
			return out, false, &failure.ConfigError{Field: localPath, Message: "parse", Cause: err}
		}
		found = true
	}
	return out, found, nil
}

func localName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func loadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &failure.ConfigError{Field: path, Message: "load env file", Cause: err}
	}
	return nil
}

func (f File) apply(cfg *Config) error {
	if f.Version == "" {
		return &failure.ConfigError{Field: "version", Message: "missing"}
	}
	if version.Compare(version.Normalize(f.Version), version.Normalize(MinVersion), "<") {
		return &failure.ConfigError{Field: "version", Message: fmt.Sprintf("%s is older than the minimum supported %s", f.Version, MinVersion)}
	}
	if version.Compare(version.Normalize(f.Version), version.Normalize(SchemaVersion), ">") {
		return &failure.ConfigError{Field: "version", Message: fmt.Sprintf("%s is newer than this build understands (%s)", f.Version, SchemaVersion)}
	}
	cfg.Version = f.Version

	// Strings, selectors and proxies merge field by field; an empty
	// string means unset.
	fromFile := Config{
		ListingURL: f.Directory.ListingURL,
		Selectors:  f.Directory.Selectors,
		Site:       f.Target.Site,
		Database:   f.Target.Database,
		UserAgent:  f.HTTP.UserAgent,
		Proxies:    f.HTTP.Proxies,
		Format:     f.Output.Format,
		Output:     f.Output.Path,
	}
	if err := mergo.Merge(cfg, fromFile, mergo.WithOverride); err != nil {
		return &failure.ConfigError{Message: "merge file settings", Cause: err}
	}
	set(&cfg.StartPage, f.Directory.StartPage)
	set(&cfg.MaxPages, f.Directory.MaxPages)
	set(&cfg.ProbeConcurrency, f.Target.ProbeConcurrency)
	set(&cfg.ProbeRPS, f.Target.ProbeRPS)
	set(&cfg.ProbeBurst, f.Target.ProbeBurst)
	set(&cfg.MinLength, f.Target.MinLength)
	set(&cfg.MaxLength, f.Target.MaxLength)
	set(&cfg.Concurrency, f.Concurrency)
	set(&cfg.Limit, f.Limit)

	var err error
	if cfg.Timeout, err = duration("http.timeout", f.HTTP.Timeout, cfg.Timeout); err != nil {
		return err
	}
	if cfg.RunTimeout, err = duration("run_timeout", f.RunTimeout, cfg.RunTimeout); err != nil {
		return err
	}
	if cfg.PagePolicy, err = f.Retry.Pages.policy("retry.pages", cfg.PagePolicy); err != nil {
		return err
	}
	if cfg.DetailPolicy, err = f.Retry.Details.policy("retry.details", cfg.DetailPolicy); err != nil {
		return err
	}
	if cfg.ProbePolicy, err = f.Retry.Probes.policy("retry.probes", cfg.ProbePolicy); err != nil {
		return err
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func duration(field, raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &failure.ConfigError{Field: field, Message: "invalid duration", Cause: err}
	}
	return d, nil
}

func (p PolicyFile) policy(field string, def retry.Policy) (retry.Policy, error) {
	out := def
	set(&out.MaxRetries, p.MaxRetries)
	if p.Backoff != "" {
		out.Backoff = retry.Strategy(strings.ToLower(p.Backoff))
	}
	if p.OnExhaustion != "" {
		a, err := retry.ParseAction(p.OnExhaustion)
		if err != nil {
			return out, &failure.ConfigError{Field: field + ".on_exhaustion", Message: "invalid", Cause: err}
		}
		out.OnExhaustion = a
	}
	var err error
	if out.BaseDelay, err = duration(field+".base_delay", p.BaseDelay, out.BaseDelay); err != nil {
		return out, err
	}
	if out.MaxDelay, err = duration(field+".max_delay", p.MaxDelay, out.MaxDelay); err != nil {
		return out, err
	}
	if err := out.Validate(); err != nil {
		return out, errors.Wrap(err, field)
	}
	return out, nil
}

// Validate rejects settings that would fail only after fetching started.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ListingURL) == "":
		return &failure.ConfigError{Field: "directory.listing_url", Message: "must not be empty"}
	case c.MaxPages < 0:
		return &failure.ConfigError{Field: "directory.max_pages", Message: "must not be negative"}
	case c.Concurrency < 1:
		return &failure.ConfigError{Field: "concurrency", Message: "must be at least 1"}
	case c.ProbeConcurrency < 1:
		return &failure.ConfigError{Field: "target.probe_concurrency", Message: "must be at least 1"}
	case c.ProbeRPS < 0:
		return &failure.ConfigError{Field: "target.probe_rps", Message: "must not be negative"}
	case c.MinLength < 0 || c.MaxLength < 0 || (c.MaxLength > 0 && c.MinLength > c.MaxLength):
		return &failure.ConfigError{Field: "target.min_length", Message: "invalid username length bounds"}
	case c.Timeout <= 0:
		return &failure.ConfigError{Field: "http.timeout", Message: "must be positive"}
	case c.RunTimeout < 0:
		return &failure.ConfigError{Field: "run_timeout", Message: "must not be negative"}
	case c.Limit < 0:
		return &failure.ConfigError{Field: "limit", Message: "must not be negative"}
	}
	for _, p := range []struct {
		field  string
		policy retry.Policy
	}{{"retry.pages", c.PagePolicy}, {"retry.details", c.DetailPolicy}, {"retry.probes", c.ProbePolicy}} {
		if err := p.policy.Validate(); err != nil {
			return errors.Wrap(err, p.field)
		}
	}
	return nil
}
