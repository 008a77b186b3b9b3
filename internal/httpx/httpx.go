package httpx

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
const DefaultTorProxyURL = "socks5://127.0.0.1:9050"

// Doer lets us accept *http.Client or a test double.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	Timeout time.Duration

	// Proxies are http://, https:// or socks5:// URLs. Empty means direct.
	Proxies []string
	// ProxyUser and ProxyPass are applied to proxy URLs without credentials.
	ProxyUser string
	ProxyPass string
}

// NewClient builds a client that talks through proxyURL ("" for direct).
func NewClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}

		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			dialer, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("create socks dialer: %w", err)
			}

			transport.Proxy = nil
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// Pool spreads requests over one client per proxy. It is immutable after
// NewPool and safe for concurrent use.
type Pool struct {
	clients []*http.Client
	proxies []string
}

func NewPool(cfg ClientConfig) (*Pool, error) {
	if len(cfg.Proxies) == 0 {
		c, err := NewClient(cfg.Timeout, "")
		if err != nil {
			return nil, err
		}
		return &Pool{clients: []*http.Client{c}, proxies: []string{""}}, nil
	}

	p := &Pool{}
	for _, raw := range cfg.Proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		withCreds, err := applyCredentials(raw, cfg.ProxyUser, cfg.ProxyPass)
		if err != nil {
			return nil, err
		}
		c, err := NewClient(cfg.Timeout, withCreds)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", Redact(raw), err)
		}
		p.clients = append(p.clients, c)
		p.proxies = append(p.proxies, withCreds)
	}
	if len(p.clients) == 0 {
		return nil, fmt.Errorf("proxy list contains no usable entries")
	}
	return p, nil
}

func applyCredentials(raw, user, pass string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse proxy url %s: %w", Redact(raw), err)
	}
	if u.User == nil && user != "" {
		u.User = url.UserPassword(user, pass)
	}
	return u.String(), nil
}

// Redact hides proxy credentials for logging.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("redacted")
	return u.String()
}

func (p *Pool) Len() int { return len(p.clients) }

func (p *Pool) Do(req *http.Request) (*http.Response, error) {
	c := p.clients[0]
	if len(p.clients) > 1 {
		c = p.clients[rand.IntN(len(p.clients))]
	}
	return c.Do(req)
}

// Close releases idle connections held by every client in the pool.
func (p *Pool) Close() {
	for _, c := range p.clients {
		c.CloseIdleConnections()
	}
}

// Limited waits on a shared limiter before every request.
type Limited struct {
	Doer    Doer
	Limiter *rate.Limiter
}

// NewLimited returns d unchanged when rps is not positive.
func NewLimited(d Doer, rps float64, burst int) Doer {
	if rps <= 0 {
		return d
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{Doer: d, Limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) Do(req *http.Request) (*http.Response, error) {
	if err := l.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return l.Doer.Do(req)
}

func NewRequest(ctx context.Context, method, rawURL string, body io.Reader, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return req, nil
}
