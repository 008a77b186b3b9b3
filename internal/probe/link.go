package probe

import (
	"net/url"
	"strings"
)

const placeholder = "rosterscanusername"

// UsernameFromURL extracts the username from link when link points at a
// profile on the target site, using the site's url template to find
// where the username lives (query value, path segment or subdomain).
func (p *Prober) UsernameFromURL(link string) (string, bool) {
	tmpl, err := url.Parse(strings.ReplaceAll(p.sd.URL, "{}", placeholder))
	if err != nil {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return "", false
	}

	name, ok := "", false
	switch {
	case strings.Contains(tmpl.Host, placeholder):
		name, ok = matchAffix(hostname(u), hostname(tmpl))
		if ok && trimPath(tmpl.Path) != trimPath(u.Path) {
			ok = false
		}

	case hostname(tmpl) != hostname(u):
		return "", false

	case strings.Contains(tmpl.RawQuery, placeholder):
		if trimPath(tmpl.Path) != trimPath(u.Path) {
			return "", false
		}
		for key, vals := range tmpl.Query() {
			if len(vals) > 0 && strings.Contains(vals[0], placeholder) {
				name, ok = matchAffix(u.Query().Get(key), vals[0])
				break
			}
		}

	default:
		name, ok = matchPath(tmpl.Path, u.Path)
	}
	if !ok {
		return "", false
	}

	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name == "" || !p.Allowed(name) {
		return "", false
	}
	return name, true
}

func hostname(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func trimPath(p string) string {
	return strings.ToLower(strings.Trim(p, "/"))
}

// matchAffix matches value against a pattern with the placeholder
// somewhere inside and returns what stood in for it.
func matchAffix(value, pattern string) (string, bool) {
	i := strings.Index(pattern, placeholder)
	if i < 0 {
		return "", false
	}
	prefix, suffix := pattern[:i], pattern[i+len(placeholder):]
	lv := strings.ToLower(value)
	if len(value) <= len(prefix)+len(suffix) ||
		!strings.HasPrefix(lv, strings.ToLower(prefix)) ||
		!strings.HasSuffix(lv, strings.ToLower(suffix)) {
		return "", false
	}
	return value[len(prefix) : len(value)-len(suffix)], true
}

func matchPath(tmplPath, linkPath string) (string, bool) {
	want := strings.Split(strings.Trim(tmplPath, "/"), "/")
	got := strings.Split(strings.Trim(linkPath, "/"), "/")
	if len(want) != len(got) {
		return "", false
	}

	name, found := "", false
	for i := range want {
		if strings.Contains(want[i], placeholder) {
			n, ok := matchAffix(got[i], want[i])
			if !ok {
				return "", false
			}
			name, found = n, true
			continue
		}
		if !strings.EqualFold(want[i], got[i]) {
			return "", false
		}
	}
	return name, found
}
