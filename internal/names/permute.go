package names

import (
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"

	"github.com/tdh8316/rosterscan/internal/model"
)

// DefaultPattern is used when a site declares no username regex.
const DefaultPattern = `^[a-z0-9][a-z0-9._-]*$`

const DefaultMaxLength = 32

// Rules bound what a candidate may look like on the target site.
type Rules struct {
	pattern   *regexp2.Regexp
	MinLength int
	MaxLength int
}

// NewRules compiles pattern (DefaultPattern when empty).
func NewRules(pattern string, minLength, maxLength int) (Rules, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return Rules{}, errors.Wrapf(err, "compile username pattern %q", pattern)
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if minLength <= 0 {
		minLength = 1
	}
	return Rules{pattern: re, MinLength: minLength, MaxLength: maxLength}, nil
}

// MustRules is NewRules for patterns known at compile time.
func MustRules(pattern string, minLength, maxLength int) Rules {
	r, err := NewRules(pattern, minLength, maxLength)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rules) Allow(username string) bool {
	n := utf8.RuneCountInString(username)
	if n == 0 || n < r.MinLength || (r.MaxLength > 0 && n > r.MaxLength) {
		return false
	}
	if r.pattern == nil {
		return true
	}
	ok, err := r.pattern.MatchString(username)
	return err == nil && ok
}

// Generate returns the ranked candidate usernames for tokens.
//
// Order: first, last, firstlast, lastfirst, first.last, last.first,
// first_last, first-last, flast, f.last, firstl, lastf, full, fmlast.
// With a single token only first is produced. Candidates are deduplicated
// case-insensitively, filtered by rules and ranked densely from 0.
func Generate(tokens []string, rules Rules) []model.Candidate {
	if len(tokens) == 0 {
		return nil
	}

	var raw []string
	first := tokens[0]
	if len(tokens) == 1 {
		raw = []string{first}
	} else {
		last := tokens[len(tokens)-1]
		f, l := initial(first), initial(last)

		raw = []string{
			first,
			last,
			first + last,
			last + first,
			first + "." + last,
			last + "." + first,
			first + "_" + last,
			first + "-" + last,
			f + last,
			f + "." + last,
			first + l,
			last + f,
			strings.Join(tokens, ""),
		}
		if len(tokens) > 2 {
			var b strings.Builder
			for _, t := range tokens[:len(tokens)-1] {
				b.WriteString(initial(t))
			}
			raw = append(raw, b.String()+last)
		}
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]model.Candidate, 0, len(raw))
	for _, c := range raw {
		c = strings.ToLower(c)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if !rules.Allow(c) {
			continue
		}
		out = append(out, model.Candidate{Username: c, Rank: len(out)})
	}
	return out
}

func initial(token string) string {
	r, size := utf8.DecodeRuneInString(token)
	if r == utf8.RuneError {
		return ""
	}
	return token[:size]
}

// Usernames strips the ranks off cs.
func Usernames(cs []model.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Username
	}
	return out
}
