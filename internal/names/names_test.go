package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hackerNewsPattern = `^[A-Za-z0-9_-]{2,15}$`

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Émile Dupont", []string{"emile", "dupont"}},
		{"  John   Smith ", []string{"john", "smith"}},
		{"Dr. Jane Q. Public Jr.", []string{"jane", "q", "public"}},
		{"Robert (Bob) O'Neil", []string{"robert", "oneil"}},
		{"Søren Kierkegaard", []string{"soren", "kierkegaard"}},
		{"Zoë Saldaña-Nazario", []string{"zoe", "saldana", "nazario"}},
		{"Cher", []string{"cher"}},
		{"", []string{}},
		{"  ...  ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeKeepsLoneHonorific(t *testing.T) {
	assert.Equal(t, []string{"sir"}, Normalize("Sir"))
}

func TestGenerateRankOrder(t *testing.T) {
	rules := MustRules("", 0, 0)
	got := Usernames(Generate([]string{"john", "smith"}, rules))

	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, []string{"john", "smith", "johnsmith"}, got[:3])
	assert.Equal(t, []string{
		"john", "smith", "johnsmith", "smithjohn",
		"john.smith", "smith.john", "john_smith", "john-smith",
		"jsmith", "j.smith", "johns", "smithj",
	}, got)
}

func TestGenerateRanksAreDense(t *testing.T) {
	cs := Generate([]string{"john", "smith"}, MustRules(hackerNewsPattern, 0, 0))
	for i, c := range cs {
		assert.Equal(t, i, c.Rank)
		assert.NotContains(t, c.Username, ".")
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	rules := MustRules(hackerNewsPattern, 0, 0)
	tokens := Normalize("Ada Augusta King Lovelace")
	a := Generate(tokens, rules)
	b := Generate(tokens, rules)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestGenerateDeduplicatesCaseInsensitively(t *testing.T) {
	cs := Usernames(Generate([]string{"Ann", "ann"}, MustRules("", 0, 0)))
	seen := map[string]bool{}
	for _, c := range cs {
		assert.False(t, seen[c], "duplicate %q", c)
		seen[c] = true
	}
	assert.Equal(t, "ann", cs[0])
	assert.Equal(t, "annann", cs[1])
}

func TestGenerateSingleToken(t *testing.T) {
	cs := Generate([]string{"cher"}, MustRules("", 0, 0))
	assert.Equal(t, []string{"cher"}, Usernames(cs))
	assert.Empty(t, Generate(nil, MustRules("", 0, 0)))
}

func TestGenerateMiddleInitials(t *testing.T) {
	cs := Usernames(Generate([]string{"john", "ronald", "reuel", "tolkien"}, MustRules(hackerNewsPattern, 0, 0)))
	assert.Contains(t, cs, "jrrtolkien")
	assert.NotContains(t, cs, "johnronaldreueltolkien")
}

func TestGenerateNeverEmitsDisallowed(t *testing.T) {
	rules := MustRules(hackerNewsPattern, 0, 0)
	for _, name := range []string{"Émile Dupont", "Maximilian Alexander-Featherstonehaugh", "Li Na", "Ö Ü"} {
		for _, c := range Generate(Normalize(name), rules) {
			assert.True(t, rules.Allow(c.Username), c.Username)
			assert.LessOrEqual(t, len(c.Username), 15)
		}
	}
}

func TestRules(t *testing.T) {
	r := MustRules("", 3, 5)
	assert.False(t, r.Allow("ab"))
	assert.True(t, r.Allow("abc"))
	assert.False(t, r.Allow("abcdef"))
	assert.False(t, r.Allow("Abc"))

	_, err := NewRules("(", 0, 0)
	assert.Error(t, err)
}
