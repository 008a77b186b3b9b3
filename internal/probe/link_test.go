package probe

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/rosterscan/internal/data"
)

func TestUsernameFromURL(t *testing.T) {
	hn, err := New(http.DefaultClient, data.DefaultSite, data.Builtin[data.DefaultSite], Config{})
	require.NoError(t, err)

	path, err := New(http.DefaultClient, "Forum", data.SiteData{ErrorType: "status_code", URL: "https://forum.example.com/users/@{}/profile"}, Config{})
	require.NoError(t, err)

	sub, err := New(http.DefaultClient, "Blog", data.SiteData{ErrorType: "status_code", URL: "https://{}.blog.example"}, Config{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		p      *Prober
		link   string
		want   string
		wantOK bool
	}{
		{"query", hn, "https://news.ycombinator.com/user?id=dang", "dang", true},
		{"query www and extra params", hn, "http://www.news.ycombinator.com/user?next=1&id=Dang_", "Dang_", true},
		{"query wrong host", hn, "https://example.com/user?id=dang", "", false},
		{"query missing", hn, "https://news.ycombinator.com/item?id=123", "", false},
		{"query invalid username", hn, "https://news.ycombinator.com/user?id=a.b", "", false},
		{"path", path, "https://forum.example.com/users/@alice/profile/", "alice", true},
		{"path wrong shape", path, "https://forum.example.com/users/@alice", "", false},
		{"path wrong segment", path, "https://forum.example.com/posts/@alice/profile", "", false},
		{"subdomain", sub, "https://carol.blog.example/", "carol", true},
		{"subdomain other host", sub, "https://carol.other.example/", "", false},
		{"garbage", hn, "::not a url", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.p.UsernameFromURL(tt.link)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
