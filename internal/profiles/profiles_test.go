package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hnUserPage = `<html><body><table>
<tr class="athing"><td valign="top">user:</td><td><a href="user?id=pg" class="hnuser">pg</a></td></tr>
<tr><td valign="top">created:</td><td><a href="front?day=2006-10-09">October 9, 2006</a></td></tr>
<tr><td valign="top">karma:</td><td>157236</td></tr>
<tr><td valign="top">about:</td><td style="overflow:hidden;">Bug
  fixer.</td></tr>
</table></body></html>`

func TestExtractHackerNews(t *testing.T) {
	p, err := ExtractHackerNews([]byte(hnUserPage))
	require.NoError(t, err)
	assert.Equal(t, "October 9, 2006", p.Created)
	assert.Equal(t, "157236", p.Karma)
	assert.Equal(t, "Bug fixer.", p.About)
}

func TestExtractHackerNewsWithoutTable(t *testing.T) {
	_, err := ExtractHackerNews([]byte("<html><body>No such user.</body></html>"))
	assert.Error(t, err)
}

func TestFor(t *testing.T) {
	_, ok := For("HackerNews")
	assert.True(t, ok)
	_, ok = For("Unknown")
	assert.False(t, ok)
}
