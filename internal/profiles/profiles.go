package profiles

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/tdh8316/rosterscan/internal/model"
)

// ExtractorFunc is a site-specific profile parser.
// Called only with the body of a probe that classified as EXISTS.
type ExtractorFunc func(body []byte) (*model.Profile, error)

// Extractors is keyed by lowercase site name.
var Extractors = map[string]ExtractorFunc{
	"hackernews": ExtractHackerNews,
}

// For returns the extractor registered for site, if any.
func For(site string) (ExtractorFunc, bool) {
	fn, ok := Extractors[strings.ToLower(site)]
	return fn, ok
}

// ExtractHackerNews reads the label/value table of a news.ycombinator.com
// user page.
func ExtractHackerNews(body []byte) (*model.Profile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parse hacker news profile")
	}

	p := &model.Profile{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(cells.First().Text()))
		value := strings.Join(strings.Fields(cells.Eq(1).Text()), " ")
		switch label {
		case "created:":
			p.Created = value
		case "karma:":
			p.Karma = value
		case "about:":
			p.About = value
		}
	})

	if *p == (model.Profile{}) {
		return nil, errors.New("hacker news profile: no user table found")
	}
	return p, nil
}
