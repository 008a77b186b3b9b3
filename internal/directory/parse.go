package directory

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tdh8316/rosterscan/internal/failure"
	"github.com/tdh8316/rosterscan/internal/model"
)

// ParseListing extracts person summaries from one listing page. Entries
// without a name are skipped. Indexes are left at zero for the caller.
func ParseListing(body []byte, pageURL string, sel Selectors) ([]model.PersonRecord, error) {
	sel = sel.withDefaults()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &failure.ParseError{URL: pageURL, Message: "parse listing html", Cause: err}
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &failure.ParseError{URL: pageURL, Message: "parse listing url", Cause: err}
	}

	var out []model.PersonRecord
	collect := func(section *goquery.Selection, category string) {
		section.Find(sel.Entry).Each(func(_ int, entry *goquery.Selection) {
			if rec, ok := parseEntry(entry, category, base, sel); ok {
				out = append(out, rec)
			}
		})
	}

	if sel.Section == "" {
		collect(doc.Selection, "")
		return out, nil
	}

	doc.Find(sel.Section).Each(func(_ int, section *goquery.Selection) {
		heading := section.Find(sel.Category).First()
		if heading.Length() == 0 {
			return
		}
		collect(section, text(heading))
	})
	return out, nil
}

func parseEntry(entry *goquery.Selection, category string, base *url.URL, sel Selectors) (model.PersonRecord, bool) {
	nameSel := entry.Find(sel.Name).First()
	name := text(nameSel)
	if name == "" {
		return model.PersonRecord{}, false
	}

	title := ""
	entry.Find(sel.Title).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if nameSel.Length() > 0 && s.Nodes[0] == nameSel.Nodes[0] {
			return true
		}
		title = text(s)
		return false
	})

	rec := model.PersonRecord{
		Name:        name,
		Title:       title,
		Category:    category,
		Description: text(entry.Find(sel.Description).First()),
		Socials:     model.SocialLinks{},
		Enrichment:  model.EnrichmentPending,
	}

	if src, ok := entry.Find(sel.Image).First().Attr("src"); ok {
		rec.ImageURL = resolve(base, src)
	}

	if goquery.NodeName(entry) == "a" {
		if href, ok := entry.Attr("href"); ok {
			rec.DetailURL = resolve(base, href)
		}
	}
	if rec.DetailURL == "" {
		if href, ok := entry.Find(sel.Link).First().Attr("href"); ok {
			rec.DetailURL = resolve(base, href)
		}
	}
	return rec, true
}

// ParseDetail returns the description and social links of a detail page.
// classify maps an anchor to its platform key.
func ParseDetail(body []byte, pageURL string, sel Selectors, classify func(href, alt string) string) (string, model.SocialLinks, error) {
	sel = sel.withDefaults()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil, &failure.ParseError{URL: pageURL, Message: "parse detail html", Cause: err}
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", nil, &failure.ParseError{URL: pageURL, Message: "parse detail url", Cause: err}
	}

	desc := text(doc.Find(sel.DetailDescription).First())

	socials := model.SocialLinks{}
	doc.Find(sel.Socials).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" || strings.HasPrefix(href, "#") {
			return
		}
		href = resolve(base, href)
		alt, _ := a.Find("img").First().Attr("alt")
		socials.Set(classify(href, alt), href)
	})
	return desc, socials, nil
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
