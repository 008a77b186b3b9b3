package directory

// Selectors locate people on listing and detail pages. The defaults fit
// the Y Combinator people directory.
type Selectors struct {
	// Section groups entries under a category heading. Empty treats the
	// whole page as one uncategorized section.
	Section  string `json:"section"`
	Category string `json:"category"`
	Entry    string `json:"entry"`
	Name     string `json:"name"`
	// Title is the first match other than the element holding the name.
	Title       string `json:"title"`
	Image       string `json:"image"`
	Description string `json:"description"`
	// Link is searched inside the entry unless the entry itself is a link.
	Link string `json:"link"`

	DetailDescription string `json:"detail_description"`
	Socials           string `json:"socials"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Section:           "section",
		Category:          "h2.text-2xl",
		Entry:             "ul > a, ul > li",
		Name:              "strong",
		Title:             "strong",
		Image:             "img",
		Description:       "div.prose",
		Link:              "a[href]",
		DetailDescription: "div.prose",
		Socials:           `div[class*="mr-10"] a[href]`,
	}
}

// withDefaults fills empty fields from DefaultSelectors, except Section
// which may be empty on purpose.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Entry, d.Entry)
	fill(&s.Name, d.Name)
	fill(&s.Title, d.Title)
	fill(&s.Image, d.Image)
	fill(&s.Description, d.Description)
	fill(&s.Link, d.Link)
	fill(&s.DetailDescription, d.DetailDescription)
	fill(&s.Socials, d.Socials)
	return s
}
