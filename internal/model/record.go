package model

// Record is the serialized form of one enriched person.
type Record struct {
	Name            string            `json:"name"`
	Title           string            `json:"title"`
	Category        string            `json:"category"`
	Image           *string           `json:"image"`
	Description     *string           `json:"description"`
	Socials         map[string]string `json:"socials"`
	MatchedUsername *string           `json:"matched_username"`
	MatchConfidence Confidence        `json:"match_confidence"`
	MatchScore      float64           `json:"match_score,omitempty"`
	Profile         *Profile          `json:"profile,omitempty"`
	Enrichment      Enrichment        `json:"enrichment"`
	Errors          []string          `json:"errors,omitempty"`
	ProbeErrors     []ProbeError      `json:"probe_errors,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToRecord flattens a PersonRecord. A record whose enrichment did not
// complete reports a null description even if the listing carried one.
func (p PersonRecord) ToRecord() Record {
	r := Record{
		Name:            p.Name,
		Title:           p.Title,
		Category:        p.Category,
		Image:           optional(p.ImageURL),
		Socials:         map[string]string{},
		MatchedUsername: optional(p.Match.Username),
		MatchConfidence: p.Match.Confidence,
		MatchScore:      p.Match.Score,
		Profile:         p.Match.Profile,
		Enrichment:      p.Enrichment,
		Errors:          p.Errors,
		ProbeErrors:     p.Match.ProbeErrors,
	}
	if r.MatchConfidence == "" {
		r.MatchConfidence = ConfidenceNone
	}
	if p.Enrichment == EnrichmentComplete {
		r.Description = optional(p.Description)
	}
	for k, v := range p.Socials {
		r.Socials[k] = v
	}
	return r
}
