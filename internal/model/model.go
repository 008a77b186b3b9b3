package model

// Confidence describes how a person's target-site account was determined.
type Confidence string

const (
	ConfidenceDirect      Confidence = "direct"
	ConfidencePermutation Confidence = "permutation"
	ConfidenceNone        Confidence = "none"
)

type Enrichment string

const (
	EnrichmentPending    Enrichment = "pending"
	EnrichmentComplete   Enrichment = "complete"
	EnrichmentIncomplete Enrichment = "incomplete"
)

// SocialLinks maps a platform key (twitter, linkedin, website, or the
// target-site key) to a URL. Keys are unique; the first link wins.
type SocialLinks map[string]string

// Set stores url under platform unless the key is already taken.
func (s SocialLinks) Set(platform, url string) bool {
	if platform == "" || url == "" {
		return false
	}
	if _, ok := s[platform]; ok {
		return false
	}
	s[platform] = url
	return true
}

type PersonRecord struct {
	Index       int
	Name        string
	Title       string
	Category    string
	ImageURL    string
	Description string
	DetailURL   string

	Socials    SocialLinks
	Match      Match
	Enrichment Enrichment
	Errors     []string
}

// Key identifies a record across listing pages.
func (p PersonRecord) Key() string {
	if p.DetailURL != "" {
		return p.DetailURL
	}
	return p.Name + "\x00" + p.Title
}

func (p *PersonRecord) AddError(msg string) {
	p.Errors = append(p.Errors, msg)
}

type Candidate struct {
	Username string
	Rank     int
}

type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeExists
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExists:
		return "EXISTS"
	case OutcomeNotFound:
		return "NOT_FOUND"
	case OutcomeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type ProbeResult struct {
	Candidate Candidate
	Outcome   Outcome
	Link      string
	Err       error

	// Body holds the (size capped) response body of an EXISTS probe.
	Body     []byte
	Attempts int
}

type ProbeError struct {
	Username string `json:"username"`
	Rank     int    `json:"rank"`
	Error    string `json:"error"`
}

// Profile is the public detail shown on a matched target-site account.
type Profile struct {
	Created string `json:"created,omitempty"`
	Karma   string `json:"karma,omitempty"`
	About   string `json:"about,omitempty"`
}

type Match struct {
	Username    string
	Link        string
	Confidence  Confidence
	Score       float64
	Profile     *Profile
	ProbeErrors []ProbeError
	Probed      int
}
