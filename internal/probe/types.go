package probe

import "github.com/tdh8316/rosterscan/internal/model"

type Config struct {
	UserAgent    string
	MaxBodyBytes int64
}

// ValidationFailure reports a site definition whose claimed/unclaimed
// usernames did not classify as expected.
type ValidationFailure struct {
	Site           string
	UsedUsername   string
	UnusedUsername string

	Used   model.ProbeResult
	Unused model.ProbeResult
}
