package output

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tdh8316/rosterscan/internal/model"
)

// Progress counts finished records on a spinner; the total is unknown
// while the directory is still being walked.
type Progress struct {
	bar     *progressbar.ProgressBar
	matched int
	done    int
}

func NewProgress(w io.Writer) *Progress {
	return &Progress{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("People: 0 | Matched: 0"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionThrottle(50*time.Millisecond),
			progressbar.OptionSetWidth(40),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (p *Progress) Record(rec model.PersonRecord) {
	p.done++
	if rec.Match.Confidence == model.ConfidenceDirect || rec.Match.Confidence == model.ConfidencePermutation {
		p.matched++
	}
	p.bar.Describe(fmt.Sprintf("People: %d | Matched: %d", p.done, p.matched))
	_ = p.bar.Add(1)
}

func (p *Progress) Finish() {
	_ = p.bar.Finish()
}
