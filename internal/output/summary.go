package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Summary struct {
	Records     int
	Pages       int
	Gaps        []int
	Direct      int
	Permutation int
	None        int
	Complete    int
	Incomplete  int
	ProbeErrors int
	Elapsed     time.Duration
	TimedOut    bool
	Output      string
}

// RenderSummary draws the end-of-run table.
func RenderSummary(w io.Writer, s Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Stage", "Count"})

	t.AppendRow(table.Row{"Listing pages", s.Pages})
	if len(s.Gaps) > 0 {
		t.AppendRow(table.Row{"Skipped pages", fmt.Sprint(s.Gaps)})
	}
	t.AppendRow(table.Row{"People", s.Records})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Direct link", s.Direct})
	t.AppendRow(table.Row{"Permutation match", s.Permutation})
	t.AppendRow(table.Row{"No match", s.None})
	t.AppendRow(table.Row{"Probe errors", s.ProbeErrors})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Enriched", s.Complete})
	t.AppendRow(table.Row{"Incomplete", s.Incomplete})

	t.AppendSeparator()

	elapsed := s.Elapsed.Round(time.Millisecond).String()
	if s.TimedOut {
		elapsed += " (timed out)"
	}
	t.AppendRow(table.Row{"Elapsed", elapsed})
	if s.Output != "" {
		t.AppendRow(table.Row{"Output", s.Output})
	}
	t.Render()
}
