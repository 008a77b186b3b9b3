package output

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/fatih/color"

	"github.com/tdh8316/rosterscan/internal/model"
	"github.com/tdh8316/rosterscan/internal/probe"
)

type Printer struct {
	noColor bool
	verbose bool

	logger *log.Logger
}

func NewPrinter(stdout io.Writer, noColor, verbose bool) *Printer {
	return &Printer{
		noColor: noColor,
		verbose: verbose,
		logger:  log.New(stdout, "", 0),
	}
}

func (p *Printer) mark(sym string, paint func(string, ...any) string) string {
	if p.noColor {
		return sym
	}
	return paint(sym)
}

func (p *Printer) paint(s string, paint func(string, ...any) string) string {
	if p.noColor {
		return s
	}
	return paint(s)
}

// Person prints one enriched record. Records without a match are shown
// only in verbose mode, like misses in a username scan.
func (p *Printer) Person(rec model.PersonRecord) {
	m := rec.Match
	switch m.Confidence {
	case model.ConfidenceDirect, model.ConfidencePermutation:
		p.logger.Printf("[%s] %s: %s (%s) %s",
			p.mark("+", color.HiGreenString),
			p.paint(rec.Name, color.HiWhiteString),
			m.Username,
			m.Confidence,
			m.Link,
		)
	default:
		if p.verbose {
			p.logger.Printf("[%s] %s: %s",
				p.mark("-", color.HiRedString),
				rec.Name,
				p.paint("No match", color.HiYellowString),
			)
		}
	}

	if !p.verbose {
		return
	}
	for _, pe := range m.ProbeErrors {
		p.logger.Printf("    [%s] %s: %s", p.mark("!", color.HiRedString), pe.Username, p.paint(pe.Error, color.HiRedString))
	}
	for _, e := range rec.Errors {
		p.logger.Printf("    [%s] %s: %s", p.mark("!", color.HiRedString), p.paint("ERROR", color.HiMagentaString), e)
	}
}

// Candidates prints the ranked usernames generated for name.
func (p *Printer) Candidates(name string, cands []model.Candidate) {
	p.logger.Printf("\nCandidates for %s:", p.paint(name, color.HiGreenString))
	if len(cands) == 0 {
		p.logger.Printf("[%s] %s", p.mark("-", color.HiRedString), p.paint("none", color.HiYellowString))
		return
	}
	for _, c := range cands {
		p.logger.Printf("%3d  %s", c.Rank, c.Username)
	}
}

func (p *Printer) Info(format string, args ...any) {
	p.logger.Printf("[%s] %s", p.mark("i", color.HiBlueString), fmt.Sprintf(format, args...))
}

func (p *Printer) Warn(format string, args ...any) {
	p.logger.Printf("[%s] %s", p.mark("!", color.HiRedString), p.paint(fmt.Sprintf(format, args...), color.HiYellowString))
}

// Validation prints the outcome of checking the target-site definition.
func (p *Printer) Validation(site string, f *probe.ValidationFailure) {
	if f == nil {
		p.logger.Printf("[%s] %s: %s", p.mark("+", color.HiGreenString), site, p.paint("working", color.GreenString))
		return
	}
	if f.Used.Err != nil || f.Unused.Err != nil {
		var parts []string
		for _, r := range []model.ProbeResult{f.Used, f.Unused} {
			if r.Err != nil {
				parts = append(parts, "["+r.Err.Error()+"]")
			}
		}
		p.logger.Printf("[-] %s: %s %s", site, p.paint("Failed with error", color.YellowString), strings.Join(parts, ""))
		return
	}
	p.logger.Printf("[-] %s: %s (%s: expected EXISTS, result is %s | %s: expected NOT_FOUND, result is %s)",
		site,
		p.paint("Not working", color.RedString),
		f.UsedUsername, f.Used.Outcome,
		f.UnusedUsername, f.Unused.Outcome,
	)
}
