// Package output renders enriched records: files in JSON Lines, JSON or
// CSV, and the colored console view.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tdh8316/rosterscan/internal/failure"
	"github.com/tdh8316/rosterscan/internal/model"
)

type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSONL, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatJSONL, nil
	default:
		return "", &failure.ConfigError{Field: "format", Message: fmt.Sprintf("unknown output format %q", s)}
	}
}

// Write serializes recs to w, one record per person, in listing order.
func Write(w io.Writer, format Format, recs []model.PersonRecord) error {
	switch format {
	case FormatJSONL, "":
		enc := json.NewEncoder(w)
		for _, r := range recs {
			if err := enc.Encode(r.ToRecord()); err != nil {
				return errors.Wrapf(err, "encode %s", r.Name)
			}
		}
		return nil

	case FormatJSON:
		out := make([]model.Record, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.ToRecord())
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(out), "encode records")

	case FormatCSV:
		return writeCSV(w, recs)
	}
	return errors.Errorf("unknown output format %q", format)
}

// WriteFile writes recs to path through a temp file in the same directory.
func WriteFile(path string, format Format, recs []model.PersonRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".rosterscan-*")
	if err != nil {
		return errors.Wrap(err, "create temp output")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Write(tmp, format, recs); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp output")
	}
	return errors.Wrapf(os.Rename(tmpName, path), "write %s", path)
}

var csvHeader = []string{
	"name", "title", "category", "image", "description", "socials",
	"matched_username", "match_confidence", "match_score", "enrichment", "errors",
}

func writeCSV(w io.Writer, recs []model.PersonRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range recs {
		rec := r.ToRecord()
		score := ""
		if rec.MatchScore > 0 {
			score = strconv.FormatFloat(rec.MatchScore, 'f', 3, 64)
		}
		row := []string{
			rec.Name,
			rec.Title,
			rec.Category,
			deref(rec.Image),
			deref(rec.Description),
			joinSocials(rec.Socials),
			deref(rec.MatchedUsername),
			string(rec.MatchConfidence),
			score,
			string(rec.Enrichment),
			strings.Join(rec.Errors, "; "),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write csv row for %s", rec.Name)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinSocials(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, " ")
}
