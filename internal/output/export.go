package output

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/tdh8316/rosterscan/internal/failure"
	"github.com/tdh8316/rosterscan/internal/model"
)

var exportHeader = []string{"Name", "Title", "Category", "Username", "Created", "Karma", "About"}

// ReadRecords loads a previous run's output, either a JSON array or JSON
// Lines.
func ReadRecords(r io.Reader) ([]model.Record, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read records")
	}

	if first == '[' {
		var recs []model.Record
		if err := json.NewDecoder(br).Decode(&recs); err != nil {
			return nil, &failure.ParseError{URL: "input", Message: "decode json array", Cause: err}
		}
		return recs, nil
	}

	var recs []model.Record
	dec := json.NewDecoder(br)
	for {
		var rec model.Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, &failure.ParseError{URL: "input", Message: "decode json lines", Cause: err}
		}
		recs = append(recs, rec)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if bytes.IndexByte([]byte(" \t\r\n"), b) < 0 {
			return b, br.UnreadByte()
		}
	}
}

// Export writes one CSV row per matched record, optionally limited to a
// single category (exact match). It returns the number of rows written.
func Export(w io.Writer, recs []model.Record, category string) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, errors.Wrap(err, "write csv header")
	}

	n := 0
	for _, rec := range recs {
		if category != "" && rec.Category != category {
			continue
		}
		if rec.MatchedUsername == nil || *rec.MatchedUsername == "" {
			continue
		}
		var p model.Profile
		if rec.Profile != nil {
			p = *rec.Profile
		}
		row := []string{rec.Name, rec.Title, rec.Category, *rec.MatchedUsername, p.Created, p.Karma, p.About}
		if err := cw.Write(row); err != nil {
			return n, errors.Wrapf(err, "write csv row for %s", rec.Name)
		}
		n++
	}
	cw.Flush()
	return n, errors.Wrap(cw.Error(), "flush csv")
}
