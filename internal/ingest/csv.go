package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"
)

var setTabReader sync.Once

// useTabReader tells gocsv to read ClinVar's tab-delimited dumps. ClinVar
// free text carries stray quotes, so quoting is lazy.
func useTabReader() {
	setTabReader.Do(func() {
		gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
			r := csv.NewReader(in)
			r.Comma = '\t'
			r.LazyQuotes = true
			r.FieldsPerRecord = -1
			return r
		})
	})
}

// skipPreamble discards the leading "##" comment block of a ClinVar dump,
// leaving the "#"-prefixed header line in place.
func skipPreamble(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		head, err := br.Peek(2)
		if err != nil {
			if err == io.EOF {
				return br, nil
			}
			return nil, err
		}
		if string(head) != "##" {
			return br, nil
		}
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return br, nil
			}
			return nil, err
		}
	}
}

// Stats counts rows seen by a reader.
type Stats struct {
	Read    int `json:"read"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" || s == "na" || s == "NA" {
		return ""
	}
	return s
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(clean(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(clean(s))
	if err != nil {
		return 0
	}
	return v
}

// parseCategories reads SubmitterCategories, which ClinVar writes as a single
// code but older dumps joined with separators.
func parseCategories(s string) []int {
	var out []int
	for _, f := range strings.FieldsFunc(clean(s), func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' '
	}) {
		if v, err := strconv.Atoi(f); err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(clean(s), sep) {
		if part = clean(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDate accepts the "Jan 02, 2006" form ClinVar uses and anything else
// dateparse understands. Unparseable dates are absent.
func parseDate(s string) time.Time {
	s = clean(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse("Jan 02, 2006", s); err == nil {
		return t
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullDate(s string) null.Time {
	t := parseDate(s)
	return null.NewTime(t, !t.IsZero())
}
