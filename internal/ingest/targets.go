package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/csimplestring/go-csv/detector"

	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/pkg/hgvs"
)

// ParseError reports a malformed line of a target list.
type ParseError struct {
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// targetColumns maps accepted header spellings to canonical columns.
var targetColumns = map[string]string{
	"gene":                  "gene",
	"genesymbol":            "gene",
	"gene_symbol":           "gene",
	"name":                  "name",
	"hgvs":                  "name",
	"hgvs_c":                "hgvs_c",
	"c":                     "hgvs_c",
	"nucleotide_change":     "hgvs_c",
	"hgvs_p":                "hgvs_p",
	"p":                     "hgvs_p",
	"protein_change":        "hgvs_p",
	"transcript":            "transcript",
	"transcript_id":         "transcript",
	"consequence":           "consequence",
	"molecular_consequence": "consequence",
	"variation_id":          "variation_id",
	"variationid":           "variation_id",
	"significance":          "significance",
	"clinical_significance": "significance",
	"clinicalsignificance":  "significance",
}

// DetermineDelimiter returns the most likely field delimiter of a CSV-like
// sample. Common delimiters are preferred when the detector offers several;
// a sample with none falls back to the header line, then to tab.
func DetermineDelimiter(sample []byte) rune {
	sample = bytes.TrimSpace(sample)
	d := detector.New()
	delimiters := d.DetectDelimiter(bytes.NewReader(sample), '"')

	for _, want := range []string{"\t", ",", ";", "|"} {
		if slices.Contains(delimiters, want) {
			return rune(want[0])
		}
	}
	if len(delimiters) > 0 && delimiters[0] != "" {
		return rune(delimiters[0][0])
	}

	header, _, _ := bytes.Cut(sample, []byte("\n"))
	for _, c := range []byte{'\t', ',', ';'} {
		if bytes.IndexByte(header, c) >= 0 {
			return rune(c)
		}
	}
	return '\t'
}

// ReadTargets reads a user target list from a TSV or CSV file, plain or
// compressed. Rows without a gene column use defaultGene.
func ReadTargets(path, defaultGene string) ([]*domain.VariantRecord, error) {
	in, _, err := OpenMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return ReadTargetsFrom(in, defaultGene)
}

// ReadTargetsFrom reads a target list with a header row naming at least one
// of name, hgvs_c or hgvs_p.
func ReadTargetsFrom(in io.Reader, defaultGene string) ([]*domain.VariantRecord, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Line: 1, Message: "empty target list"}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = DetermineDelimiter(data)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, &ParseError{Line: 1, Message: "reading header", Err: err}
	}
	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "#")))
		if canon, ok := targetColumns[key]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	_, hasName := cols["name"]
	_, hasC := cols["hgvs_c"]
	_, hasP := cols["hgvs_p"]
	if !hasName && !hasC && !hasP {
		return nil, &ParseError{Line: 1, Message: "header needs a name, hgvs_c or hgvs_p column"}
	}
	if _, ok := cols["gene"]; !ok && strings.TrimSpace(defaultGene) == "" {
		return nil, &ParseError{Line: 1, Message: "no gene column and no default gene", Err: domain.ErrMissingGene}
	}

	var out []*domain.VariantRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Line: line, Message: "reading row", Err: err}
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return clean(row[i])
		}

		raw := domain.RawVariant{
			VariationID:      parseInt64(field("variation_id")),
			GeneSymbol:       field("gene"),
			Name:             field("name"),
			TranscriptID:     field("transcript"),
			NucleotideChange: field("hgvs_c"),
			ProteinChange:    field("hgvs_p"),
			ConsequenceLabel: field("consequence"),
			SignificanceText: field("significance"),
		}
		if raw.Name == "" && raw.NucleotideChange == "" && raw.ProteinChange == "" {
			continue
		}
		if raw.GeneSymbol == "" {
			raw.GeneSymbol = strings.TrimSpace(defaultGene)
		}

		rec, err := hgvs.NewVariantRecord(raw)
		if err != nil {
			return nil, &ParseError{Line: line, Message: "invalid target", Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// TargetFromName builds a single target from a ClinVar-style name such as
// "NM_007294.4(BRCA1):c.5266dup (p.Gln1756fs)".
func TargetFromName(gene, name string) (*domain.VariantRecord, error) {
	parts := hgvs.ParseName(name)
	if gene == "" {
		gene = parts.Gene
	}
	return hgvs.NewVariantRecord(domain.RawVariant{GeneSymbol: gene, Name: name})
}
