package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// sniffWindow bounds how much of the input is inspected for delimiter
// detection.
const sniffWindow = 8192

// delimiterCandidates are tested in order; the order is also the tie-breaker.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// sniffDelimiter picks the candidate that yields the most consistent
// multi-field split across the sampled lines. Ambiguous input falls back to
// comma.
func sniffDelimiter(text string) rune {
	sample := text
	if len(sample) > sniffWindow {
		sample = sample[:sniffWindow]
		// Cut at the last newline so a truncated trailing line cannot skew
		// the field counts.
		if i := strings.LastIndexByte(sample, '\n'); i > 0 {
			sample = sample[:i]
		}
	}

	best := ','
	bestScore := 0
	for _, cand := range delimiterCandidates {
		score := consistencyScore(sample, cand)
		if score > bestScore {
			best = cand
			bestScore = score
		}
	}
	return best
}

// consistencyScore counts how many sampled lines split into the modal field
// count for the candidate delimiter. Single-field splits score zero: a
// delimiter that never appears is no delimiter.
func consistencyScore(sample string, delim rune) int {
	r := csv.NewReader(strings.NewReader(sample))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	counts := make(map[int]int)
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if len(rec) < 2 {
			continue
		}
		counts[len(rec)]++
	}

	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	return best
}

func extractDelimited(content []byte, _ Options) (Result, error) {
	text, encWarn := decodeText(content)

	var res Result
	if encWarn != "" {
		res.Warnings = append(res.Warnings, encWarn)
	}

	delim := sniffDelimiter(text)
	res.Delimiter = delim

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	line := 0
	readRec := func() ([]string, error) {
		line++
		return r.Read()
	}

	hdr, err := readRec()
	if err != nil {
		return Result{}, &ExtractionError{Reason: "empty or unreadable input"}
	}
	headers := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		headers[i] = h
	}
	res.Headers = headers
	ncols := len(headers)

	for {
		rec, err := readRec()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		// Blank rows (a single empty field) carry no data; skip silently.
		if len(rec) == 1 && rec[0] == "" {
			continue
		}

		row := make([]any, ncols)
		switch {
		case len(rec) == ncols:
			for i, v := range rec {
				row[i] = strings.TrimSpace(v)
			}
		case len(rec) > ncols:
			for i := 0; i < ncols-1; i++ {
				row[i] = strings.TrimSpace(rec[i])
			}
			merged := strings.Join(rec[ncols-1:], string(delim))
			row[ncols-1] = strings.TrimSpace(merged)
			res.Warnings = append(res.Warnings, warnMerged(line, ncols, len(rec)))
		default:
			for i, v := range rec {
				row[i] = strings.TrimSpace(v)
			}
			for i := len(rec); i < ncols; i++ {
				row[i] = nil
			}
			res.Warnings = append(res.Warnings, warnPadded(line, ncols, len(rec)))
		}
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

func warnMerged(line, expected, saw int) string {
	return fmt.Sprintf("line %d: merged extra fields into last column (expected %d fields, saw %d)",
		line, expected, saw)
}

func warnPadded(line, expected, saw int) string {
	return fmt.Sprintf("line %d: padded missing fields (expected %d fields, saw %d)",
		line, expected, saw)
}

// writeDelimitedLine re-serializes cells into one CSV line, quoting any cell
// containing the delimiter, a quote, or a line break. Used by the document
// and HTML extractors to funnel their tables through the delimited path.
func writeDelimitedLine(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.ContainsAny(cell, ",\"\n\r") {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			b.WriteByte('"')
		} else {
			b.WriteString(cell)
		}
	}
	b.WriteByte('\n')
}
