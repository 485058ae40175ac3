package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"io"
	"strings"
)

// extractDocument reads a .docx payload. Preference order:
//
//  1. The first embedded table, provided it holds a data row beyond the
//     header. Cell text is trimmed and funneled through the delimited path so
//     quoting and ragged-row repair behave identically to plain CSV.
//  2. Non-empty paragraph lines: lines containing a known delimiter are
//     parsed as delimited rows; otherwise each line is split on whitespace.
//
// A document with neither tables nor paragraph data is unparseable.
func extractDocument(content []byte, opt Options) (Result, error) {
	tables, paragraphs, err := readDocumentXML(content)
	if err != nil {
		return Result{}, err
	}

	// A header-only table carries no data; fall through to paragraphs.
	if len(tables) > 0 && len(tables[0]) > 1 {
		var b strings.Builder
		for _, row := range tables[0] {
			writeDelimitedLine(&b, row)
		}
		return extractDelimited([]byte(b.String()), opt)
	}

	if len(paragraphs) == 0 {
		return Result{}, &ExtractionError{Reason: "document contains no tables or paragraph data"}
	}

	if linesLookDelimited(paragraphs) {
		return extractParagraphLines(paragraphs, opt)
	}
	return extractWhitespaceLines(paragraphs, opt)
}

// readDocumentXML walks word/document.xml and collects top-level tables
// (w:tbl → w:tr → w:tc, cell text from w:t runs) and paragraph text lines
// outside tables.
func readDocumentXML(content []byte) (tables [][][]string, paragraphs []string, err error) {
	zr, zerr := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if zerr != nil {
		return nil, nil, &ExtractionError{Reason: "not a word-processor archive"}
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, oerr := f.Open()
		if oerr != nil {
			return nil, nil, &ExtractionError{Reason: "unreadable word/document.xml"}
		}
		docXML, oerr = io.ReadAll(rc)
		rc.Close()
		if oerr != nil {
			return nil, nil, &ExtractionError{Reason: "unreadable word/document.xml"}
		}
		break
	}
	if docXML == nil {
		return nil, nil, &ExtractionError{Reason: "archive has no word/document.xml"}
	}

	dec := xml.NewDecoder(bytes.NewReader(docXML))

	var (
		tableDepth int
		curTable   [][]string
		curRow     []string
		inCell     bool
		cellText   strings.Builder
		inPara     bool
		paraText   strings.Builder
		inText     bool
	)

	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return nil, nil, &ExtractionError{Reason: "malformed word/document.xml"}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					curTable = nil
				}
			case "tr":
				if tableDepth == 1 {
					curRow = nil
				}
			case "tc":
				if tableDepth == 1 {
					inCell = true
					cellText.Reset()
				}
			case "p":
				if tableDepth == 0 {
					inPara = true
					paraText.Reset()
				}
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				if tableDepth == 1 && len(curTable) > 0 {
					tables = append(tables, curTable)
				}
				tableDepth--
			case "tr":
				if tableDepth == 1 && curRow != nil {
					curTable = append(curTable, curRow)
				}
			case "tc":
				if tableDepth == 1 && inCell {
					curRow = append(curRow, strings.TrimSpace(cellText.String()))
					inCell = false
				}
			case "p":
				if tableDepth == 0 && inPara {
					if line := strings.TrimSpace(paraText.String()); line != "" {
						paragraphs = append(paragraphs, line)
					}
					inPara = false
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if inCell {
				cellText.Write(t)
			} else if inPara {
				paraText.Write(t)
			}
		}
	}

	return tables, paragraphs, nil
}

func linesLookDelimited(lines []string) bool {
	for _, ln := range lines {
		if strings.ContainsAny(ln, ",;\t|") {
			return true
		}
	}
	return false
}

// extractParagraphLines handles paragraph input that already looks delimited.
// When the first line carries no known header keyword and the caller supplied
// fallback columns, a synthetic header is prepended so every line becomes
// data (line numbers in warnings then refer to the synthetic stream).
func extractParagraphLines(lines []string, opt Options) (Result, error) {
	joined := strings.Join(lines, "\n") + "\n"

	if len(opt.FallbackColumns) > 0 && !firstLineLooksLikeHeader(lines[0], opt.HeaderKeywords) {
		var b strings.Builder
		writeDelimitedLine(&b, opt.FallbackColumns)
		b.WriteString(joined)
		return extractDelimited([]byte(b.String()), opt)
	}
	return extractDelimited([]byte(joined), opt)
}

// extractWhitespaceLines splits plain paragraph lines on whitespace. The
// ragged-row policy matches the delimited path; merged cells are rejoined
// with a single space.
func extractWhitespaceLines(lines []string, opt Options) (Result, error) {
	rows := make([][]string, 0, len(lines))
	for _, ln := range lines {
		rows = append(rows, strings.Fields(ln))
	}

	var (
		res     Result
		headers []string
		data    [][]string
		offset  int // line number of the first data row, 1-based
	)
	res.Delimiter = ','

	if len(opt.FallbackColumns) > 0 && !firstLineLooksLikeHeader(lines[0], opt.HeaderKeywords) {
		headers = append([]string(nil), opt.FallbackColumns...)
		data = rows
		offset = 1
	} else {
		headers = rows[0]
		data = rows[1:]
		offset = 2
	}
	res.Headers = headers
	ncols := len(headers)

	for i, rec := range data {
		lineNo := offset + i
		row := make([]any, ncols)
		switch {
		case len(rec) == ncols:
			for j, v := range rec {
				row[j] = v
			}
		case len(rec) > ncols:
			for j := 0; j < ncols-1; j++ {
				row[j] = rec[j]
			}
			row[ncols-1] = strings.Join(rec[ncols-1:], " ")
			res.Warnings = append(res.Warnings, warnMerged(lineNo, ncols, len(rec)))
		default:
			for j, v := range rec {
				row[j] = v
			}
			for j := len(rec); j < ncols; j++ {
				row[j] = nil
			}
			res.Warnings = append(res.Warnings, warnPadded(lineNo, ncols, len(rec)))
		}
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

// firstLineLooksLikeHeader reports whether any cell of the first line
// contains one of the keywords (case-insensitive, spaces treated as
// underscores). An empty keyword list means "assume header".
func firstLineLooksLikeHeader(line string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = sniffDelimiter(line)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	cells, err := r.Read()
	if err != nil {
		cells = strings.Fields(line)
	}

	for _, cell := range cells {
		norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(cell)), " ", "_")
		for _, kw := range keywords {
			if kw != "" && strings.Contains(norm, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}
