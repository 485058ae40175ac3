// Package extract turns uploaded tabular files into an ordered header row and
// data rows, tolerating the usual mess in real uploads: unknown delimiters,
// ragged rows, stray encodings, and tables buried inside word-processor
// documents or HTML exports.
//
// Design constraints:
//   - Extraction is best-effort and deterministic. Repairable problems
//     (ragged rows, encoding fallbacks) become warnings, never errors.
//   - A file is rejected only when no tabular content can be found at all.
//   - No shared mutable state: warnings travel with the Result.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies the declared input format.
type Kind int

const (
	// KindDelimited is plain delimited text (CSV and friends).
	KindDelimited Kind = iota
	// KindDocument is a word-processor document (.docx) that may carry an
	// embedded table or delimited paragraph lines.
	KindDocument
	// KindHTML is an HTML export containing a <table>.
	KindHTML
)

func (k Kind) String() string {
	switch k {
	case KindDelimited:
		return "delimited-text"
	case KindDocument:
		return "document-table"
	case KindHTML:
		return "html-table"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DetectKind guesses the input kind from a file name. Unknown extensions are
// treated as delimited text, matching the tolerant default of the pipeline.
func DetectKind(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return KindDocument
	case ".html", ".htm":
		return KindHTML
	default:
		return KindDelimited
	}
}

// Result is the extracted table. Rows are aligned to Headers; each cell is a
// string or nil (nil marks fields synthesized by ragged-row padding).
type Result struct {
	Headers   []string
	Rows      [][]any
	Delimiter rune
	Warnings  []string
}

// Options tune extraction for a known entity. Both fields are optional.
type Options struct {
	// HeaderKeywords drive header detection for headerless paragraph input:
	// a first row containing none of these tokens is treated as data.
	HeaderKeywords []string

	// FallbackColumns name the positional columns assumed when paragraph
	// input has no header row.
	FallbackColumns []string
}

// ExtractionError reports input from which no tabular content could be
// recovered. It is fatal for the batch: no rows are produced.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "extract: " + e.Reason
}

// Extract parses content according to kind. Content must be fully in memory;
// streaming is the caller's concern.
func Extract(content []byte, kind Kind, opt Options) (Result, error) {
	switch kind {
	case KindDelimited:
		return extractDelimited(content, opt)
	case KindDocument:
		return extractDocument(content, opt)
	case KindHTML:
		return extractHTML(content, opt)
	default:
		return Result{}, &ExtractionError{Reason: fmt.Sprintf("unsupported kind %v", kind)}
	}
}
