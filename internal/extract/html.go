package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractHTML pulls the first <table> out of an HTML export (spreadsheets and
// reporting tools commonly emit these). The table is re-serialized and
// funneled through the delimited path so quoting and ragged-row repair stay
// in one place.
func extractHTML(content []byte, opt Options) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return Result{}, &ExtractionError{Reason: "unparseable html"}
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return Result{}, &ExtractionError{Reason: "html contains no table"}
	}

	var b strings.Builder
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
		})
		if len(cells) > 0 {
			writeDelimitedLine(&b, cells)
		}
	})

	if b.Len() == 0 {
		return Result{}, &ExtractionError{Reason: "html table has no rows"}
	}
	return extractDelimited([]byte(b.String()), opt)
}
