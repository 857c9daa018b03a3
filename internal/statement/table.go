// Package statement holds the structured representation of a parsed bank
// statement and the local (non-AI) text structurer.
package statement

import (
	"strconv"
	"strings"
)

// Processing types recorded against each conversion.
const (
	ProcessingAI    = "ai"
	ProcessingBasic = "basic"
)

// Transaction is a single statement line item.
type Transaction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// TableData is the structured output of a conversion, ready for rendering.
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// DefaultHeaders is the column layout produced by both structurers.
var DefaultHeaders = []string{"Date", "Description", "Amount"}

// FromTransactions builds a TableData with the default column layout.
func FromTransactions(txns []Transaction) TableData {
	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		rows = append(rows, []string{txn.Date, txn.Description, txn.Amount})
	}
	return TableData{Headers: DefaultHeaders, Rows: rows}
}

// RowCount returns the number of data rows.
func (t TableData) RowCount() int {
	return len(t.Rows)
}

// IsEmpty reports whether the table holds no data rows.
func (t TableData) IsEmpty() bool {
	return len(t.Rows) == 0
}

// Records returns every data row as a header-keyed map, one entry per row.
func (t TableData) Records() []map[string]string {
	return t.PreviewRows(len(t.Rows))
}

// PreviewRows returns up to limit rows as header-keyed maps for API preview
// responses.
func (t TableData) PreviewRows(limit int) []map[string]string {
	if limit > len(t.Rows) {
		limit = len(t.Rows)
	}

	preview := make([]map[string]string, 0, limit)
	for _, row := range t.Rows[:limit] {
		m := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		preview = append(preview, m)
	}
	return preview
}

// NormalizeAmount strips currency notation from an amount string and returns
// its numeric value. Parenthesised amounts are treated as negative. The
// second return is false when the string holds no parseable number.
func NormalizeAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	replacer := strings.NewReplacer(
		"$", "",
		"₩", "",
		"원", "",
		",", "",
		" ", "",
	)
	s = replacer.Replace(s)

	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	if negative {
		val = -val
	}
	return val, true
}
