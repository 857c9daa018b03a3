package statement

import (
	"regexp"
	"strings"
)

var (
	// Dates like 01/02/24, 1-2-2024 or 2024-01-02 at the start of a line.
	datePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)

	// Amounts like 1,234.56, $12.00, -45.10 or (45.10).
	amountPattern = regexp.MustCompile(`\(?-?\$?\d{1,3}(?:,\d{3})*\.\d{2}\)?`)
)

// Parse scans extracted statement text line by line and returns the
// transactions it can recognise. A line counts as a transaction when it
// starts with a date and contains at least one monetary amount; the last
// amount on the line is taken as the transaction amount.
func Parse(text string) []Transaction {
	var txns []Transaction

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		date := datePattern.FindString(line)
		if date == "" {
			continue
		}

		amounts := amountPattern.FindAllString(line, -1)
		if len(amounts) == 0 {
			continue
		}
		amount := amounts[len(amounts)-1]

		// Description is whatever sits between the date and the first amount.
		rest := strings.TrimSpace(strings.TrimPrefix(line, date))
		if idx := amountPattern.FindStringIndex(rest); idx != nil {
			rest = rest[:idx[0]]
		}
		desc := strings.Join(strings.Fields(rest), " ")
		if desc == "" {
			desc = "Transaction"
		}

		txns = append(txns, Transaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
		})
	}

	return txns
}

// ParseTable runs Parse and wraps the result in the default table layout.
func ParseTable(text string) TableData {
	return FromTransactions(Parse(text))
}
