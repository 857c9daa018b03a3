package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = `ACME BANK
Statement Period: 01/01/24 - 01/31/24

01/03/24 GROCERY MART PURCHASE 45.67
01/05/24 DIRECT DEPOSIT PAYROLL 2,500.00
01/09/24 COFFEE SHOP $4.25
01/12/24 UTILITY PAYMENT (120.50)
Page 1 of 2
Total fees this period: 0.00
`

func TestParseRecognisesTransactionLines(t *testing.T) {
	txns := Parse(sampleText)
	require.Len(t, txns, 4)

	assert.Equal(t, "01/03/24", txns[0].Date)
	assert.Equal(t, "GROCERY MART PURCHASE", txns[0].Description)
	assert.Equal(t, "45.67", txns[0].Amount)

	assert.Equal(t, "2,500.00", txns[1].Amount)
	assert.Equal(t, "$4.25", txns[2].Amount)
	assert.Equal(t, "(120.50)", txns[3].Amount)
}

func TestParseSkipsNonTransactionLines(t *testing.T) {
	txns := Parse("HELLO WORLD\nno dates here 12.00\n01/03/24 no amount on this line\n")
	assert.Empty(t, txns)
}

func TestParseEmptyText(t *testing.T) {
	assert.Empty(t, Parse(""))
}

func TestParseTableLayout(t *testing.T) {
	table := ParseTable(sampleText)

	assert.Equal(t, DefaultHeaders, table.Headers)
	assert.Equal(t, 4, table.RowCount())
	assert.False(t, table.IsEmpty())
}

func TestPreviewRows(t *testing.T) {
	table := ParseTable(sampleText)

	preview := table.PreviewRows(2)
	require.Len(t, preview, 2)
	assert.Equal(t, "01/03/24", preview[0]["Date"])
	assert.Equal(t, "GROCERY MART PURCHASE", preview[0]["Description"])

	// Limit larger than the row count returns everything.
	assert.Len(t, table.PreviewRows(100), 4)
}

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"45.67", 45.67, true},
		{"$4.25", 4.25, true},
		{"2,500.00", 2500, true},
		{"(120.50)", -120.50, true},
		{"-33.10", -33.10, true},
		{"₩1,000.00", 1000, true},
		{"1,000원", 1000, true},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tc := range cases {
		got, ok := NormalizeAmount(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 0.001, tc.in)
		}
	}
}
