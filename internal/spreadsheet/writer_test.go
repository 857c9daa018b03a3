package spreadsheet

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() statement.TableData {
	return statement.TableData{
		Headers: []string{"Date", "Description", "Amount"},
		Rows: [][]string{
			{"01/03/24", "GROCERY MART", "45.67"},
			{"01/05/24", "PAYROLL", "2,500.00"},
			{"01/12/24", "UTILITY", "(120.50)"},
		},
	}
}

func TestGenerateWorkbook(t *testing.T) {
	w := NewWriter(observability.DefaultLogger())
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, w.Generate(sampleTable(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Bank Statement", "Summary"}, f.GetSheetList())

	got, err := f.GetCellValue("Bank Statement", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Date", got)

	got, err = f.GetCellValue("Bank Statement", "B2")
	require.NoError(t, err)
	assert.Equal(t, "GROCERY MART", got)
}

func TestGenerateWritesAmountsAsNumbers(t *testing.T) {
	w := NewWriter(observability.DefaultLogger())
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, w.Generate(sampleTable(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("Bank Statement", "C3")
	require.NoError(t, err)
	assert.Equal(t, "2500", got)

	got, err = f.GetCellValue("Bank Statement", "C4")
	require.NoError(t, err)
	assert.Equal(t, "-120.5", got)
}

func TestGenerateSummarySheet(t *testing.T) {
	w := NewWriter(observability.DefaultLogger())
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, w.Generate(sampleTable(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	label, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Total Records", label)

	count, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "3", count)
}

func TestGenerateEmptyTable(t *testing.T) {
	w := NewWriter(observability.DefaultLogger())
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	table := statement.TableData{Headers: statement.DefaultHeaders}
	require.NoError(t, w.Generate(table, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	count, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "0", count)
}
