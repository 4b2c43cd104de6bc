package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"domainfinder/internal/domain"
)

func sampleReport() domain.Report {
	rev := int64(144_000_000)
	emp := 120
	return domain.NewReport([]domain.Result{
		{
			OrganizationNumber: "900000000",
			BusinessName:       "Nordic Kraft AS",
			UniqueDomains:      []string{"nordic-kraft.no", "nordickraft.no"},
			EstimatedRevenue:   &rev,
			Employees:          &emp,
			SizeCategory:       "large",
			Industry:           "utilities",
			Municipality:       "OSLO",
			Founded:            "1999-04-01",
			NACECode:           "35.111",
		},
		{
			OrganizationNumber: "900000001",
			BusinessName:       "Bølgen & Moi AS",
			UniqueDomains:      []string{},
			SizeCategory:       "micro",
			Industry:           "unknown",
		},
	}, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "out.csv", Path("out.json", FormatCSV))
	assert.Equal(t, "dir/out.xlsx", Path("dir/out.json", FormatXLSX))
	assert.Equal(t, "out.json", Path("out.json", FormatJSON))
	assert.Equal(t, "report.txt", Path("report.txt", FormatCSV))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleReport()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	meta := doc["metadata"].(map[string]any)
	assert.Equal(t, "2024-05-01T12:00:00Z", meta["generated_at"])
	assert.Equal(t, float64(2), meta["total_companies"])
	assert.Equal(t, float64(2), meta["total_domains"])

	companies := doc["companies"].([]any)
	second := companies[1].(map[string]any)
	assert.Nil(t, second["estimated_revenue"])
	assert.Nil(t, second["employees"])
	assert.Equal(t, []any{}, second["unique_domains"])

	assert.Contains(t, buf.String(), "Bølgen & Moi AS", "non-ASCII and & are written as is")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleReport()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header(), rows[0])
	assert.Equal(t, "nordic-kraft.no; nordickraft.no", rows[1][2])
	assert.Equal(t, "2", rows[1][3])
	assert.Equal(t, "144000000", rows[1][4])
	assert.Equal(t, "0", rows[2][3])
	assert.Equal(t, "", rows[2][4])
	assert.Equal(t, "", rows[2][5])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header(), rows[0])
	assert.Equal(t, "Nordic Kraft AS", rows[1][1])
	assert.Equal(t, "144000000", rows[1][4])
	assert.Equal(t, "120", rows[1][5])
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("xml"), sampleReport())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
