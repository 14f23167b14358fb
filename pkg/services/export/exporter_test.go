package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/store/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

var fixedNow = func() time.Time { return time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC) }

func sampleReport() domain.Report {
	january := domain.MustDateRange(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	return domain.Report{
		Title:       "Financial Report: Overview",
		Subtitle:    "Compared with 2023-12-01..2023-12-31",
		TenantID:    1,
		Period:      domain.NewTimePeriod(january),
		GeneratedAt: fixedNow(),
		Sections: []domain.ReportSection{
			{
				Title:   "Financial Overview",
				Summary: map[string]interface{}{"grade": "B+"},
				Details: []domain.ReportDetail{
					{Name: "Total Revenue", Value: 10000.0, Unit: "USD", Description: "+25.00% vs previous (8000)"},
					{Name: "Collection Rate", Value: 95.5, Unit: "%"},
				},
				Tables: []domain.ReportTable{{
					Title:   "Top Clients by Revenue",
					Columns: []string{"client_name", "revenue"},
					Rows:    [][]interface{}{{"Acme Corp", 6000.0}, {"Globex", 4000.0}},
				}},
			},
			{Title: "Highlights", Notes: []string{"Revenue grew 25.0% over the previous period"}},
		},
	}
}

func TestRenderers(t *testing.T) {
	report := sampleReport()

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewTextRenderer().Render(&buf, &report))
		out := buf.String()
		assert.Contains(t, out, "Financial Report: Overview")
		assert.Contains(t, out, "Period: 2024-01-01 to 2024-01-31 (31 days)")
		assert.Contains(t, out, "=== Financial Overview ===")
		assert.Contains(t, out, "grade: B+")
		assert.Contains(t, out, "$10000.00")
		assert.Contains(t, out, "95.50%")
		assert.Contains(t, out, "Acme Corp")
		assert.Contains(t, out, "- Revenue grew 25.0% over the previous period")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewCSVRenderer().Render(&buf, &report))

		r := csv.NewReader(&buf)
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, []string{"report", "Financial Report: Overview"}, records[0])
		assert.Contains(t, records, []string{"Total Revenue", "10000", "USD", "+25.00% vs previous (8000)"})
		assert.Contains(t, records, []string{"Acme Corp", "6000"})
		assert.Contains(t, records, []string{"note", "Revenue grew 25.0% over the previous period"})
	})

	t.Run("xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewXLSXRenderer().Render(&buf, &report))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, []string{"Overview", "Financial Overview", "Highlights"}, f.GetSheetList())

		title, err := f.GetCellValue("Overview", "A1")
		require.NoError(t, err)
		assert.Equal(t, "Financial Report: Overview", title)

		rows, err := f.GetRows("Financial Overview")
		require.NoError(t, err)
		assert.Contains(t, rows, []string{"Total Revenue", "10000", "USD", "+25.00% vs previous (8000)"})
	})

	t.Run("pdf", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPDFRenderer().Render(&buf, &report))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONRenderer().Render(&buf, &report))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "Financial Report: Overview", decoded["title"])
		assert.Len(t, decoded["sections"], 2)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewYAMLRenderer().Render(&buf, &report))
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "Financial Report: Overview", decoded["title"])
	})
}

func TestExporter_Export(t *testing.T) {
	dir := t.TempDir()
	store, err := files.NewLocalStore(dir, "https://reports.example.com")
	require.NoError(t, err)

	e, err := NewExporter(store, Options{Now: fixedNow})
	require.NoError(t, err)

	file, err := e.Export(context.Background(), sampleReport(), domain.ExportCSV)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.Name, "financial-report-overview-20240201-"))
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))
	assert.Equal(t, "text/csv", file.MimeType)
	assert.Equal(t, "https://reports.example.com/tenant-1/"+file.Name, file.URL)
	assert.EqualValues(t, len(file.Content), file.Size)

	onDisk, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, file.Content, onDisk)

	t.Run("unknown format", func(t *testing.T) {
		_, err := e.Export(context.Background(), sampleReport(), "docx")
		assert.ErrorIs(t, err, domain.ErrUnknownExportFormat)
	})

	t.Run("default format", func(t *testing.T) {
		fallback, err := NewExporter(store, Options{DefaultFormat: domain.ExportJSON, Now: fixedNow})
		require.NoError(t, err)
		file, err := fallback.Export(context.Background(), sampleReport(), "docx")
		require.NoError(t, err)
		assert.Equal(t, "application/json", file.MimeType)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewExporter(nil, Options{})
		assert.Error(t, err)
	})
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "quarterly-business-review-q1-2024", Slug("Quarterly Business Review Q1 2024"))
	assert.Equal(t, "report", Slug("***"))
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "Revenue by Client", sheetName("Revenue by Client", used))
	assert.Equal(t, "Revenue by Client 2", sheetName("Revenue by Client", used))
	long := sheetName("A very long section title that overflows", used)
	assert.Len(t, long, maxSheetName)
	assert.Equal(t, "Cash Flow  Q1", sheetName("Cash Flow: Q1", used))
}
