// Package tabular reads and writes datasets as CSV or Excel workbooks.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/internal"
	"modelcheck/ports"
)

// Format names a supported file format
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Reader loads CSV and XLSX files into a dataset. A column is numeric when
// every non-empty cell parses as a number; empty numeric cells become NaN.
// Every other column is categorical.
type Reader struct {
	// Sheet selects the worksheet; empty means the first sheet
	Sheet  string
	logger *internal.Logger
}

var _ ports.DatasetReader = (*Reader)(nil)

// NewReader creates a reader logging through logger, or the default logger
func NewReader(logger *internal.Logger) *Reader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Reader{logger: logger.With("tabular")}
}

// FormatOf returns the format implied by a file extension
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", core.NewInputError("unsupported file type %q", filepath.Ext(path))
}

// ReadFile opens path and parses it according to its extension
func (r *Reader) ReadFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", strings.ToUpper(format), err)
	}
	defer f.Close()
	return r.Read(ctx, f, format)
}

// Read parses a CSV or XLSX stream
func (r *Reader) Read(ctx context.Context, src io.Reader, format string) (*dataset.Dataset, error) {
	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(src)
	case FormatXLSX:
		rows, err = r.readXLSX(src)
	default:
		return nil, core.NewInputError("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := processRows(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("%s read in %.2fms (%d columns, %d rows)",
		strings.ToUpper(format), float64(time.Since(start).Nanoseconds())/1e6, data.NumColumns(), data.NumRows())
	return data, nil
}

func readCSV(src io.Reader) ([][]string, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, core.NewInputError("failed to read CSV: %v", err)
	}
	return rows, nil
}

func (r *Reader) readXLSX(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, core.NewInputError("failed to open Excel workbook: %v", err)
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, core.NewInputError("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, core.NewInputError("failed to read sheet %q: %v", sheet, err)
	}
	return rows, nil
}

// processRows turns a header row plus data rows into typed columns. Short
// rows are padded with empty cells; excess cells are an error.
func processRows(rows [][]string) (*dataset.Dataset, error) {
	if len(rows) < 2 {
		return nil, core.NewInputError("file must have a header row and at least one data row")
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		if headers[i] == "" {
			return nil, core.NewInputError("column %d has an empty header", i+1)
		}
	}

	cells := make([][]string, len(headers))
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) > len(headers) {
			return nil, core.NewInputError("row %d has %d cells, header has %d", i+1, len(row), len(headers))
		}
		for j := range headers {
			v := ""
			if j < len(row) {
				v = strings.TrimSpace(row[j])
			}
			cells[j] = append(cells[j], v)
		}
	}

	data := dataset.New()
	for j, name := range headers {
		var err error
		if nums, ok := parseNumeric(cells[j]); ok {
			err = data.AddNumeric(name, nums)
		} else {
			err = data.AddCategorical(name, cells[j])
		}
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func parseNumeric(vals []string) ([]float64, bool) {
	out := make([]float64, len(vals))
	seen := false
	for i, v := range vals {
		if v == "" || strings.EqualFold(v, "na") || strings.EqualFold(v, "nan") {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
		seen = true
	}
	return out, seen
}
