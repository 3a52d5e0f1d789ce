package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"modelcheck/domain/dataset"
	"modelcheck/ports"
)

// CSVWriter writes a dataset as CSV with a header row
type CSVWriter struct{}

// XLSXWriter writes a dataset to a single worksheet
type XLSXWriter struct {
	Sheet string
}

var (
	_ ports.DatasetWriter = CSVWriter{}
	_ ports.DatasetWriter = XLSXWriter{}
)

// NewWriter returns the writer for format
func NewWriter(format string) (ports.DatasetWriter, error) {
	switch format {
	case FormatCSV:
		return CSVWriter{}, nil
	case FormatXLSX:
		return XLSXWriter{}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q", format)
}

func (CSVWriter) Write(ctx context.Context, w io.Writer, data *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	cols := data.Columns()
	if err := cw.Write(data.Names()); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for i := 0; i < data.NumRows(); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, c := range cols {
			record[j] = c.Format(i)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (x XLSXWriter) Write(ctx context.Context, w io.Writer, data *dataset.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if x.Sheet != "" && x.Sheet != sheet {
		if err := f.SetSheetName(sheet, x.Sheet); err != nil {
			return err
		}
		sheet = x.Sheet
	}

	header := make([]interface{}, 0, data.NumColumns())
	for _, n := range data.Names() {
		header = append(header, n)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	cols := data.Columns()
	row := make([]interface{}, len(cols))
	for i := 0; i < data.NumRows(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j, c := range cols {
			row[j] = c.Value(i)
			if v, ok := row[j].(float64); ok && math.IsNaN(v) {
				row[j] = nil
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
