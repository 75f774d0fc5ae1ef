package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// TimestampLayout is the layout used when timestamps are written as text
const TimestampLayout = "2006-01-02 15:04:05"

// ReadCSV decodes a CSV stream whose first record is the header. Empty cells
// become nil; everything else is kept as the raw string.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %v", err)
	}

	ds := New(headers...)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %v", line, err)
		}
		ds.appendText(record)
	}
	return ds, nil
}

// ReadCSVFile opens path and decodes it with ReadCSV
func ReadCSVFile(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return ds, nil
}

// ReadXLSXFile decodes one sheet of a workbook; an empty sheet name selects
// the first sheet.
func ReadXLSXFile(path, sheet string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %v", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %v", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	ds := New(rows[0]...)
	for _, record := range rows[1:] {
		ds.appendText(record)
	}
	return ds, nil
}

func (d *Dataset) appendText(record []string) {
	row := make(Row, len(d.Columns))
	for i, col := range d.Columns {
		if i < len(record) && record[i] != "" {
			row[col] = record[i]
		} else {
			row[col] = nil
		}
	}
	d.Rows = append(d.Rows, row)
}

// WriteCSV encodes the dataset with a header line
func (d *Dataset) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(d.Columns); err != nil {
		return err
	}

	record := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i, col := range d.Columns {
			record[i] = FormatCell(row[col])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// FormatCell renders a cell value as CSV text
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(TimestampLayout)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Records returns the rows as plain maps for JSON encoding, with timestamps
// rendered in TimestampLayout.
func (d *Dataset) Records() []map[string]any {
	out := make([]map[string]any, 0, len(d.Rows))
	for _, row := range d.Rows {
		rec := make(map[string]any, len(row))
		for k, v := range row {
			if t, ok := v.(time.Time); ok {
				rec[k] = t.Format(TimestampLayout)
				continue
			}
			rec[k] = v
		}
		out = append(out, rec)
	}
	return out
}
