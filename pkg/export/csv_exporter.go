package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter writes a Dataset as a header line followed by one record per row.
// The dataset title is not part of the output.
type CSVExporter struct {
	// Comma overrides the field delimiter; zero means ','.
	Comma rune
	// BOM prefixes the output with a UTF-8 byte order mark so spreadsheet apps detect the encoding.
	BOM bool
}

// NewCSVExporter returns an exporter producing plain comma separated output.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render returns the encoded dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the encoded dataset to w.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return errors.New("csv export needs at least one column")
	}
	if e.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if e.Comma != 0 {
		cw.Comma = e.Comma
	}
	if err := cw.Write(data.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range data.Rows {
		record := data.record(row)
		for j, cell := range record {
			record[j] = escapeFormula(cell)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// escapeFormula stops spreadsheet apps from evaluating user supplied cells as formulas.
func escapeFormula(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
