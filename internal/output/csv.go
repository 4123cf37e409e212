// internal/output/csv.go
package output

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// utf8BOM lets spreadsheet programs detect UTF-8 Hangul.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes listings as CSV with a header row.
type CSVWriter struct {
	out     io.Writer
	closer  io.Closer
	writer  *csv.Writer
	started bool
	bom     bool
}

// NewCSVWriter writes to w. The BOM is written before the header when bom is set.
func NewCSVWriter(w io.Writer, bom bool) *CSVWriter {
	return &CSVWriter{out: w, writer: csv.NewWriter(w), bom: bom}
}

// NewCSVFileWriter creates filename, with a BOM.
func NewCSVFileWriter(filename string) (*CSVWriter, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeOutputFailed, "create output directory")
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeOutputFailed, "create CSV file").WithContext("path", filename)
	}
	w := NewCSVWriter(f, true)
	w.closer = f
	return w, nil
}

// Write appends listings, writing the header first.
func (w *CSVWriter) Write(listings []types.Listing) error {
	if !w.started {
		if w.bom {
			if _, err := w.out.Write(utf8BOM); err != nil {
				return utils.WrapError(err, utils.ErrCodeOutputFailed, "write BOM")
			}
		}
		if err := w.writer.Write(Headers()); err != nil {
			return utils.WrapError(err, utils.ErrCodeOutputFailed, "write CSV header")
		}
		w.started = true
	}
	record := make([]string, len(columns))
	for _, l := range listings {
		for i, c := range columns {
			record[i] = formatValue(c.value(l))
		}
		if err := w.writer.Write(record); err != nil {
			return utils.WrapError(err, utils.ErrCodeOutputFailed, "write CSV row").WithContext("id", l.ID)
		}
	}
	return nil
}

// Close flushes and closes the underlying file, if any.
func (w *CSVWriter) Close() error {
	if !w.started {
		if err := w.Write(nil); err != nil {
			return err
		}
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "flush CSV")
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return localTime(x).Format(timeLayout)
	default:
		return ""
	}
}
