// internal/output/excel.go
package output

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// DefaultExcelMaxSheetRows is the Excel row limit per sheet.
const DefaultExcelMaxSheetRows = 1048576

// ExcelConfig configuration for Excel output
type ExcelConfig struct {
	FilePath     string
	SheetName    string
	AutoFilter   bool
	FreezePane   bool
	MaxSheetRows int
}

// ExcelWriter writes listings into a styled worksheet. Rows beyond the
// sheet limit continue on a new sheet.
type ExcelWriter struct {
	file      *excelize.File
	config    ExcelConfig
	sheetName string
	row       int
	styles    struct{ header, date, number, decimal int }
}

// NewExcelWriter creates a workbook; nothing touches disk until Close.
func NewExcelWriter(config ExcelConfig) (*ExcelWriter, error) {
	if config.FilePath == "" {
		return nil, utils.NewError(utils.ErrCodeOutputFailed, "Excel file path is required").Build()
	}
	if config.SheetName == "" {
		config.SheetName = "매물"
	}
	if config.MaxSheetRows == 0 {
		config.MaxSheetRows = DefaultExcelMaxSheetRows
	}

	file := excelize.NewFile()
	if def := file.GetSheetName(0); def != config.SheetName {
		if err := file.SetSheetName(def, config.SheetName); err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeOutputFailed, "rename sheet")
		}
	}
	w := &ExcelWriter{file: file, config: config, sheetName: config.SheetName}
	if err := w.createStyles(); err != nil {
		file.Close()
		return nil, utils.WrapError(err, utils.ErrCodeOutputFailed, "create styles")
	}
	if err := w.writeHeaders(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *ExcelWriter) createStyles() error {
	var err error
	w.styles.header, err = w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	if w.styles.date, err = w.file.NewStyle(&excelize.Style{NumFmt: 22}); err != nil {
		return err
	}
	if w.styles.number, err = w.file.NewStyle(&excelize.Style{NumFmt: 3}); err != nil {
		return err
	}
	w.styles.decimal, err = w.file.NewStyle(&excelize.Style{NumFmt: 2})
	return err
}

func (w *ExcelWriter) writeHeaders() error {
	headers := Headers()
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := w.file.SetSheetRow(w.sheetName, "A1", &row); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "write headers")
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := w.file.SetCellStyle(w.sheetName, "A1", last+"1", w.styles.header); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "style headers")
	}
	for i, c := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := w.file.SetColWidth(w.sheetName, name, name, c.width); err != nil {
			return utils.WrapError(err, utils.ErrCodeOutputFailed, "set column width")
		}
	}
	w.row = 2
	return nil
}

// Write appends listings.
func (w *ExcelWriter) Write(listings []types.Listing) error {
	for _, l := range listings {
		if w.row > w.config.MaxSheetRows {
			if err := w.finishSheet(); err != nil {
				return err
			}
			if err := w.createNewSheet(); err != nil {
				return err
			}
		}
		if err := w.writeListing(l); err != nil {
			return err
		}
	}
	return nil
}

func (w *ExcelWriter) writeListing(l types.Listing) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		v := c.value(l)
		if t, ok := v.(time.Time); ok {
			if t.IsZero() {
				v = ""
			} else {
				v = localTime(t)
			}
		}
		row[i] = v
	}
	cell, _ := excelize.CoordinatesToCellName(1, w.row)
	if err := w.file.SetSheetRow(w.sheetName, cell, &row); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "write row").WithContext("row", w.row)
	}
	for i, v := range row {
		style := 0
		switch v.(type) {
		case time.Time:
			style = w.styles.date
		case int, int64:
			style = w.styles.number
		case float64:
			style = w.styles.decimal
		}
		if style == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		if err := w.file.SetCellStyle(w.sheetName, cell, cell, style); err != nil {
			return utils.WrapError(err, utils.ErrCodeOutputFailed, "style cell")
		}
	}
	w.row++
	return nil
}

// finishSheet applies the filter and frozen header row.
func (w *ExcelWriter) finishSheet() error {
	last, _ := excelize.ColumnNumberToName(len(columns))
	if w.config.AutoFilter && w.row > 2 {
		rng := fmt.Sprintf("A1:%s%d", last, w.row-1)
		if err := w.file.AutoFilter(w.sheetName, rng, nil); err != nil {
			return utils.WrapError(err, utils.ErrCodeOutputFailed, "auto filter")
		}
	}
	if w.config.FreezePane {
		if err := w.file.SetPanes(w.sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return utils.WrapError(err, utils.ErrCodeOutputFailed, "freeze pane")
		}
	}
	return nil
}

// createNewSheet creates a new sheet when row limit is reached
func (w *ExcelWriter) createNewSheet() error {
	name := fmt.Sprintf("%s_%d", w.config.SheetName, len(w.file.GetSheetList())+1)
	index, err := w.file.NewSheet(name)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "create sheet")
	}
	w.file.SetActiveSheet(index)
	w.sheetName = name
	return w.writeHeaders()
}

// Close formats the current sheet and saves the workbook.
func (w *ExcelWriter) Close() error {
	defer w.file.Close()
	if err := w.finishSheet(); err != nil {
		return err
	}
	w.file.SetActiveSheet(0)
	if err := w.file.SaveAs(w.config.FilePath); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "save workbook").WithContext("path", w.config.FilePath)
	}
	return nil
}
