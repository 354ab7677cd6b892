package reporting

import (
	"strconv"

	"github.com/xuri/excelize/v2"

	opterrors "github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/errors"
)

const traceSheet = "Search Trace"

// excelStyles holds the cell styles of the trace workbook
type excelStyles struct {
	header   int
	currency int
	base     int
}

// SaveXLSX writes the trace as an Excel workbook at <base>-Report-<N>.xlsx
func (t *SearchTrace) SaveXLSX(strategyPath string) (string, error) {
	path, err := NextReportPath(strategyPath, ".xlsx")
	if err != nil {
		return "", opterrors.NewReportError("reporting", "save_xlsx", err)
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return "", opterrors.NewReportError("reporting", "save_xlsx", err).WithContext("path", path)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), traceSheet); err != nil {
		return "", opterrors.NewReportError("reporting", "save_xlsx", err)
	}
	styles, err := createExcelStyles(fx)
	if err != nil {
		return "", opterrors.NewReportError("reporting", "save_xlsx", err)
	}
	if err := t.writeTraceSheet(fx, styles); err != nil {
		return "", opterrors.NewReportError("reporting", "save_xlsx", err)
	}
	if err := fx.SaveAs(path); err != nil {
		return "", opterrors.NewReportError("reporting", "save_xlsx", err).WithContext("path", path)
	}
	return path, nil
}

func createExcelStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	// Header style - Dark slate background with white text
	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.currency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 4, // #,##0.00
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "E0E0E0", Style: 1},
			{Type: "right", Color: "E0E0E0", Style: 1},
			{Type: "bottom", Color: "E0E0E0", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.base, err = fx.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "E0E0E0", Style: 1},
			{Type: "right", Color: "E0E0E0", Style: 1},
			{Type: "bottom", Color: "E0E0E0", Style: 1},
		},
	})
	return styles, err
}

// currencyColumns are the money metrics among MetricColumns
var currencyColumns = map[int]bool{0: true, 1: true, 2: true, 3: true, 8: true, 9: true, 11: true}

func (t *SearchTrace) writeTraceSheet(fx *excelize.File, styles excelStyles) error {
	header := t.Header()
	for i, caption := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(traceSheet, cell, caption); err != nil {
			return err
		}
		if err := fx.SetCellStyle(traceSheet, cell, cell, styles.header); err != nil {
			return err
		}
	}

	for r, row := range t.Rows() {
		for c, field := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			style := styles.base
			if currencyColumns[c] {
				style = styles.currency
			}
			// numbers are stored as numbers so the sheet can be sorted
			var value interface{} = field
			if f, err := strconv.ParseFloat(field, 64); err == nil {
				value = f
			}
			if err := fx.SetCellValue(traceSheet, cell, value); err != nil {
				return err
			}
			if err := fx.SetCellStyle(traceSheet, cell, cell, style); err != nil {
				return err
			}
		}
	}

	last, err := excelize.ColumnNumberToName(max(len(header), 1))
	if err != nil {
		return err
	}
	if err := fx.SetColWidth(traceSheet, "A", last, 16); err != nil {
		return err
	}
	return fx.SetPanes(traceSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
