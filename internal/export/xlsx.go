package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/02loveslollipop/station-telemetry/internal/flow"
)

const (
	SheetProcessed = "Mesures"
	SheetDaily     = "Volumes journaliers"
)

// WriteWorkbook writes the processed samples and daily volumes as a two
// sheet workbook. Numeric cells keep full precision; rounding is left to the
// cell format.
func WriteWorkbook(w io.Writer, res flow.Result, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetProcessed); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetDaily); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	level, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr("0.000")})
	if err != nil {
		return fmt.Errorf("create level style: %w", err)
	}
	rate, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr("0.00")})
	if err != nil {
		return fmt.Errorf("create rate style: %w", err)
	}

	if err := writeHeader(f, SheetProcessed, ProcessedHeader, header); err != nil {
		return err
	}
	for i, p := range res.Processed {
		row := i + 2
		local := p.Date.In(loc)
		values := []interface{}{
			local.Format(dateLayout),
			local.Format(timeLayout),
			p.Level,
			nil,
			p.QEntree,
			p.QSortie,
			p.VolumeIndex,
		}
		if p.FilteredLevel != nil {
			values[3] = *p.FilteredLevel
		}
		if err := writeRow(f, SheetProcessed, row, values); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetProcessed, cell(3, row), cell(4, row), level); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetProcessed, cell(5, row), cell(7, row), rate); err != nil {
			return err
		}
	}

	if err := writeHeader(f, SheetDaily, DailyHeader, header); err != nil {
		return err
	}
	for i, d := range res.DailyVolumes {
		row := i + 2
		if err := writeRow(f, SheetDaily, row, []interface{}{d.Date.Format(dateLayout), d.Volume}); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetDaily, cell(2, row), cell(2, row), rate); err != nil {
			return err
		}
	}

	for _, sheet := range []string{SheetProcessed, SheetDaily} {
		if err := f.SetColWidth(sheet, "A", "G", 20); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("freeze panes: %w", err)
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		c := cell(i+1, 1)
		if err := f.SetCellValue(sheet, c, h); err != nil {
			return fmt.Errorf("set header cell %s: %w", c, err)
		}
	}
	return f.SetCellStyle(sheet, cell(1, 1), cell(len(headers), 1), style)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		c := cell(i+1, row)
		if err := f.SetCellValue(sheet, c, v); err != nil {
			return fmt.Errorf("set cell %s: %w", c, err)
		}
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func ptr[T any](v T) *T { return &v }
