// Package report renders spreadsheet exports.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/farm-records/internal/service"
)

// CulturesSheet is the name of the worksheet written by WriteCultures.
const CulturesSheet = "Cultures"

var cultureHeader = []interface{}{
	"Name", "Cultivar", "Property", "Supplier", "Origin", "Planting date", "Cycle (days)",
	"Planting area (ha)", "Days elapsed", "Days remaining", "Expected harvest", "Cycle complete",
	"Active", "Status", "Activities", "Observations",
}

// WriteCultures writes an XLSX workbook with one row per culture, in the
// order given, to w.
func WriteCultures(w io.Writer, cultures []service.CultureView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CulturesSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(CulturesSheet, "A1", &cultureHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(cultureHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(CulturesSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(CulturesSheet, "A", lastCol, 16); err != nil {
		return err
	}

	for i, c := range cultures {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		obs := ""
		if c.Observations != nil {
			obs = *c.Observations
		}
		row := []interface{}{
			c.Name, c.Cultivar, c.Property.Name, c.Supplier, c.Origin, c.PlantingDate, c.Cycle,
			c.PlantingArea, c.DaysElapsed, c.DaysRemaining, c.ExpectedHarvestDate, yesNo(c.IsCycleComplete),
			yesNo(c.IsActive), status(c), c.ActivityCount, obs,
		}
		if err := f.SetSheetRow(CulturesSheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func status(c service.CultureView) string {
	switch {
	case !c.IsActive:
		return "completed"
	case c.IsCycleComplete:
		return "ready to harvest"
	case c.DaysElapsed == 0 && c.DaysRemaining > c.Cycle:
		return "scheduled"
	default:
		return "growing"
	}
}
