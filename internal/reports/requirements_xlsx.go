package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"b2bmarket/internal/models"
)

const requirementsSheet = "Requirements"

var requirementColumns = []interface{}{
	"Req ID", "Status", "Name", "Email", "Mobile", "Pincode", "User Type",
	"PID", "Product", "Min Qty", "Measurement", "Specification", "Created At",
}

// WriteRequirementsXLSX renders one row per requirement, newest first as given.
func WriteRequirementsXLSX(w io.Writer, reqs []models.Requirement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", requirementsSheet); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F0F0F0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(requirementsSheet, "A1", &requirementColumns); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(requirementColumns))
	if err := f.SetCellStyle(requirementsSheet, "A1", lastCol+"1", header); err != nil {
		return err
	}
	if err := f.SetColWidth(requirementsSheet, "A", lastCol, 18); err != nil {
		return err
	}

	for i, r := range reqs {
		row := []interface{}{
			r.ReqID, string(r.Status), r.Name, r.Email, r.Mobile, r.Pincode, r.UserType,
			r.PID, r.ProductName, r.MinQty, r.Measurement, r.Specification,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(requirementsSheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(requirementsSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return err
	}

	return f.Write(w)
}
