package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"examsolver/internal/domain"
)

const (
	resultsSheet = "Results"
	errorsSheet  = "Errors"
)

// WriteXLSX writes the report as a workbook with a results sheet and a
// document errors sheet.
func WriteXLSX(w io.Writer, report *domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	if err := writeSheet(f, resultsSheet, columns, rows(report)); err != nil {
		return err
	}
	if err := f.SetPanes(resultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export.WriteXLSX: freezing header: %w", err)
	}

	if _, err := f.NewSheet(errorsSheet); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	errRows := make([][]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		page := ""
		if e.Page != nil {
			page = fmt.Sprint(*e.Page + 1)
		}
		errRows = append(errRows, []string{page, e.Stage.String(), e.Message})
	}
	if err := writeSheet(f, errorsSheet, []string{"Page", "Stage", "Message"}, errRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, data [][]string) error {
	for i, row := range append([][]string{header}, data...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("export.writeSheet: %w", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("export.writeSheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
