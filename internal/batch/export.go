package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var exportHeader = []string{"id", "question", "expected", "answer", "score", "found", "exact_match", "contains_match", "error"}

// Export writes rep to path as a spreadsheet when the extension is .xlsx,
// and as indented JSON otherwise.
func Export(path string, rep *Report) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(path, rep)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return eris.Wrap(err, "batch: marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "batch: write report")
	}
	return nil
}

func writeXLSX(path string, rep *Report) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "batch: add sheet")
	}
	addRow(sheet, exportHeader...)
	for _, r := range rep.Results {
		row := sheet.AddRow()
		for _, v := range []string{r.ID, r.Question, r.Expected, r.Answer} {
			row.AddCell().SetString(v)
		}
		row.AddCell().SetFloat(r.Score)
		row.AddCell().SetBool(r.Found)
		row.AddCell().SetBool(r.ExactMatch)
		row.AddCell().SetBool(r.ContainsMatch)
		row.AddCell().SetString(r.Error)
	}

	summary, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "batch: add sheet")
	}
	addRow(summary, "total", strconv.Itoa(rep.Total))
	addRow(summary, "found", strconv.Itoa(rep.Found))
	addRow(summary, "failed", strconv.Itoa(rep.Failed))
	addRow(summary, "evaluated", strconv.Itoa(rep.Evaluated))
	addRow(summary, "exact_accuracy", strconv.FormatFloat(rep.ExactAccuracy, 'f', 4, 64))
	addRow(summary, "contains_accuracy", strconv.FormatFloat(rep.ContainsAccuracy, 'f', 4, 64))

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "batch: save xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
