package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bankquery/internal/model"
)

// SaveXLSX writes a workbook with a Results sheet and a Summary sheet. Safety
// notes, when present, get their own sheet so they travel with the numbers.
func SaveXLSX(path string, answer *model.Answer) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}
	header, records := Table(answer.Result)
	writeRow(results, header...)
	for _, rec := range records {
		writeRow(results, rec...)
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	writeRow(summary, "prompt", answer.Prompt)
	writeRow(summary, "repair_count", formatCell(answer.RepairCount))
	for _, pair := range summaryPairs(answer.Result.Summary) {
		writeRow(summary, pair[0], pair[1])
	}
	for _, me := range answer.Result.Errors {
		writeRow(summary, "metric_error:"+string(me.Metric), me.Message)
	}

	if len(answer.Result.SafetyNotes) > 0 {
		notes, err := f.AddSheet("Safety Notes")
		if err != nil {
			return eris.Wrap(err, "report: add safety notes sheet")
		}
		for _, note := range answer.Result.SafetyNotes {
			writeRow(notes, note)
		}
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func writeRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().Value = c
	}
}
