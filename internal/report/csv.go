package report

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankquery/internal/model"
)

// WriteCSV writes the result rows as CSV. Results without rows, such as
// summary-only answers, still get a header row from the summary section.
func WriteCSV(w io.Writer, result *model.ExecutionResult) error {
	cw := csv.NewWriter(w)

	header, records := Table(result)
	if len(header) > 0 {
		if err := cw.Write(header); err != nil {
			return eris.Wrap(err, "report: write csv header")
		}
		for _, rec := range records {
			if err := cw.Write(rec); err != nil {
				return eris.Wrap(err, "report: write csv row")
			}
		}
	} else {
		for _, pair := range summaryPairs(result.Summary) {
			if err := cw.Write(pair[:]); err != nil {
				return eris.Wrap(err, "report: write csv summary")
			}
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// SaveCSV writes the result to a file, creating or truncating it.
func SaveCSV(path string, result *model.ExecutionResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	if err := WriteCSV(f, result); err != nil {
		f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}
