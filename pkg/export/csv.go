package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/util"
)

// bom makes spreadsheet applications detect UTF-8.
const bom = "\xEF\xBB\xBF"

// WriteCSV writes the ledger with a header row, canonical columns only.
func WriteCSV(w io.Writer, tasks []model.Task) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(model.HeaderRow()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range tasks {
		if err := cw.Write(util.TaskToRow(t)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
