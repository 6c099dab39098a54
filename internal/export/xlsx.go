// Package export writes stored accounts records and balance sheets to XLSX
// workbooks.
package export

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/digiaccounts/internal/accounts"
	"github.com/sells-group/digiaccounts/internal/store"
	"github.com/sells-group/digiaccounts/internal/xbrl"
)

// Sheet names.
const (
	AccountsSheet     = "Accounts"
	BalanceSheetSheet = "Balance Sheet"
)

// FirstLoggedColumn follows the record keys on the accounts sheet.
const FirstLoggedColumn = "first_logged"

var balanceSheetHeader = []string{"_id", "name", "value", "date"}

// Workbook builds an XLSX export. Sheets are created on first use.
type Workbook struct {
	file *xlsx.File
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{file: xlsx.NewFile()}
}

// AddDocuments appends one row per document to the accounts sheet, with
// columns in record key order. Keys missing from a truncated record are left
// blank.
func (w *Workbook) AddDocuments(docs []store.Document) error {
	sheet, err := w.sheet(AccountsSheet, append(accounts.Keys(), FirstLoggedColumn))
	if err != nil {
		return err
	}
	keys := accounts.Keys()
	for _, doc := range docs {
		values, err := decodeData(doc.Data)
		if err != nil {
			return eris.Wrapf(err, "export: decode document %s", doc.ID)
		}
		row := sheet.AddRow()
		for _, k := range keys {
			setCell(row.AddCell(), values[k])
		}
		if !doc.FirstLogged.IsZero() {
			row.AddCell().SetDateTime(doc.FirstLogged)
		} else {
			row.AddCell()
		}
	}
	return nil
}

// AddBalanceSheet appends the balance sheet lines of the filing id.
func (w *Workbook) AddBalanceSheet(id string, lines []accounts.Line) error {
	sheet, err := w.sheet(BalanceSheetSheet, balanceSheetHeader)
	if err != nil {
		return err
	}
	for _, line := range lines {
		row := sheet.AddRow()
		row.AddCell().SetString(id)
		row.AddCell().SetString(line.Name)
		setValue(row.AddCell(), line.Value)
		row.AddCell().SetString(line.Date.Format(accounts.DateLayout))
	}
	return nil
}

// Save writes the workbook to path.
func (w *Workbook) Save(path string) error {
	if err := w.file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// Write writes the workbook to out.
func (w *Workbook) Write(out io.Writer) error {
	if err := w.file.Write(out); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func (w *Workbook) sheet(name string, header []string) (*xlsx.Sheet, error) {
	if sheet, ok := w.file.Sheet[name]; ok {
		return sheet, nil
	}
	sheet, err := w.file.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %q", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}

// decodeData decodes a record object keeping numbers as json.Number so
// large values survive unchanged.
func decodeData(data json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

func setCell(cell *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
	case json.Number:
		if f, err := x.Float64(); err == nil {
			cell.SetFloat(f)
		} else {
			cell.SetString(x.String())
		}
	case bool:
		cell.SetBool(x)
	case string:
		cell.SetString(x)
	default:
		b, _ := json.Marshal(x)
		cell.SetString(string(b))
	}
}

func setValue(cell *xlsx.Cell, v xbrl.Value) {
	if f, ok := v.Float(); ok {
		cell.SetFloat(f)
		return
	}
	if s, ok := v.Str(); ok {
		cell.SetString(s)
	}
}
