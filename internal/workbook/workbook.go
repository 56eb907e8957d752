// Package workbook reads and writes the xlsx artifacts passed between
// pipeline stages. Every stage owns a fixed column schema; required columns
// are checked at load time and missing optional columns are backfilled with
// empty strings.
package workbook

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Schema names a sheet's fixed columns. Optional columns may be absent from
// the file; they always appear (possibly empty) in the loaded rows.
type Schema struct {
	Sheet    string
	Columns  []string
	Optional []string
}

// Row is one worksheet row keyed by column header.
type Row map[string]string

// Read loads all rows from the schema's sheet, validating the header.
func Read(path string, schema Schema) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: open %s", path)
	}

	sheet, err := findSheet(f, schema.Sheet)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("workbook: sheet %q in %s has no header row", sheet.Name, path)
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	index := make(map[string]int, len(header))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = cell.String()
		index[header[i]] = i
	}

	optional := make(map[string]bool, len(schema.Optional))
	for _, c := range schema.Optional {
		optional[c] = true
	}
	for _, col := range schema.Columns {
		if _, ok := index[col]; !ok && !optional[col] {
			return nil, eris.Errorf("workbook: %s missing required column %q", path, col)
		}
	}

	var rows []Row
	for _, r := range sheet.Rows[1:] {
		row := make(Row, len(schema.Columns))
		empty := true
		for _, col := range schema.Columns {
			var val string
			if idx, ok := index[col]; ok && idx < len(r.Cells) {
				val = r.Cells[idx].String()
			}
			row[col] = val
			if val != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// Sheet pairs a schema with its rows for writing.
type Sheet struct {
	Schema Schema
	Rows   []Row
}

// Write persists a single-sheet workbook.
func Write(path string, schema Schema, rows []Row) error {
	return WriteSheets(path, []Sheet{{Schema: schema, Rows: rows}})
}

// WriteSheets persists a workbook with one sheet per entry, headers first.
func WriteSheets(path string, sheets []Sheet) error {
	f := xlsx.NewFile()

	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Schema.Sheet)
		if err != nil {
			return eris.Wrapf(err, "workbook: add sheet %s", s.Schema.Sheet)
		}

		headerRow := sheet.AddRow()
		for _, col := range s.Schema.Columns {
			headerRow.AddCell().SetString(col)
		}

		for _, row := range s.Rows {
			r := sheet.AddRow()
			for _, col := range s.Schema.Columns {
				r.AddCell().SetString(row[col])
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "workbook: save %s", path)
	}
	return nil
}

func findSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		if len(f.Sheets) == 0 {
			return nil, eris.New("workbook: file has no sheets")
		}
		return f.Sheets[0], nil
	}
	if sheet, ok := f.Sheet[name]; ok {
		return sheet, nil
	}
	// Stage artifacts are single-sheet; tolerate a renamed sheet.
	if len(f.Sheets) == 1 {
		return f.Sheets[0], nil
	}
	return nil, eris.Errorf("workbook: sheet %q not found", name)
}
