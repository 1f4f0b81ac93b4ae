package source

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/crm-etl/internal/model"
)

// xlsxReader serves the first sheet of a workbook in batches. The whole
// sheet is materialized at open time; XLSX exports of CRM data are small
// compared to the CSV extracts.
type xlsxReader struct {
	entity    model.EntityType
	header    []string
	rows      [][]string
	pos       int
	batchSize int
}

func openXLSX(path string, entity model.EntityType, batchSize int) (*xlsxReader, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx: %s is empty", path)
	}

	header := rowToStrings(sheet.Rows[0])
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowToStrings(row))
	}

	return &xlsxReader{
		entity:    entity,
		header:    header,
		rows:      rows,
		batchSize: batchSize,
	}, nil
}

func (x *xlsxReader) Entity() model.EntityType { return x.entity }

func (x *xlsxReader) Next(ctx context.Context) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "xlsx: context cancelled")
	}
	if x.pos >= len(x.rows) {
		return nil, io.EOF
	}

	end := x.pos + x.batchSize
	if end > len(x.rows) {
		end = len(x.rows)
	}

	batch := make([]model.RawRecord, 0, end-x.pos)
	for _, row := range x.rows[x.pos:end] {
		rec := make(model.RawRecord, len(x.header))
		for i, col := range x.header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		batch = append(batch, rec)
	}
	x.pos = end
	return batch, nil
}

func (x *xlsxReader) Close() error { return nil }

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
