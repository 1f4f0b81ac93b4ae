package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
)

// csvReader streams a headered CSV file in batches.
type csvReader struct {
	entity    model.EntityType
	file      *os.File
	reader    *csv.Reader
	header    []string
	batchSize int
}

func openCSV(path string, entity model.EntityType, batchSize int) (*csvReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1 // allow ragged rows; short rows just omit columns

	header, err := r.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, eris.Errorf("csv: %s is empty", path)
		}
		return nil, eris.Wrapf(err, "csv: read header of %s", path)
	}

	return &csvReader{
		entity:    entity,
		file:      f,
		reader:    r,
		header:    header,
		batchSize: batchSize,
	}, nil
}

func (c *csvReader) Entity() model.EntityType { return c.entity }

func (c *csvReader) Next(ctx context.Context) ([]model.RawRecord, error) {
	var batch []model.RawRecord
	for len(batch) < c.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: context cancelled")
		}

		row, err := c.reader.Read()
		if err == io.EOF {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}

		rec := make(model.RawRecord, len(c.header))
		for i, col := range c.header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

func (c *csvReader) Close() error {
	return c.file.Close()
}
