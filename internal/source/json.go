package source

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
)

// jsonReader streams a JSON array of objects ([{...},{...}]) in batches
// without loading the whole file.
type jsonReader struct {
	entity    model.EntityType
	file      *os.File
	decoder   *json.Decoder
	batchSize int
}

func openJSON(path string, entity model.EntityType, batchSize int) (*jsonReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "json: open %s", path)
	}

	dec := json.NewDecoder(f)
	dec.UseNumber() // keep numeric text exact for downstream validation

	tok, err := dec.Token()
	if err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "json: read opening token of %s", path)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		f.Close()
		return nil, eris.Errorf("json: %s: expected array, got %v", path, tok)
	}

	return &jsonReader{
		entity:    entity,
		file:      f,
		decoder:   dec,
		batchSize: batchSize,
	}, nil
}

func (j *jsonReader) Entity() model.EntityType { return j.entity }

func (j *jsonReader) Next(ctx context.Context) ([]model.RawRecord, error) {
	var batch []model.RawRecord
	for len(batch) < j.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "json: context cancelled")
		}

		if !j.decoder.More() {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}

		var obj map[string]any
		if err := j.decoder.Decode(&obj); err != nil {
			return nil, eris.Wrap(err, "json: decode element")
		}
		batch = append(batch, coerceRecord(obj))
	}
	return batch, nil
}

func (j *jsonReader) Close() error {
	return j.file.Close()
}

// coerceRecord flattens a decoded JSON object into raw string fields. JSON
// null becomes an absent column, matching how CSV represents missing values.
func coerceRecord(obj map[string]any) model.RawRecord {
	rec := make(model.RawRecord, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			// absent
		case string:
			rec[k] = val
		case json.Number:
			rec[k] = val.String()
		case bool:
			if val {
				rec[k] = "true"
			} else {
				rec[k] = "false"
			}
		default:
			// nested arrays/objects have no column mapping; keep the raw
			// JSON so the validator rejects it with a readable value
			b, err := json.Marshal(val)
			if err == nil {
				rec[k] = string(b)
			}
		}
	}
	return rec
}
