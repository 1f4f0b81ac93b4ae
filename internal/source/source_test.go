package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/crm-etl/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("companies")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "companies.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "companies.csv"), []byte("id\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contacts.json"), []byte("[]"), 0o644))

	path, err := Locate(dir, model.EntityCompanies)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "companies.csv"), path)

	path, err = Locate(dir, model.EntityContacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "contacts.json"), path)

	_, err = Locate(dir, model.EntityActivities)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestCSVReader_Batches(t *testing.T) {
	path := writeFile(t, "companies.csv", "id,name,domain\nC1,Acme,acme.com\nC2,Globex,globex.com\nC3,Initech,initech.com\n")

	r, err := Open(path, model.EntityCompanies, 2)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	ctx := context.Background()

	batch, err := r.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "C1", batch[0]["id"])
	assert.Equal(t, "acme.com", batch[0]["domain"])

	batch, err = r.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "C3", batch[0]["id"])

	_, err = r.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestCSVReader_RaggedRow(t *testing.T) {
	path := writeFile(t, "companies.csv", "id,name,domain\nC1,Acme\n")

	r, err := Open(path, model.EntityCompanies, 10)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	batch, err := r.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 1)

	_, ok := batch[0].Get("domain")
	assert.False(t, ok, "missing trailing column must be absent, not empty")
}

func TestCSVReader_EmptyFile(t *testing.T) {
	path := writeFile(t, "companies.csv", "")
	_, err := Open(path, model.EntityCompanies, 10)
	assert.ErrorContains(t, err, "empty")
}

func TestJSONReader_Coercion(t *testing.T) {
	path := writeFile(t, "contacts.json", `[
		{"id": "CT1", "probability": 42, "amount": 1234.56, "is_closed": true, "notes": null},
		{"id": "CT2", "is_closed": false}
	]`)

	r, err := Open(path, model.EntityContacts, 10)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	batch, err := r.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, "42", batch[0]["probability"])
	assert.Equal(t, "1234.56", batch[0]["amount"])
	assert.Equal(t, "true", batch[0]["is_closed"])
	_, ok := batch[0].Get("notes")
	assert.False(t, ok, "JSON null must be an absent column")

	assert.Equal(t, "false", batch[1]["is_closed"])

	_, err = r.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestJSONReader_NotAnArray(t *testing.T) {
	path := writeFile(t, "contacts.json", `{"id": "CT1"}`)
	_, err := Open(path, model.EntityContacts, 10)
	assert.ErrorContains(t, err, "expected array")
}

func TestXLSXReader_Batches(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"id", "name"},
		{"C1", "Acme"},
		{"C2", "Globex"},
	})

	r, err := Open(path, model.EntityCompanies, 1)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	ctx := context.Background()

	batch, err := r.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "C1", batch[0]["id"])

	batch, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C2", batch[0]["id"])

	_, err = r.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestOpen_UnsupportedExtension(t *testing.T) {
	_, err := Open("companies.xml", model.EntityCompanies, 10)
	assert.ErrorContains(t, err, "unsupported")
}

func TestFormatsYieldIdenticalRecords(t *testing.T) {
	csvPath := writeFile(t, "companies.csv", "id,name\nC1,Acme\n")
	jsonPath := writeFile(t, "companies.json", `[{"id":"C1","name":"Acme"}]`)
	xlsxPath := createTestXLSX(t, [][]string{{"id", "name"}, {"C1", "Acme"}})

	ctx := context.Background()
	var got []model.RawRecord
	for _, path := range []string{csvPath, jsonPath, xlsxPath} {
		r, err := Open(path, model.EntityCompanies, 10)
		require.NoError(t, err)
		batch, err := r.Next(ctx)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		got = append(got, batch[0])
		require.NoError(t, r.Close())
	}

	assert.Equal(t, got[0], got[1])
	assert.Equal(t, got[0], got[2])
}
