package types

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() TableSchema {
	return TableSchema{
		Name: "things",
		Columns: []Column{
			{Name: "Id"},
			{Name: "Label"},
			{Name: "Note", Nullable: true},
		},
		PrimaryKey: "Id",
	}
}

func TestTableSchema_ColumnNames(t *testing.T) {
	assert.Equal(t, []string{"Id", "Label", "Note"}, testSchema().ColumnNames())
}

func TestTableSchema_Column(t *testing.T) {
	s := testSchema()

	c, ok := s.Column("Note")
	require.True(t, ok)
	assert.True(t, c.Nullable)

	_, ok = s.Column("Missing")
	assert.False(t, ok)
}

func TestTableSchema_Validate(t *testing.T) {
	require.NoError(t, testSchema().Validate())

	noName := testSchema()
	noName.Name = ""
	assert.ErrorContains(t, noName.Validate(), "no name")

	dup := testSchema()
	dup.Columns = append(dup.Columns, Column{Name: "Label"})
	assert.ErrorContains(t, dup.Validate(), "twice")

	badPK := testSchema()
	badPK.PrimaryKey = "Nope"
	assert.ErrorContains(t, badPK.Validate(), "not a declared column")

	nullPK := testSchema()
	nullPK.PrimaryKey = "Note"
	assert.ErrorContains(t, nullPK.Validate(), "must not be nullable")

	empty := TableSchema{Name: "empty"}
	assert.ErrorContains(t, empty.Validate(), "no columns")
}

func TestRawRecord_Map(t *testing.T) {
	rec := RawRecord{Line: 2, Fields: []string{"1", "a"}}
	m := rec.Map([]string{"Id", "Label", "Note"})

	assert.Equal(t, "1", m["Id"])
	assert.Equal(t, "a", m["Label"])
	assert.Equal(t, "", m["Note"])
	assert.Equal(t, "", rec.Value(-1))
}

func TestNewArchiveJob(t *testing.T) {
	job := NewArchiveJob("https://example.com/dump.tar.gz", "work")

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, filepath.Join("work", ArchiveFileName), job.ArchivePath)
	assert.Equal(t, filepath.Join("work", ExtractDirName), job.ExtractDir)
	assert.Equal(t, filepath.Join("work", ExtractDirName, "dump", "customers.csv"), job.Path("dump/customers.csv"))
	assert.False(t, job.StartedAt.IsZero())
}
