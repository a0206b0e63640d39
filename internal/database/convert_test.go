package database

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"workflowhr/internal/document"
	"workflowhr/internal/fieldschema"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestTemplateAssignRoundTrip(t *testing.T) {
	db := newTestDB(t)

	company := uint(7)
	in := document.Template{
		DocumentName: "Offer Letter",
		FieldTags: []fieldschema.FieldTag{
			{Tag: "candidate_name", Label: "Candidate Name"},
			{Tag: "job_title", Label: "Job Title"},
		},
		Content:   "<p>Dear {{candidate_name}}</p>",
		Settings:  document.Settings{FontFamily: "Georgia", FontSizePt: 11, LineHeight: 1.4, MarginMM: 18, ShowPageNumbers: true},
		CompanyID: &company,
	}

	row := Template{UserID: 1, Version: 1}
	require.NoError(t, row.Assign(in))
	require.NoError(t, db.Create(&row).Error)

	var loaded Template
	require.NoError(t, db.First(&loaded, row.ID).Error)
	out, err := loaded.ToDocument()
	require.NoError(t, err)

	if diff := cmp.Diff(in.FieldTags, out.FieldTags); diff != "" {
		t.Fatalf("field tags mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in.Settings, out.Settings); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, in.DocumentName, out.DocumentName)
	require.Equal(t, in.Content, out.Content)
	require.Equal(t, 1, out.Version)
	require.NotNil(t, out.CompanyID)
	require.Equal(t, company, *out.CompanyID)
}

func TestToDocumentDefaults(t *testing.T) {
	out, err := Template{DocumentName: "Empty"}.ToDocument()
	require.NoError(t, err)
	require.NotNil(t, out.FieldTags)
	require.Empty(t, out.FieldTags)
	require.Equal(t, document.DefaultSettings(), out.Settings)
}

func TestToDocumentRejectsCorruptJSON(t *testing.T) {
	_, err := Template{FieldTags: []byte("{")}.ToDocument()
	require.Error(t, err)
}

func TestGeneratedDocumentValues(t *testing.T) {
	values, err := GeneratedDocument{}.Values()
	require.NoError(t, err)
	require.Empty(t, values)

	values, err = GeneratedDocument{FieldValues: []byte(`{"employee_name":"Jane"}`)}.Values()
	require.NoError(t, err)
	require.Equal(t, "Jane", values["employee_name"])
}
