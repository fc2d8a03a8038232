package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dcmexport/backend/internal/models"
)

func TestSanitizer_String(t *testing.T) {
	s := New(DefaultKeep)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "CT", want: "CT"},
		{name: "keeps allowed punctuation", input: "1.2.840-10008+x_y:z|w", want: "1.2.840-10008+x_y:z|w"},
		{name: "strips other punctuation", input: `HEAD W/O "CONTRAST", (AXIAL)!`, want: "HEAD WO CONTRAST AXIAL"},
		{name: "strips separators", input: "a,b;c\tD\nE", want: "abcDE"},
		{name: "strips control characters", input: "abc\r\x00\x1bdef", want: "abcdef"},
		{name: "collapses spaces", input: "General    Hospital", want: "General Hospital"},
		{name: "collapses spaces left by removals", input: "A / B", want: "A B"},
		{name: "trims", input: "  padded value  ", want: "padded value"},
		{name: "keeps unicode letters", input: "Klinikum M\u00fcller", want: "Klinikum M\u00fcller"},
		{name: "normalizes combining marks", input: "Mu\u0308ller", want: "M\u00fcller"},
		{name: "strips symbols", input: "50€ ©2024 ★", want: "50 2024"},
		{name: "only disallowed", input: `!!!///`, want: ""},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.String(tt.input))
		})
	}
}

func TestSanitizer_CustomKeep(t *testing.T) {
	s := New("/")
	assert.Equal(t, "W/O", s.String("W/O."))
	assert.True(t, s.Allowed('/'))
	assert.False(t, s.Allowed('.'))
}

func TestSanitizer_Apply(t *testing.T) {
	schema := models.Schema{models.ColumnFilename, "study_description", "station_name", models.ColumnExtractDate}
	rec := models.NewRecord("in/weird,name.dcm", schema)
	rec.Values[models.ColumnFilename] = "weird,name.dcm"
	rec.Values["study_description"] = "CHEST\tPA/LAT"
	rec.Values["station_name"] = "ST#1"
	rec.Values["image_type"] = `ORIGINAL\PRIMARY (AXIAL)\\LOCALIZER!`
	rec.Values[models.ColumnExtractDate] = "2024-01-02 03:04:05"

	New(DefaultKeep).Apply(rec)

	assert.Equal(t, "weird,name.dcm", rec.Values[models.ColumnFilename])
	assert.Equal(t, "CHESTPALAT", rec.Values["study_description"])
	assert.Equal(t, "ST1", rec.Values["station_name"])
	assert.Equal(t, `ORIGINAL\PRIMARY AXIAL\\LOCALIZER`, rec.Values["image_type"])
	assert.Equal(t, "2024-01-02 03:04:05", rec.Values[models.ColumnExtractDate])
	assert.Len(t, rec.Values, len(schema)+1)
}

func TestSanitizer_Value(t *testing.T) {
	s := New(DefaultKeep)

	assert.Equal(t, `DERIVED\SECONDARY`, s.Value(`DERIVED\SECONDARY`))
	assert.Equal(t, `A B\C`, s.Value(` A / B \C!`))
	assert.Equal(t, "plain", s.Value("plain!"))
	assert.Equal(t, "", s.Value(""))
}
