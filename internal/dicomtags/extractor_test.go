package dicomtags

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/testutil"
)

func scanned(t *testing.T, dir, name string) models.ScannedFile {
	t.Helper()
	info, err := os.Stat(filepath.Join(dir, name))
	require.NoError(t, err)
	return models.ScannedFile{Path: name, Name: filepath.Base(name), Size: info.Size()}
}

func TestDefaultFields(t *testing.T) {
	require.Len(t, DefaultFields, 11)
	seen := make(map[string]bool)
	for _, f := range DefaultFields {
		assert.False(t, seen[f.Key], "duplicate key %s", f.Key)
		seen[f.Key] = true
		assert.Equal(t, f.Tag.Group == MetaGroup, f.Meta, "meta flag mismatch for %s", f.Key)
	}
}

func TestExtractor_Schema(t *testing.T) {
	e := NewExtractor()
	schema := e.Schema()

	require.Len(t, schema, 14)
	assert.Equal(t, models.ColumnFilename, schema[0])
	assert.Equal(t, "modality", schema[1])
	assert.Equal(t, models.ColumnTransferSyntaxName, schema[12])
	assert.Equal(t, models.ColumnExtractDate, schema[13])
}

func TestExtractor_Extract(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDICOM(t, filepath.Join(dir, "ct1.dcm"), testutil.Attrs{
		testutil.TagModality:              "CT",
		testutil.TagInstitutionName:       "General Hospital",
		testutil.TagManufacturer:          "ACME",
		testutil.TagManufacturerModelName: "Scanner 3000",
		testutil.TagSourceAET:             "MODALITY1",
		testutil.TagStationName:           "CT01",
		testutil.TagStudyDescription:      "HEAD W/O CONTRAST",
		testutil.TagStudyDate:             "20240131",
		testutil.TagStudyTime:             "101530",
	})

	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	e := NewExtractor(WithExtractDate(when))

	rec, err := e.Extract(osfs.New(dir), scanned(t, dir, "ct1.dcm"))
	require.NoError(t, err)

	assert.Equal(t, "ct1.dcm", rec.SourcePath)
	assert.Equal(t, "ct1.dcm", rec.Values["filename"])
	assert.Equal(t, "CT", rec.Values["modality"])
	assert.Equal(t, "1.2.826.0.1.3680043.2.1125.1", rec.Values["sopInstanceUid"])
	assert.Equal(t, "General Hospital", rec.Values["institution_name"])
	assert.Equal(t, "ACME", rec.Values["manufacturer"])
	assert.Equal(t, "Scanner 3000", rec.Values["manufacturer_model"])
	assert.Equal(t, "MODALITY1", rec.Values["sourceAET"])
	assert.Equal(t, "CT01", rec.Values["station_name"])
	assert.Equal(t, "HEAD W/O CONTRAST", rec.Values["study_description"])
	assert.Equal(t, "20240131", rec.Values["study_date"])
	assert.Equal(t, "101530", rec.Values["study_time"])
	assert.Equal(t, testutil.ExplicitVRLittleEndian, rec.Values["transferSyntaxUid"])
	assert.Equal(t, "ExplicitVRLittleEndian", rec.Values["transferSyntaxName"])
	assert.Equal(t, "2024-05-06 07:08:09", rec.Values["extract_date"])
}

func TestExtractor_MissingTagsAreEmpty(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDICOM(t, filepath.Join(dir, "bare.dcm"), testutil.Attrs{
		testutil.TagModality: "MR",
	})

	e := NewExtractor()
	rec, err := e.Extract(osfs.New(dir), scanned(t, dir, "bare.dcm"))
	require.NoError(t, err)

	assert.Len(t, rec.Values, len(e.Schema()))
	assert.Equal(t, "MR", rec.Values["modality"])
	assert.Empty(t, rec.Values["institution_name"])
	assert.Empty(t, rec.Values["sourceAET"])
	assert.Empty(t, rec.Values["study_date"])
}

func TestExtractor_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "junk.dcm"), []byte("definitely not a DICOM file"))

	_, err := NewExtractor().Extract(osfs.New(dir), scanned(t, dir, "junk.dcm"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDICOM))
}

func TestExtractor_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := NewExtractor().Extract(osfs.New(dir), models.ScannedFile{Path: "gone.dcm", Name: "gone.dcm"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidDICOM))
}

type failingDecoder struct{}

func (failingDecoder) Decode(io.Reader, int64) (dicom.Dataset, error) {
	return dicom.Dataset{}, errors.New("boom")
}

func TestExtractor_WithDecoder(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDICOM(t, filepath.Join(dir, "a.dcm"), nil)

	e := NewExtractor(WithDecoder(failingDecoder{}))
	_, err := e.Extract(osfs.New(dir), scanned(t, dir, "a.dcm"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDICOM)
	assert.Contains(t, err.Error(), "boom")
}

func TestExtractor_WithFields(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDICOM(t, filepath.Join(dir, "a.dcm"), testutil.Attrs{
		testutil.TagStationName: "ST9",
	})

	e := NewExtractor(WithFields([]models.Field{
		{Key: "station", Tag: models.Tag{Group: 0x0008, Element: 0x1010}},
	}))
	rec, err := e.Extract(osfs.New(dir), scanned(t, dir, "a.dcm"))
	require.NoError(t, err)

	assert.Equal(t, models.Schema{"filename", "station", "transferSyntaxName", "extract_date"}, e.Schema())
	assert.Equal(t, "ST9", rec.Values["station"])
	// No transferSyntaxUid column, so no name either
	assert.Empty(t, rec.Values["transferSyntaxName"])
}

func TestFormatValue(t *testing.T) {
	strs, err := dicom.NewValue([]string{"A ", "B"})
	require.NoError(t, err)
	ints, err := dicom.NewValue([]int{1, 2, 3})
	require.NoError(t, err)
	floats, err := dicom.NewValue([]float64{0.5, 2})
	require.NoError(t, err)
	bytesVal, err := dicom.NewValue([]byte{1, 2})
	require.NoError(t, err)

	assert.Equal(t, `A\B`, FormatValue(strs))
	assert.Equal(t, `1\2\3`, FormatValue(ints))
	assert.Equal(t, `0.5\2`, FormatValue(floats))
	assert.Equal(t, "", FormatValue(bytesVal))
	assert.Equal(t, "", FormatValue(nil))
}

func TestTransferSyntax(t *testing.T) {
	assert.Equal(t, "ImplicitVRLittleEndian", TransferSyntaxName("1.2.840.10008.1.2"))
	assert.Equal(t, "RLELossless", TransferSyntaxName("1.2.840.10008.1.2.5"))
	assert.Empty(t, TransferSyntaxName("1.2.3"))

	fwd := TransferSyntaxMap(false)
	assert.Len(t, fwd, 10)

	both := TransferSyntaxMap(true)
	assert.Len(t, both, 20)
	assert.Equal(t, "1.2.840.10008.1.2.4.90", both["JPEG2000Lossless"])
}
