package dicomtags

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/storage"
	"github.com/dcmexport/backend/internal/testutil"
)

func TestDumpName(t *testing.T) {
	assert.Equal(t, "img001.txt", DumpName(models.ScannedFile{Name: "img001.dcm"}))
	assert.Equal(t, "scan.txt", DumpName(models.ScannedFile{Path: "a/b/scan.dicom"}))
	assert.Equal(t, "noext.txt", DumpName(models.ScannedFile{Name: "noext"}))
}

func TestDumper_Dump(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	testutil.WriteDICOM(t, filepath.Join(inDir, "study.dcm"), testutil.Attrs{
		testutil.TagModality:    "US",
		testutil.TagStationName: "ECHO2",
	})

	store, err := storage.NewOutputStore(outDir)
	require.NoError(t, err)

	e := NewExtractor()
	file := scanned(t, inDir, "study.dcm")
	ds, err := e.Decode(osfs.New(inDir), file)
	require.NoError(t, err)

	name, err := NewDumper(store).Dump(ds, file)
	require.NoError(t, err)
	assert.Equal(t, "study.txt", name)

	data, err := os.ReadFile(filepath.Join(outDir, "study.txt"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "ECHO2"))
	assert.True(t, strings.Contains(string(data), "US"))
}

func TestDumper_EmptyDataset(t *testing.T) {
	store, err := storage.NewOutputStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewDumper(store).Dump(dicom.Dataset{}, models.ScannedFile{Name: "empty.dcm"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyDump))
}

func TestDumper_Purge(t *testing.T) {
	outDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(outDir, "old1.txt"), []byte("x"))
	testutil.WriteFile(t, filepath.Join(outDir, "old2.txt"), []byte("x"))
	testutil.WriteFile(t, filepath.Join(outDir, "keep.csv"), []byte("x"))

	store, err := storage.NewOutputStore(outDir)
	require.NoError(t, err)

	n, err := NewDumper(store).Purge()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(filepath.Join(outDir, "keep.csv"))
	assert.NoError(t, err)
}
