package dicomtags

import (
	"bufio"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/suyashkumar/dicom"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/storage"
)

// DumpExt is the extension of per-file tag dumps.
const DumpExt = ".txt"

// ErrEmptyDump is returned when a dump produced no output.
var ErrEmptyDump = errors.New("empty tag dump")

// Dumper writes every element of a dataset to a text file.
type Dumper struct {
	store storage.Store
}

// NewDumper creates a Dumper writing into store.
func NewDumper(store storage.Store) *Dumper {
	return &Dumper{store: store}
}

// DumpName returns the dump file name for a source file: its stem plus DumpExt.
func DumpName(file models.ScannedFile) string {
	name := file.Name
	if name == "" {
		name = path.Base(file.Path)
	}
	return strings.TrimSuffix(name, path.Ext(name)) + DumpExt
}

// Purge removes dumps left by a previous run.
func (d *Dumper) Purge() (int, error) {
	return d.store.Purge(DumpExt)
}

// Dump writes ds for file and returns the dump name.
func (d *Dumper) Dump(ds dicom.Dataset, file models.ScannedFile) (string, error) {
	name := DumpName(file)

	w, err := d.store.Create(name)
	if err != nil {
		return "", err
	}

	bw := bufio.NewWriter(w)
	for _, elem := range ds.Elements {
		if _, err := fmt.Fprintln(bw, elem.String()); err != nil {
			w.Close()
			return "", fmt.Errorf("writing dump %s: %w", name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		w.Close()
		return "", fmt.Errorf("flushing dump %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing dump %s: %w", name, err)
	}

	size, err := d.store.Size(name)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyDump, name)
	}
	return name, nil
}
