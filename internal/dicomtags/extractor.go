package dicomtags

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/suyashkumar/dicom"

	"github.com/dcmexport/backend/internal/models"
)

// ErrInvalidDICOM is returned when a file cannot be decoded.
var ErrInvalidDICOM = errors.New("invalid DICOM file")

// ExtractDateLayout is the format of the extract_date column.
const ExtractDateLayout = "2006-01-02 15:04:05"

// Decoder turns a byte stream into a dataset. Pixel data is never needed.
type Decoder interface {
	Decode(r io.Reader, size int64) (dicom.Dataset, error)
}

// LibraryDecoder decodes with github.com/suyashkumar/dicom.
type LibraryDecoder struct{}

// Decode parses the stream, skipping pixel data.
func (LibraryDecoder) Decode(r io.Reader, size int64) (dicom.Dataset, error) {
	return dicom.Parse(r, size, nil, dicom.SkipPixelData())
}

// Extractor reads the configured fields from DICOM files.
type Extractor struct {
	fields      []models.Field
	schema      models.Schema
	decoder     Decoder
	extractDate string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithFields replaces the default tag table.
func WithFields(fields []models.Field) Option {
	return func(e *Extractor) { e.fields = fields }
}

// WithDecoder replaces the library decoder.
func WithDecoder(d Decoder) Option {
	return func(e *Extractor) { e.decoder = d }
}

// WithExtractDate sets the timestamp written to every record.
func WithExtractDate(t time.Time) Option {
	return func(e *Extractor) { e.extractDate = t.Format(ExtractDateLayout) }
}

// NewExtractor creates an Extractor for DefaultFields.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		fields:      DefaultFields,
		decoder:     LibraryDecoder{},
		extractDate: time.Now().Format(ExtractDateLayout),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.schema = models.NewSchema(e.fields)
	return e
}

// Schema returns the column order of the records this extractor produces.
func (e *Extractor) Schema() models.Schema {
	return e.schema
}

// Decode opens and decodes one file.
func (e *Extractor) Decode(fsys billy.Filesystem, file models.ScannedFile) (dicom.Dataset, error) {
	f, err := fsys.Open(file.Path)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("opening %s: %w", file.Path, err)
	}
	defer f.Close()

	size := file.Size
	if size <= 0 {
		info, err := fsys.Stat(file.Path)
		if err != nil {
			return dicom.Dataset{}, fmt.Errorf("stat %s: %w", file.Path, err)
		}
		size = info.Size()
	}

	ds, err := e.decoder.Decode(f, size)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("%w: %s: %v", ErrInvalidDICOM, file.Path, err)
	}
	return ds, nil
}

// Extract decodes a file and builds its record.
func (e *Extractor) Extract(fsys billy.Filesystem, file models.ScannedFile) (*models.Record, error) {
	ds, err := e.Decode(fsys, file)
	if err != nil {
		return nil, err
	}
	return e.Record(ds, file), nil
}

// Record builds a record from an already decoded dataset. Missing tags stay empty.
func (e *Extractor) Record(ds dicom.Dataset, file models.ScannedFile) *models.Record {
	rec := models.NewRecord(file.Path, e.schema)
	rec.Values[models.ColumnFilename] = file.Name
	rec.Values[models.ColumnExtractDate] = e.extractDate

	for _, f := range e.fields {
		elem, err := ds.FindElementByTag(toLibraryTag(f.Tag))
		if err != nil {
			continue
		}
		rec.Values[f.Key] = FormatValue(elem.Value)
	}

	if uid, ok := rec.Values[KeyTransferSyntaxUID]; ok {
		rec.Values[models.ColumnTransferSyntaxName] = TransferSyntaxName(uid)
	}

	return rec
}

// FormatValue renders an element value as a single string. Binary and
// sequence values render as "".
func FormatValue(v dicom.Value) string {
	if v == nil {
		return ""
	}

	switch v.ValueType() {
	case dicom.Strings:
		parts := dicom.MustGetStrings(v)
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = strings.Trim(p, " \x00")
		}
		return strings.Join(out, models.ValueDelimiter)
	case dicom.Ints:
		ints := dicom.MustGetInts(v)
		out := make([]string, len(ints))
		for i, n := range ints {
			out[i] = strconv.Itoa(n)
		}
		return strings.Join(out, models.ValueDelimiter)
	case dicom.Floats:
		floats := dicom.MustGetFloats(v)
		out := make([]string, len(floats))
		for i, f := range floats {
			out[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(out, models.ValueDelimiter)
	default:
		return ""
	}
}
