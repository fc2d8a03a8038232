// Package models contains domain types for the DICOM tag exporter.
package models

// Reserved column names that are not read from a DICOM tag.
const (
	ColumnFilename           = "filename"
	ColumnTransferSyntaxName = "transferSyntaxName"
	ColumnExtractDate        = "extract_date"
)

// ValueDelimiter separates the values of a multi-valued element.
const ValueDelimiter = `\`

// Tag identifies a DICOM attribute by group and element number.
type Tag struct {
	Group   uint16 `json:"group" yaml:"group"`
	Element uint16 `json:"element" yaml:"element"`
}

// Field maps an output column to the DICOM tag it is read from.
type Field struct {
	Key  string `json:"key"`
	Tag  Tag    `json:"tag"`
	Meta bool   `json:"meta"` // File meta information (group 0x0002)
}

// Schema is the ordered column set shared by every record of a run.
type Schema []string

// NewSchema builds the column order: filename, tag keys, transfer syntax name, extract date.
func NewSchema(fields []Field) Schema {
	s := make(Schema, 0, len(fields)+3)
	s = append(s, ColumnFilename)
	for _, f := range fields {
		s = append(s, f.Key)
	}
	s = append(s, ColumnTransferSyntaxName, ColumnExtractDate)
	return s
}

// Record is one extracted row: the source path plus a flat column -> value map.
type Record struct {
	SourcePath string            `json:"sourcePath"`
	Values     map[string]string `json:"values"`
}

// NewRecord creates a record with every schema column set to the empty string.
func NewRecord(sourcePath string, schema Schema) *Record {
	values := make(map[string]string, len(schema))
	for _, col := range schema {
		values[col] = ""
	}
	return &Record{
		SourcePath: sourcePath,
		Values:     values,
	}
}

// Row returns the record values in schema order.
func (r *Record) Row(schema Schema) []string {
	row := make([]string, len(schema))
	for i, col := range schema {
		row[i] = r.Values[col]
	}
	return row
}
