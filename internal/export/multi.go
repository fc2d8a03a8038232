package export

import (
	"context"
	"errors"

	"github.com/dcmexport/backend/internal/models"
)

// Multi fans out records to multiple exporters.
// If one exporter fails, the remaining exporters still receive the record.
type Multi struct {
	exporters []Exporter
}

// NewMulti creates a Multi that fans out to the given exporters.
func NewMulti(exporters ...Exporter) *Multi {
	return &Multi{exporters: exporters}
}

// Names returns the artifact names of every wrapped exporter.
func (m *Multi) Names() []string {
	names := make([]string, len(m.exporters))
	for i, e := range m.exporters {
		names[i] = e.Name()
	}
	return names
}

// Write delivers the record to every wrapped exporter, joining errors.
func (m *Multi) Write(ctx context.Context, rec *models.Record) error {
	var errs []error
	for _, e := range m.exporters {
		if err := e.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped exporter, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, e := range m.exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
