// Package export writes sanitized records to output artifacts.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/storage"
)

var (
	// ErrUnknownFormat is returned for a format with no registered exporter.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrEmptyArtifact is returned when a closed artifact has zero size.
	ErrEmptyArtifact = errors.New("empty export artifact")
)

// Exporter defines the interface for record destinations.
type Exporter interface {
	// Name returns the artifact file name.
	Name() string
	// Write appends one record.
	Write(ctx context.Context, rec *models.Record) error
	// Close flushes and finalizes the artifact.
	Close() error
}

// Options configures exporters.
type Options struct {
	BaseName string
	Schema   models.Schema
	QuoteAll bool   // csv: quote every field
	Table    string // duckdb: table name
}

// Factory creates an exporter writing into store.
type Factory func(store storage.Store, opts Options) (Exporter, error)

// Registry holds the available exporters by format name.
type Registry struct {
	factories map[string]Factory
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry with every built-in format.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("csv", NewCSV)
	r.Register("json", NewJSON)
	r.Register("msgpack", NewMsgpack)
	r.Register("duckdb", NewDuckDB)
	return r
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds or replaces a format.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Names returns the registered formats, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open creates the exporter for one format.
func (r *Registry) Open(format string, store storage.Store, opts Options) (Exporter, error) {
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return f(store, opts)
}

// OpenAll creates one exporter per format. On failure, exporters already
// opened are closed.
func (r *Registry) OpenAll(formats []string, store storage.Store, opts Options) ([]Exporter, error) {
	exporters := make([]Exporter, 0, len(formats))
	for _, format := range formats {
		e, err := r.Open(format, store, opts)
		if err != nil {
			for _, opened := range exporters {
				opened.Close()
			}
			return nil, err
		}
		exporters = append(exporters, e)
	}
	return exporters, nil
}

// Verify checks that every named artifact exists and is not empty.
func Verify(store storage.Store, names ...string) error {
	var errs []error
	for _, name := range names {
		size, err := store.Size(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if size == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrEmptyArtifact, name))
		}
	}
	return errors.Join(errs...)
}

// artifactName joins the base name and extension.
func artifactName(opts Options, ext string) string {
	base := opts.BaseName
	if base == "" {
		base = "export_dicom_tags"
	}
	return base + ext
}

// createFresh removes a prior artifact before creating a new one.
func createFresh(store storage.Store, name string) (io.WriteCloser, error) {
	if err := store.Remove(name); err != nil {
		return nil, err
	}
	return store.Create(name)
}
