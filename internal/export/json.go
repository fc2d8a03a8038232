package export

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/storage"
)

// JSON writes newline delimited JSON, one object per record, with keys in
// schema order.
type JSON struct {
	name   string
	schema models.Schema
	f      io.WriteCloser
	w      *bufio.Writer
}

// NewJSON creates <base>.json, replacing any previous file.
func NewJSON(store storage.Store, opts Options) (Exporter, error) {
	name := artifactName(opts, ".json")
	f, err := createFresh(store, name)
	if err != nil {
		return nil, fmt.Errorf("json output: %w", err)
	}
	return &JSON{
		name:   name,
		schema: opts.Schema,
		f:      f,
		w:      bufio.NewWriter(f),
	}, nil
}

// Name returns the JSON artifact file name.
func (j *JSON) Name() string { return j.name }

// Write encodes the record as one line.
func (j *JSON) Write(_ context.Context, rec *models.Record) error {
	line, err := MarshalOrdered(j.schema, rec)
	if err != nil {
		return fmt.Errorf("json output: marshal: %w", err)
	}
	line = append(line, '\n')
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("json output: write: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (j *JSON) Close() error {
	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return fmt.Errorf("json output: flush: %w", err)
	}
	return j.f.Close()
}

// MarshalOrdered encodes rec as a JSON object whose keys follow schema.
// A plain map would come out with sorted keys.
func MarshalOrdered(schema models.Schema, rec *models.Record) ([]byte, error) {
	buf := make([]byte, 0, 64*len(schema))
	buf = append(buf, '{')
	for i, col := range schema {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(rec.Values[col])
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}
