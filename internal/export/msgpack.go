package export

import (
	"context"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/storage"
)

// Msgpack writes one msgpack array holding a map per record. Records are
// buffered because the array length is written first.
type Msgpack struct {
	name   string
	schema models.Schema
	f      io.WriteCloser
	rows   [][]string
}

// NewMsgpack creates <base>.msgpack, replacing any previous file.
func NewMsgpack(store storage.Store, opts Options) (Exporter, error) {
	name := artifactName(opts, ".msgpack")
	f, err := createFresh(store, name)
	if err != nil {
		return nil, fmt.Errorf("msgpack output: %w", err)
	}
	return &Msgpack{name: name, schema: opts.Schema, f: f}, nil
}

// Name returns the msgpack artifact file name.
func (m *Msgpack) Name() string { return m.name }

// Write buffers the record.
func (m *Msgpack) Write(_ context.Context, rec *models.Record) error {
	m.rows = append(m.rows, rec.Row(m.schema))
	return nil
}

// Close encodes the buffered records and closes the file.
func (m *Msgpack) Close() error {
	if err := m.encode(); err != nil {
		m.f.Close()
		return fmt.Errorf("msgpack output: %w", err)
	}
	return m.f.Close()
}

func (m *Msgpack) encode() error {
	enc := msgpack.NewEncoder(m.f)
	if err := enc.EncodeArrayLen(len(m.rows)); err != nil {
		return err
	}
	for _, row := range m.rows {
		if err := enc.EncodeMapLen(len(m.schema)); err != nil {
			return err
		}
		for i, col := range m.schema {
			if err := enc.EncodeString(col); err != nil {
				return err
			}
			if err := enc.EncodeString(row[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
