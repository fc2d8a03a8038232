package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/storage"
)

// CSV writes a comma delimited file with a header row.
type CSV struct {
	name     string
	schema   models.Schema
	quoteAll bool
	f        io.WriteCloser
	w        *bufio.Writer
	cw       *csv.Writer // nil when quoteAll
}

// NewCSV creates <base>.csv, replacing any previous file.
func NewCSV(store storage.Store, opts Options) (Exporter, error) {
	name := artifactName(opts, ".csv")
	f, err := createFresh(store, name)
	if err != nil {
		return nil, fmt.Errorf("csv output: %w", err)
	}

	c := &CSV{
		name:     name,
		schema:   opts.Schema,
		quoteAll: opts.QuoteAll,
		f:        f,
		w:        bufio.NewWriter(f),
	}
	if !c.quoteAll {
		c.cw = csv.NewWriter(c.w)
	}

	if err := c.writeRow(opts.Schema); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// Name returns the CSV artifact file name.
func (c *CSV) Name() string { return c.name }

// Write appends one row in schema order.
func (c *CSV) Write(_ context.Context, rec *models.Record) error {
	return c.writeRow(rec.Row(c.schema))
}

// Close flushes the buffer and closes the file.
func (c *CSV) Close() error {
	if c.cw != nil {
		c.cw.Flush()
		if err := c.cw.Error(); err != nil {
			c.f.Close()
			return fmt.Errorf("csv output: flush: %w", err)
		}
	}
	if err := c.w.Flush(); err != nil {
		c.f.Close()
		return fmt.Errorf("csv output: flush: %w", err)
	}
	return c.f.Close()
}

func (c *CSV) writeRow(fields []string) error {
	if c.cw != nil {
		if err := c.cw.Write(fields); err != nil {
			return fmt.Errorf("csv output: write: %w", err)
		}
		return nil
	}

	for i, field := range fields {
		if i > 0 {
			c.w.WriteByte(',')
		}
		c.w.WriteByte('"')
		c.w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		c.w.WriteByte('"')
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("csv output: write: %w", err)
	}
	return nil
}
