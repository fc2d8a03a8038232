package export

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/storage"
)

const duckBatchSize = 5000

// DuckDB writes records into a table of a DuckDB database file, one VARCHAR
// column per schema field. Rows are batched and inserted through the
// Appender API.
type DuckDB struct {
	name   string
	path   string
	table  string
	schema models.Schema
	db     *sql.DB
	batch  [][]string
	rows   int
}

// NewDuckDB creates <base>.duckdb, replacing any previous database.
func NewDuckDB(store storage.Store, opts Options) (Exporter, error) {
	name := artifactName(opts, ".duckdb")
	if err := store.Remove(name); err != nil {
		return nil, fmt.Errorf("duckdb output: %w", err)
	}
	if err := store.Remove(name + ".wal"); err != nil {
		return nil, fmt.Errorf("duckdb output: %w", err)
	}

	table := opts.Table
	if table == "" {
		table = "extracts"
	}

	path := store.LocalPath(name)
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=1",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("duckdb output: failed to create connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(createTableSQL(table, opts.Schema)); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("duckdb output: failed to create table: %w", err)
	}

	return &DuckDB{
		name:   name,
		path:   path,
		table:  table,
		schema: opts.Schema,
		db:     db,
		batch:  make([][]string, 0, duckBatchSize),
	}, nil
}

// Name returns the DuckDB artifact file name.
func (d *DuckDB) Name() string { return d.name }

// Write buffers the record and flushes full batches.
func (d *DuckDB) Write(ctx context.Context, rec *models.Record) error {
	d.batch = append(d.batch, rec.Row(d.schema))
	if len(d.batch) >= duckBatchSize {
		return d.flushBatch(ctx)
	}
	return nil
}

// Close flushes remaining rows and closes the database.
func (d *DuckDB) Close() error {
	if err := d.flushBatch(context.Background()); err != nil {
		d.db.Close()
		return err
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("duckdb output: close: %w", err)
	}
	return nil
}

// flushBatch writes the current batch using the native Appender API.
func (d *DuckDB) flushBatch(ctx context.Context) error {
	if len(d.batch) == 0 {
		return nil
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("duckdb output: failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", d.table)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, row := range d.batch {
			values := make([]driver.Value, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := appender.AppendRow(values...); err != nil {
				return fmt.Errorf("failed to append row %d: %w", d.rows+i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("duckdb output: appender error: %w", err)
	}

	d.rows += len(d.batch)
	d.batch = d.batch[:0]
	return nil
}

func createTableSQL(table string, schema models.Schema) string {
	cols := make([]string, len(schema))
	for i, col := range schema {
		cols[i] = quoteIdent(col) + " VARCHAR"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
