// Package pipeline runs scan -> extract -> normalize -> sanitize -> export
// over one input directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"github.com/dcmexport/backend/internal/config"
	"github.com/dcmexport/backend/internal/dicomtags"
	"github.com/dcmexport/backend/internal/export"
	"github.com/dcmexport/backend/internal/logging"
	"github.com/dcmexport/backend/internal/models"
	"github.com/dcmexport/backend/internal/sanitize"
	"github.com/dcmexport/backend/internal/scanner"
	"github.com/dcmexport/backend/internal/storage"
)

// Pipeline connects the scanner, extractor, sanitizer and exporters.
type Pipeline struct {
	input     billy.Filesystem
	output    storage.Store
	dumps     storage.Store // nil disables tag dumps
	scan      scanner.Options
	extractor *dicomtags.Extractor
	sanitizer *sanitize.Sanitizer // nil disables sanitization
	registry  *export.Registry
	formats   []string
	export    export.Options
	log       *logging.Logger
	runID     string
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDumps enables per-file tag dumps into store.
func WithDumps(store storage.Store) Option {
	return func(p *Pipeline) { p.dumps = store }
}

// WithSanitizer enables sanitization.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(p *Pipeline) { p.sanitizer = s }
}

// WithScanOptions replaces the scan options.
func WithScanOptions(opts scanner.Options) Option {
	return func(p *Pipeline) { p.scan = opts }
}

// WithFormats sets the export formats.
func WithFormats(formats ...string) Option {
	return func(p *Pipeline) { p.formats = formats }
}

// WithExportOptions sets base name, quoting and table options. The schema
// always comes from the extractor.
func WithExportOptions(opts export.Options) Option {
	return func(p *Pipeline) { p.export = opts }
}

// WithExtractor replaces the default extractor, which stamps records with
// the run start time.
func WithExtractor(e *dicomtags.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithRegistry replaces the global exporter registry.
func WithRegistry(r *export.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline reading from input and writing exports to output.
func New(input billy.Filesystem, output storage.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		input:    input,
		output:   output,
		scan:     scanner.Options{Extensions: []string{".dcm", ".dicom"}, SniffContent: true},
		registry: export.GetGlobalRegistry(),
		formats:  []string{"csv", "json"},
		log:      logging.Nop(),
		runID:    uuid.New().String(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromConfig builds a Pipeline from application configuration. The input
// directory must already exist.
func FromConfig(cfg *config.AppConfig, log *logging.Logger) (*Pipeline, error) {
	output, err := storage.NewOutputStore(cfg.Paths.OutputDirectory)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithLogger(log),
		WithFormats(cfg.Export.Formats...),
		WithScanOptions(scanner.Options{
			Recursive:    cfg.Scan.Recursive,
			Extensions:   cfg.Scan.Extensions,
			SniffContent: cfg.Scan.SniffContent,
		}),
		WithExportOptions(export.Options{
			BaseName: cfg.Export.BaseName,
			QuoteAll: cfg.Export.QuoteAll,
			Table:    cfg.Export.DuckDBTable,
		}),
	}
	if cfg.Sanitize.Enabled {
		opts = append(opts, WithSanitizer(sanitize.New(cfg.Sanitize.Keep)))
	}
	if cfg.Export.DumpTags {
		dumps, err := storage.NewOutputStore(cfg.Paths.DumpDirectory)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDumps(dumps))
	}

	return New(osfs.New(cfg.Paths.InputDirectory), output, opts...), nil
}

// RunID returns the id stamped on this pipeline's runs.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run processes every file once. Undecodable files are skipped and logged;
// export failures are returned. The summary is returned even on error.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	started := p.now()
	summary := models.NewRunSummary(p.runID, started)
	log := p.log.WithRun(p.runID)
	defer func() { summary.FinishedAt = p.now() }()

	scanOpts := p.scan
	scanOpts.Logger = log
	files, err := scanner.Scan(p.input, scanOpts)
	if err != nil {
		return summary, fmt.Errorf("pipeline scan: %w", err)
	}
	summary.Found = len(files)

	extractor := p.extractor
	if extractor == nil {
		extractor = dicomtags.NewExtractor(dicomtags.WithExtractDate(started))
	}

	var dumper *dicomtags.Dumper
	if p.dumps != nil {
		dumper = dicomtags.NewDumper(p.dumps)
		purged, err := dumper.Purge()
		if err != nil {
			return summary, fmt.Errorf("pipeline purge dumps: %w", err)
		}
		log.Info().Int("purged", purged).Msg("removed prior tag dumps")
	}

	records := make([]*models.Record, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		flog := log.WithFile(file.Path, file.Size)

		ds, err := extractor.Decode(p.input, file)
		if err != nil {
			flog.Warn().Err(err).Msg("skipping file")
			summary.Skip(file.Path, err.Error())
			continue
		}

		rec := extractor.Record(ds, file)
		dicomtags.Normalize(rec)
		if p.sanitizer != nil {
			p.sanitizer.Apply(rec)
		}
		records = append(records, rec)
		flog.Info().Msg("extracted")

		if dumper != nil {
			if _, err := dumper.Dump(ds, file); err != nil {
				flog.Warn().Err(err).Msg("tag dump failed")
			} else {
				summary.Dumped++
			}
		}
	}
	summary.Extracted = len(records)

	if len(records) == 0 {
		log.Warn().Int("found", summary.Found).Msg("no valid DICOM files, nothing to export")
		return summary, nil
	}

	names, err := p.writeExports(ctx, log, extractor.Schema(), records)
	summary.Outputs = append(summary.Outputs, names...)
	if err != nil {
		return summary, err
	}

	log.Info().
		Int("found", summary.Found).
		Int("extracted", summary.Extracted).
		Int("skipped", len(summary.Skipped)).
		Int("dumped", summary.Dumped).
		Strs("outputs", summary.Outputs).
		Msg("run complete")

	return summary, nil
}

func (p *Pipeline) writeExports(ctx context.Context, log *logging.Logger, schema models.Schema, records []*models.Record) ([]string, error) {
	opts := p.export
	opts.Schema = schema

	exporters, err := p.registry.OpenAll(p.formats, p.output, opts)
	if err != nil {
		return nil, fmt.Errorf("pipeline export: %w", err)
	}
	multi := export.NewMulti(exporters...)

	var errs []error
	for _, rec := range records {
		if err := multi.Write(ctx, rec); err != nil {
			errs = append(errs, err)
			break
		}
	}
	if err := multi.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		if err := export.Verify(p.output, multi.Names()...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return multi.Names(), fmt.Errorf("pipeline export: %w", err)
	}

	for _, name := range multi.Names() {
		log.Info().Str("artifact", name).Msg("export written")
	}
	return multi.Names(), nil
}
