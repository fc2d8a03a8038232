// Package scanner finds candidate DICOM files in an input directory.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/dcmexport/backend/internal/logging"
	"github.com/dcmexport/backend/internal/models"
)

// DICOMMime is the media type reported for Part 10 files.
const DICOMMime = "application/dicom"

// Options controls a scan.
type Options struct {
	Recursive    bool
	Extensions   []string // Matched case-insensitively, with the leading dot
	SniffContent bool     // Require the DICM preamble
	Logger       *logging.Logger
}

// Scan walks the root of fsys and returns matching files sorted by path.
func Scan(fsys billy.Filesystem, opts Options) ([]models.ScannedFile, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	root, err := fsys.Stat(".")
	if err != nil {
		return nil, fmt.Errorf("input directory %s: %w", fsys.Root(), err)
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", fsys.Root())
	}

	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	var files []models.ScannedFile
	err = util.Walk(fsys, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != "." && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		if opts.SniffContent {
			ok, err := IsDICOM(fsys, path)
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("unable to read file header")
				return nil
			}
			if !ok {
				log.Debug().Str("file", path).Msg("no DICM preamble, skipping")
				return nil
			}
		}

		files = append(files, models.ScannedFile{
			Path:    filepath.ToSlash(path),
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, fmt.Errorf("walking %s: %w", fsys.Root(), err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	log.Info().
		Int("found", len(files)).
		Bool("recursive", opts.Recursive).
		Strs("extensions", opts.Extensions).
		Msg("scan complete")

	return files, nil
}

// IsDICOM sniffs the file header for the DICOM Part 10 preamble.
func IsDICOM(fsys billy.Filesystem, path string) (bool, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return false, err
	}
	return mt.Is(DICOMMime), nil
}
