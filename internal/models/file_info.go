package models

import "time"

// ScannedFile represents a candidate DICOM file found by the scanner.
type ScannedFile struct {
	Path    string    `json:"path"` // Relative to the scanned root
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}
