// Package sanitize strips characters that are unsafe in file names and
// tabular exports from extracted tag values.
//
// Usage:
//
//	s := sanitize.New("-+_:.|")
//	s.Apply(rec)
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/dcmexport/backend/internal/models"
)

// DefaultKeep is the punctuation retained by default. It covers UID dots,
// time colons, and the separators common in device and station names.
const DefaultKeep = "-+_:.|"

// Sanitizer removes every rune outside its allow-list: letters, digits,
// the ASCII space and the keep set.
type Sanitizer struct {
	keep map[rune]struct{}
	skip map[string]struct{}
}

// New creates a Sanitizer that also keeps the runes in keep.
func New(keep string) *Sanitizer {
	s := &Sanitizer{
		keep: make(map[rune]struct{}, len(keep)),
		skip: map[string]struct{}{
			models.ColumnFilename:    {},
			models.ColumnExtractDate: {},
		},
	}
	for _, r := range keep {
		s.keep[r] = struct{}{}
	}
	return s
}

// Allowed reports whether r survives sanitization.
func (s *Sanitizer) Allowed(r rune) bool {
	if r == ' ' || unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	_, ok := s.keep[r]
	return ok
}

// String returns raw with disallowed runes removed, runs of spaces collapsed
// and surrounding spaces trimmed. Input is NFC-normalized first so that
// combining marks fold into their base letter.
func (s *Sanitizer) String(raw string) string {
	if raw == "" {
		return ""
	}
	raw = norm.NFC.String(raw)

	var b strings.Builder
	b.Grow(len(raw))
	lastSpace := true // drops leading spaces
	for _, r := range raw {
		if !s.Allowed(r) {
			continue
		}
		if r == ' ' {
			if lastSpace {
				continue
			}
			lastSpace = true
		} else {
			lastSpace = false
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

// Value sanitizes each component of a multi-valued element separately and
// rejoins them with models.ValueDelimiter.
func (s *Sanitizer) Value(raw string) string {
	if !strings.Contains(raw, models.ValueDelimiter) {
		return s.String(raw)
	}
	parts := strings.Split(raw, models.ValueDelimiter)
	for i, p := range parts {
		parts[i] = s.String(p)
	}
	return strings.Join(parts, models.ValueDelimiter)
}

// Apply sanitizes every column of rec in place, except the file name and
// the extract timestamp.
func (s *Sanitizer) Apply(rec *models.Record) {
	for col, v := range rec.Values {
		if _, ok := s.skip[col]; ok {
			continue
		}
		rec.Values[col] = s.Value(v)
	}
}
