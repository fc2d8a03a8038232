// Package testutil builds synthetic DICOM files for tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Common tags used by fixtures.
var (
	TagMediaStorageSOPClassUID    = tag.Tag{Group: 0x0002, Element: 0x0002}
	TagMediaStorageSOPInstanceUID = tag.Tag{Group: 0x0002, Element: 0x0003}
	TagTransferSyntaxUID          = tag.Tag{Group: 0x0002, Element: 0x0010}
	TagSourceAET                  = tag.Tag{Group: 0x0002, Element: 0x0016}
	TagStudyDate                  = tag.Tag{Group: 0x0008, Element: 0x0020}
	TagStudyTime                  = tag.Tag{Group: 0x0008, Element: 0x0030}
	TagModality                   = tag.Tag{Group: 0x0008, Element: 0x0060}
	TagManufacturer               = tag.Tag{Group: 0x0008, Element: 0x0070}
	TagInstitutionName            = tag.Tag{Group: 0x0008, Element: 0x0080}
	TagStationName                = tag.Tag{Group: 0x0008, Element: 0x1010}
	TagStudyDescription           = tag.Tag{Group: 0x0008, Element: 0x1030}
	TagManufacturerModelName      = tag.Tag{Group: 0x0008, Element: 0x1090}
)

// ExplicitVRLittleEndian is the transfer syntax fixtures are written with.
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

// Attrs maps a tag to its string value.
type Attrs map[tag.Tag]string

// DefaultMeta returns the file meta elements every fixture carries.
func DefaultMeta() Attrs {
	return Attrs{
		TagMediaStorageSOPClassUID:    "1.2.840.10008.5.1.4.1.1.2",
		TagMediaStorageSOPInstanceUID: "1.2.826.0.1.3680043.2.1125.1",
		TagTransferSyntaxUID:          ExplicitVRLittleEndian,
	}
}

// EncodeDICOM returns a Part 10 file containing the default meta plus attrs.
func EncodeDICOM(t testing.TB, attrs Attrs) []byte {
	t.Helper()

	merged := DefaultMeta()
	for k, v := range attrs {
		merged[k] = v
	}

	tags := make([]tag.Tag, 0, len(merged))
	for k := range merged {
		tags = append(tags, k)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Group != tags[j].Group {
			return tags[i].Group < tags[j].Group
		}
		return tags[i].Element < tags[j].Element
	})

	ds := dicom.Dataset{}
	for _, tg := range tags {
		elem, err := dicom.NewElement(tg, []string{merged[tg]})
		if err != nil {
			t.Fatalf("building element %v: %v", tg, err)
		}
		ds.Elements = append(ds.Elements, elem)
	}

	var buf bytes.Buffer
	if err := dicom.Write(&buf, ds); err != nil {
		t.Fatalf("writing DICOM: %v", err)
	}
	return buf.Bytes()
}

// WriteDICOM writes a fixture to path, creating parent directories.
func WriteDICOM(t testing.TB, path string, attrs Attrs) {
	t.Helper()
	WriteFile(t, path, EncodeDICOM(t, attrs))
}

// Preamble returns a 128 byte preamble followed by the DICM magic and body.
// The result passes content sniffing but is not a decodable dataset unless
// body is one.
func Preamble(body []byte) []byte {
	out := make([]byte, 128, 132+len(body))
	out = append(out, 'D', 'I', 'C', 'M')
	return append(out, body...)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
