// Package dicomtags reads a fixed set of DICOM attributes into flat records.
package dicomtags

import (
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dcmexport/backend/internal/models"
)

// MetaGroup is the file meta information group.
const MetaGroup = 0x0002

// DefaultFields is the fixed tag table, in output column order.
var DefaultFields = []models.Field{
	{Key: "modality", Tag: models.Tag{Group: 0x0008, Element: 0x0060}},
	{Key: "sopInstanceUid", Tag: models.Tag{Group: 0x0002, Element: 0x0003}, Meta: true},
	{Key: "institution_name", Tag: models.Tag{Group: 0x0008, Element: 0x0080}},
	{Key: "manufacturer", Tag: models.Tag{Group: 0x0008, Element: 0x0070}},
	{Key: "manufacturer_model", Tag: models.Tag{Group: 0x0008, Element: 0x1090}},
	{Key: "sourceAET", Tag: models.Tag{Group: 0x0002, Element: 0x0016}, Meta: true},
	{Key: "station_name", Tag: models.Tag{Group: 0x0008, Element: 0x1010}},
	{Key: "study_description", Tag: models.Tag{Group: 0x0008, Element: 0x1030}},
	{Key: "study_date", Tag: models.Tag{Group: 0x0008, Element: 0x0020}},
	{Key: "study_time", Tag: models.Tag{Group: 0x0008, Element: 0x0030}},
	{Key: "transferSyntaxUid", Tag: models.Tag{Group: 0x0002, Element: 0x0010}, Meta: true},
}

// Column keys that receive special handling.
const (
	KeyStudyDate         = "study_date"
	KeyStudyTime         = "study_time"
	KeyTransferSyntaxUID = "transferSyntaxUid"
)

// transferSyntaxNames maps common transfer syntax UIDs to readable names.
var transferSyntaxNames = map[string]string{
	"1.2.840.10008.1.2":      "ImplicitVRLittleEndian",
	"1.2.840.10008.1.2.1":    "ExplicitVRLittleEndian",
	"1.2.840.10008.1.2.2":    "ExplicitVRBigEndian",
	"1.2.840.10008.1.2.4.50": "JPEGBaseLineLossy8bit",
	"1.2.840.10008.1.2.4.51": "JPEGBaseLineLossy12bit",
	"1.2.840.10008.1.2.4.70": "JPEGLossless",
	"1.2.840.10008.1.2.4.80": "JPEGLSLossless",
	"1.2.840.10008.1.2.4.90": "JPEG2000Lossless",
	"1.2.840.10008.1.2.4.91": "JPEG2000Lossy",
	"1.2.840.10008.1.2.5":    "RLELossless",
}

// TransferSyntaxName returns the readable name for uid, or "" if unknown.
func TransferSyntaxName(uid string) string {
	return transferSyntaxNames[uid]
}

// TransferSyntaxMap returns a copy of the UID -> name map. With
// includeReverse, name -> UID pairs are added as well.
func TransferSyntaxMap(includeReverse bool) map[string]string {
	m := make(map[string]string, len(transferSyntaxNames)*2)
	for uid, name := range transferSyntaxNames {
		m[uid] = name
		if includeReverse {
			m[name] = uid
		}
	}
	return m
}

func toLibraryTag(t models.Tag) tag.Tag {
	return tag.Tag{Group: t.Group, Element: t.Element}
}
