package dicomtags

import (
	"strings"

	"github.com/dcmexport/backend/internal/models"
)

// Normalize rewrites study_date to YYYY-MM-DD and study_time to HH:MM:SS.
// Values that cannot be parsed become "".
func Normalize(rec *models.Record) {
	if v, ok := rec.Values[KeyStudyDate]; ok {
		rec.Values[KeyStudyDate] = NormalizeDate(v)
	}
	if v, ok := rec.Values[KeyStudyTime]; ok {
		rec.Values[KeyStudyTime] = NormalizeTime(v)
	}
}

// NormalizeDate converts a DA value ("20240131", or legacy "2024.01.31").
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if len(s) == 10 && s[4] == '.' && s[7] == '.' {
		s = s[0:4] + s[5:7] + s[8:10]
	}
	if len(s) != 8 {
		return ""
	}

	year := parseInt4(s[0:4])
	month := parseInt2(s[4:6])
	day := parseInt2(s[6:8])
	if year < 0 || month < 1 || month > 12 || day < 1 || day > daysIn(month, year) {
		return ""
	}
	return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
}

// NormalizeTime converts a TM value ("HHMMSS.FFFFFF", "HHMMSS", "HHMM", "HH",
// or legacy "HH:MM:SS"). Fractional seconds are dropped.
func NormalizeTime(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ":", "")

	hh, mm, ss := "00", "00", "00"
	switch len(s) {
	case 6:
		hh, mm, ss = s[0:2], s[2:4], s[4:6]
	case 4:
		hh, mm = s[0:2], s[2:4]
	case 2:
		hh = s
	default:
		return ""
	}

	hour := parseInt2(hh)
	min := parseInt2(mm)
	sec := parseInt2(ss)
	// 60 is a valid leap second in TM
	if hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 60 {
		return ""
	}
	return hh + ":" + mm + ":" + ss
}

func daysIn(month, year int) int {
	switch month {
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	if len(s) != 2 {
		return -1
	}
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	if len(s) != 4 {
		return -1
	}
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}
