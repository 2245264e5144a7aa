package ballot

import (
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/tealeg/xlsx/v2"
)

// timestampLayouts covers survey exports (US month-first) and ISO forms.
// Single-digit layout fields also accept two digits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04",
	"1-2-06 15:04",
	"1/2/2006",
	"2006-01-02",
}

// excelSerialMin rejects small numbers that are almost certainly not dates
// (serial 20000 is 1954-10-03).
const excelSerialMin = 20000

// ParseTimestamp parses a timestamp cell. Empty or unparseable values report
// false. Excel date serials are accepted for cells exported as raw numbers.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < excelSerialMin {
			return time.Time{}, false
		}
		return xlsx.TimeFromExcelTime(f, false).UTC(), true
	}

	if t, err := cast.ToTimeE(s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// ParseAddress parses a source address cell. IP addresses are returned in
// canonical form. Other non-empty text is accepted only when strict is false.
func ParseAddress(s string, strict bool) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if ip, err := netip.ParseAddr(s); err == nil {
		return ip.Unmap().String(), true
	}
	if strict {
		return "", false
	}
	return s, true
}
