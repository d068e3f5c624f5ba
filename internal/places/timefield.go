package places

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/paulmach/orb/geojson"
)

// TimeProperty is the canonical feature property holding an ISO-8601 time.
const TimeProperty = "time"

// feature property aliases folded into TimeProperty, first match wins
var featureTimeAliases = []string{"datetime", "timestamp", "date-time", "date"}

const (
	isoNaive = "2006-01-02T15:04:05.999999999"
	isoZoned = "2006-01-02T15:04:05.999999999Z07:00"
)

// NormalizeTime moves the first time alias found in props to TimeProperty as
// an ISO-8601 string. All alias keys are removed. A null alias value leaves no
// time property behind.
func NormalizeTime(props geojson.Properties) error {
	src := ""
	var raw any
	for _, a := range featureTimeAliases {
		if v, ok := props[a]; ok {
			src, raw = a, v
			break
		}
	}
	if src == "" {
		return nil
	}
	for _, a := range featureTimeAliases {
		delete(props, a)
	}
	if raw == nil {
		return nil
	}
	s, err := ISOTime(raw)
	if err != nil {
		return &ParseError{Property: src, Value: raw, Err: err}
	}
	props[TimeProperty] = s
	return nil
}

// ISOTime parses v leniently and formats it as ISO-8601. Strings without zone
// information stay without an offset. Epochs, numeric or all-digit strings,
// come out in UTC.
func ISOTime(v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Format(isoZoned), nil
	case float64:
		return unixISO(t), nil
	case int:
		return unixISO(float64(t)), nil
	case int64:
		return unixISO(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return "", fmt.Errorf("numeric time: %w", err)
		}
		return unixISO(f), nil
	case string:
		return parseISO(t)
	default:
		return "", fmt.Errorf("unsupported time value type %T", v)
	}
}

func unixISO(sec float64) string {
	whole := int64(sec)
	nsec := int64((sec - float64(whole)) * 1e9)
	return time.Unix(whole, nsec).UTC().Format(isoZoned)
}

func parseISO(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty time value")
	}
	tm, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", err
	}
	if isEpochDigits(s) {
		return tm.UTC().Format(isoZoned), nil
	}
	layout, _ := dateparse.ParseFormat(s)
	if !hasZone(layout, s) {
		return tm.Format(isoNaive), nil
	}
	// unknown abbreviations parse with a zero offset
	if name, off := tm.Zone(); off == 0 && !utcNames[strings.ToUpper(name)] {
		return "", fmt.Errorf("unknown time zone %q", name)
	}
	return tm.Format(isoZoned), nil
}

var utcNames = map[string]bool{"": true, "UTC": true, "GMT": true, "Z": true}

// isEpochDigits matches the all-digit forms dateparse reads as Unix seconds,
// milliseconds, microseconds or nanoseconds.
func isEpochDigits(s string) bool {
	switch len(s) {
	case 10, 13, 16, 19:
	default:
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasZone(layout, s string) bool {
	for _, tok := range []string{"Z07", "-07", "+07", "MST"} {
		if strings.Contains(layout, tok) {
			return true
		}
	}
	u := strings.ToUpper(s)
	return strings.HasSuffix(u, "Z") || strings.HasSuffix(u, "UTC") || strings.HasSuffix(u, "GMT")
}
