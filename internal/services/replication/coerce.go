package replication

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"db_replicator/internal/domain"

	"github.com/jinzhu/now"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// temporalParser accepts the common layouts on top of RFC 3339.
var temporalParser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats: append([]string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"1/2/2006 3:04:05 PM",
		"1/2/2006",
		"Jan 2, 2006",
		"2 Jan 2006",
		time.RFC1123,
		time.RFC1123Z,
	}, now.TimeFormats...),
}

// coerceValue converts a record value into the argument bound for col.
// A temporal column whose value cannot be parsed yields a KindCoercion error;
// callers store NULL instead.
func coerceValue(col domain.ReplicationColumn, v domain.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if col.Serialize {
		s, err := v.JSON()
		if err != nil {
			return nil, domain.WrapError(domain.KindCoercion, "serialize", col.Name, err)
		}
		return s, nil
	}

	switch strings.ToLower(col.DataType) {
	case domain.TypeDate:
		t, err := parseTemporal(v)
		if err != nil {
			return nil, domain.WrapError(domain.KindCoercion, "coerce date", col.Name, err)
		}
		return t.Format(dateLayout), nil
	case domain.TypeDateTime:
		t, err := parseTemporal(v)
		if err != nil {
			return nil, domain.WrapError(domain.KindCoercion, "coerce datetime", col.Name, err)
		}
		return t.Format(dateTimeLayout), nil
	case domain.TypeTime:
		d, err := parseDuration(v)
		if err != nil {
			return nil, domain.WrapError(domain.KindCoercion, "coerce time", col.Name, err)
		}
		return FormatTimeSpan(d), nil
	}

	switch v.Kind() {
	case domain.ValueBool:
		b, _ := v.Bool()
		return b, nil
	case domain.ValueNumber:
		return numberArg(col, v.String()), nil
	default:
		return v.String(), nil
	}
}

// numberArg keeps decimals as text so no precision is lost.
func numberArg(col domain.ReplicationColumn, text string) any {
	if strings.HasPrefix(strings.ToLower(col.DataType), "decimal") {
		return text
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

func parseTemporal(v domain.Value) (time.Time, error) {
	if t, ok := v.Time(); ok {
		return t, nil
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return time.Time{}, fmt.Errorf("empty value")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return temporalParser.Parse(s)
}

func parseDuration(v domain.Value) (time.Duration, error) {
	if t, ok := v.Time(); ok {
		y, m, d := t.Date()
		return t.Sub(time.Date(y, m, d, 0, 0, 0, 0, t.Location())), nil
	}
	return ParseTimeSpan(v.String())
}

const ticksPerDay = 24 * time.Hour

// ParseTimeSpan parses "[-]d", "[-][d.]hh:mm" and "[-][d.]hh:mm:ss[.fffffff]".
// Hours must be below 24, minutes and seconds below 60.
func ParseTimeSpan(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid time span %q", s)
	}

	var days int64
	clock := s
	if !strings.Contains(s, ":") {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time span %q", s)
		}
		days, clock = n, ""
	} else if dot := strings.IndexByte(s, '.'); dot >= 0 && dot < strings.IndexByte(s, ':') {
		n, err := strconv.ParseInt(s[:dot], 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time span %q", s)
		}
		days, clock = n, s[dot+1:]
	}
	if days > int64(math.MaxInt64/ticksPerDay)-1 {
		return 0, fmt.Errorf("time span %q out of range", s)
	}

	total := time.Duration(days) * ticksPerDay
	if clock != "" {
		d, err := parseClock(clock)
		if err != nil {
			return 0, fmt.Errorf("invalid time span %q: %w", s, err)
		}
		total += d
	}
	if neg {
		total = -total
	}
	return total, nil
}

func parseClock(clock string) (time.Duration, error) {
	var fraction string
	if dot := strings.IndexByte(clock, '.'); dot >= 0 {
		clock, fraction = clock[:dot], clock[dot+1:]
	}
	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 || (fraction != "" && len(parts) != 3) {
		return 0, fmt.Errorf("expected hh:mm[:ss[.fffffff]]")
	}
	limits := []int{24, 60, 60}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] || len(p) > 2 {
			return 0, fmt.Errorf("component %q out of range", p)
		}
		d += time.Duration(n) * units[i]
	}
	if fraction != "" {
		if len(fraction) > 7 {
			return 0, fmt.Errorf("fraction %q too long", fraction)
		}
		n, err := strconv.Atoi(fraction)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid fraction %q", fraction)
		}
		// scale to 100ns ticks
		for i := len(fraction); i < 7; i++ {
			n *= 10
		}
		d += time.Duration(n) * 100 * time.Nanosecond
	}
	return d, nil
}

// FormatTimeSpan renders d as "[-][d.]hh:mm:ss[.fffffff]".
func FormatTimeSpan(d time.Duration) string {
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	days := d / ticksPerDay
	d -= days * ticksPerDay
	if days > 0 {
		sb.WriteString(strconv.FormatInt(int64(days), 10))
		sb.WriteByte('.')
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	d -= sec * time.Second
	fmt.Fprintf(&sb, "%02d:%02d:%02d", int64(h), int64(m), int64(sec))
	if ticks := d / 100; ticks > 0 {
		fmt.Fprintf(&sb, ".%07d", int64(ticks))
	}
	return sb.String()
}
