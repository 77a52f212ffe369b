package replication

import (
	"testing"
	"time"

	"db_replicator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceValue(t *testing.T) {
	date := domain.ReplicationColumn{Name: "d", DataType: "date"}
	datetime := domain.ReplicationColumn{Name: "dt", DataType: "datetime"}
	clock := domain.ReplicationColumn{Name: "t", DataType: "time"}
	text := domain.ReplicationColumn{Name: "s", DataType: "longtext"}
	number := domain.ReplicationColumn{Name: "n", DataType: "bigint"}
	decimal := domain.ReplicationColumn{Name: "m", DataType: "decimal(38,18)"}
	jsonCol := domain.ReplicationColumn{Name: "j", DataType: "longtext", Serialize: true}

	tests := []struct {
		name string
		col  domain.ReplicationColumn
		in   domain.Value
		want any
	}{
		{"null stays null", text, domain.NullValue(), nil},
		{"date from iso", date, domain.StringValue("2024-03-05"), "2024-03-05"},
		{"date from rfc3339", date, domain.StringValue("2024-03-05T22:10:00Z"), "2024-03-05"},
		{"date from us format", date, domain.StringValue("03/05/2024"), "2024-03-05"},
		{"date from temporal", date, domain.TemporalValue(time.Date(2024, 3, 5, 1, 2, 3, 0, time.UTC)), "2024-03-05"},
		{"datetime from iso", datetime, domain.StringValue("2024-03-05T08:09:10"), "2024-03-05 08:09:10"},
		{"datetime from space layout", datetime, domain.StringValue("2024-03-05 08:09:10"), "2024-03-05 08:09:10"},
		{"time from clock", clock, domain.StringValue("08:09:10"), "08:09:10"},
		{"time with days", clock, domain.StringValue("1.02:03:04.5"), "1.02:03:04.5000000"},
		{"time from temporal", clock, domain.TemporalValue(time.Date(2024, 3, 5, 13, 14, 15, 0, time.UTC)), "13:14:15"},
		{"string as is", text, domain.StringValue(`it's a \ @ test`), `it's a \ @ test`},
		{"bool", text, domain.BoolValue(true), true},
		{"integer", number, domain.NumberValue("42"), int64(42)},
		{"float", number, domain.NumberValue("4.5"), 4.5},
		{"decimal keeps text", decimal, domain.NumberValue("1.100000000000000001"), "1.100000000000000001"},
		{"json string", jsonCol, domain.StringValue("a"), `"a"`},
		{"json nested", jsonCol, domain.NestedValue(map[string]any{"k": 1}), `{"k":1}`},
		{"nested in text column", text, domain.NestedValue([]any{"x", "y"}), `["x","y"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(tt.col, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceValueUnparsableTemporal(t *testing.T) {
	tests := []struct {
		name string
		col  domain.ReplicationColumn
		in   string
	}{
		{"date", domain.ReplicationColumn{Name: "d", DataType: "date"}, "not-a-date"},
		{"datetime", domain.ReplicationColumn{Name: "dt", DataType: "datetime"}, "2024-13-45 99:99"},
		{"time", domain.ReplicationColumn{Name: "t", DataType: "time"}, "25:00:00"},
		{"empty date", domain.ReplicationColumn{Name: "d", DataType: "date"}, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(tt.col, domain.StringValue(tt.in))
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindCoercion))
			assert.Nil(t, got)
		})
	}
}

func TestParseTimeSpan(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "08:09", want: 8*time.Hour + 9*time.Minute},
		{in: "08:09:10", want: 8*time.Hour + 9*time.Minute + 10*time.Second},
		{in: "3", want: 72 * time.Hour},
		{in: "-1.00:00:01", want: -(24*time.Hour + time.Second)},
		{in: "00:00:00.0000001", want: 100 * time.Nanosecond},
		{in: "00:00:01.25", want: 1250 * time.Millisecond},
		{in: " 10:00:00 ", want: 10 * time.Hour},
		{in: "24:00:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "10", want: 240 * time.Hour},
		{in: "10:00.5", wantErr: true},
		{in: "00:00:00.12345678", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "-", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeSpan(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTimeSpan(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{8*time.Hour + 9*time.Minute + 10*time.Second, "08:09:10"},
		{26 * time.Hour, "1.02:00:00"},
		{-(90 * time.Minute), "-01:30:00"},
		{1250 * time.Millisecond, "00:00:01.2500000"},
		{100 * time.Nanosecond, "00:00:00.0000001"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimeSpan(tt.in))
		})
	}
}

func TestTimeSpanRoundTrip(t *testing.T) {
	for _, s := range []string{"00:00:00", "1.02:03:04", "-3.23:59:59.9999999", "12:00:00.0000010"} {
		d, err := ParseTimeSpan(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatTimeSpan(d))
	}
}
