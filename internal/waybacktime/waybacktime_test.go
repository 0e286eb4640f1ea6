package waybacktime

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "full 14-digit timestamp unchanged", input: "20240115120000", want: "20240115120000"},
		{name: "8-digit date padded with zero time", input: "20240115", want: "20240115000000"},
		{name: "month-00 corruption shifts day into month slot", input: "20240099123456", want: "20249912345600"},
		{name: "day-00 corruption shifts hour into day slot", input: "20240100123456", want: "20240112345600"},
		{name: "non-numeric rejected", input: "2024abcd", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "too short rejected", input: "2024", wantErr: true},
		{name: "too long rejected", input: "202401151200001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repair(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRepairLogsWarningOnCorruption(t *testing.T) {
	var buf bytes.Buffer
	wblog.Configure(wblog.Config{Output: &buf})

	_, err := repair("20240099123456")
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "waybacktime", entry["component"])
	require.Equal(t, "20240099123456", entry["original"])
	require.Equal(t, "20249912345600", entry["repaired"])
}

func TestRepairDoesNotLogWhenUncorrupted(t *testing.T) {
	var buf bytes.Buffer
	wblog.Configure(wblog.Config{Output: &buf})

	_, err := repair("20240115120000")
	require.NoError(t, err)
	require.Empty(t, buf.String())
}

func TestParseAndFormatRoundTrip(t *testing.T) {
	ts, err := Parse("20240115120000")
	require.NoError(t, err)
	require.Equal(t, 2024, ts.Year())
	require.Equal(t, time.Month(1), ts.Month())
	require.Equal(t, "20240115120000", Format(ts))
}

func TestNormalizePrefix(t *testing.T) {
	got, err := NormalizePrefix("202401")
	require.NoError(t, err)
	require.Equal(t, "202401", got)

	_, err = NormalizePrefix("not-a-timestamp")
	require.Error(t, err)
}
