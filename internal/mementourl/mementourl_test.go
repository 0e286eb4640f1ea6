package mementourl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	parsed, err := Parse("https://web.archive.org/web/20240115120000id_/https://example.com/path?q=1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/path?q=1", parsed.URL)
	require.Equal(t, "id_", parsed.Mode)
	require.Equal(t, 2024, parsed.Timestamp.Year())
}

func TestParseDefaultMode(t *testing.T) {
	parsed, err := Parse("https://web.archive.org/web/20240115120000/https://example.com/")
	require.NoError(t, err)
	require.Equal(t, "", parsed.Mode)
}

func TestParseRejectsNonMementoURL(t *testing.T) {
	_, err := Parse("https://example.com/not-a-memento")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	got := Format("https://example.com/", ts, "id_")
	require.Equal(t, "https://web.archive.org/web/20240115120000id_/https://example.com/", got)
}

func TestWithMode(t *testing.T) {
	got, err := WithMode("https://web.archive.org/web/20240115120000id_/https://example.com/", "")
	require.NoError(t, err)
	require.Equal(t, "https://web.archive.org/web/20240115120000/https://example.com/", got)
}
