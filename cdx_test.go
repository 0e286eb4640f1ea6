package wayback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMalformedURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "normal url", url: "https://example.com/path", want: false},
		{name: "data url", url: "data:text/html;base64,AAAA", want: true},
		{name: "mailto", url: "mailto:foo@example.com", want: true},
		{name: "emailish", url: "https://foo@example.com/", want: true},
		{name: "no tld-like host", url: "https://localhost/path", want: true},
		{name: "with port", url: "https://example.com:8080/path", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isMalformedURL(tt.url))
		})
	}
}

func TestCleanDefaultPort(t *testing.T) {
	require.Equal(t, "http://example.com/path", cleanDefaultPort("http://example.com:80/path"))
	require.Equal(t, "https://example.com/path", cleanDefaultPort("https://example.com:443/path"))
	require.Equal(t, "https://example.com:8443/path", cleanDefaultPort("https://example.com:8443/path"))
}

func TestParseCDXLine(t *testing.T) {
	line := "org,example)/ 20240115120000 https://example.com/ text/html 200 ABCDEF1234567890ABCDEF1234567890ABCDEF12 1024"
	record, err := parseCDXLine(line, nil)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/", record.URL)
	require.Equal(t, 200, record.StatusCode)
	require.True(t, record.StatusOK)
	require.EqualValues(t, 1024, record.Length)
	require.True(t, record.LengthOK)
	require.Equal(t, "https://web.archive.org/web/20240115120000id_/https://example.com/", record.RawURL)
	require.Equal(t, "https://web.archive.org/web/20240115120000/https://example.com/", record.ViewURL)
}

func TestParseCDXLineHandlesAbsentFields(t *testing.T) {
	line := "org,example)/ 20240115120000 https://example.com/ warc/revisit - ABCDEF1234567890ABCDEF1234567890ABCDEF12 -"
	record, err := parseCDXLine(line, nil)
	require.NoError(t, err)
	require.False(t, record.StatusOK)
	require.False(t, record.LengthOK)
}

func TestParseCDXLineRejectsMalformedLine(t *testing.T) {
	_, err := parseCDXLine("too few fields", nil)
	require.Error(t, err)
}

func TestHasResumeKeyMarker(t *testing.T) {
	require.True(t, hasResumeKeyMarker([]string{"line1", "", "resumekey"}))
	require.False(t, hasResumeKeyMarker([]string{"line1", "line2"}))
}

func TestBuildSearchQueryIncludesDefaults(t *testing.T) {
	opts := DefaultSearchOptions()
	query := buildSearchQuery("https://example.com/", opts)

	found := map[string]string{}
	for _, p := range query {
		found[p.Key] = p.Value
	}
	require.Equal(t, "https://example.com/", found["url"])
	require.Equal(t, "true", found["resolveRevisits"])
	require.Equal(t, "true", found["showResumeKey"])
}
