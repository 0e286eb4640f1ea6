package wayback

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/linkheader"
)

func newTestResponse(statusCode int, header http.Header, body string) *Response {
	if header == nil {
		header = http.Header{}
	}
	u, _ := url.Parse("https://web.archive.org/web/20240115120000/https://example.com/")
	return &Response{
		StatusCode: statusCode,
		Header:     header,
		URL:        u,
		body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestResolveOptionsDefaults(t *testing.T) {
	o := resolveOptions(nil)
	require.Equal(t, ModeOriginal, o.mode)
	require.True(t, o.exact)
	require.True(t, o.exactRedirects)
	require.True(t, o.followRedirects)
	require.Equal(t, defaultTargetWindow, o.targetWindow)
}

func TestResolveOptionsExactRedirectsDefaultsToExact(t *testing.T) {
	o := resolveOptions([]MementoOption{WithExact(false)})
	require.False(t, o.exact)
	require.False(t, o.exactRedirects)
}

func TestResolveOptionsExactRedirectsExplicitOverridesExact(t *testing.T) {
	o := resolveOptions([]MementoOption{WithExact(false), WithExactRedirects(true)})
	require.False(t, o.exact)
	require.True(t, o.exactRedirects)
}

func TestClassifyRefusalBlockedSite(t *testing.T) {
	resp := newTestResponse(http.StatusForbidden, nil, "AdministrativeAccessControlException: URL has been excluded")
	err := classifyRefusal(resp)
	require.ErrorIs(t, err, ErrBlockedSite)
}

func TestClassifyRefusalBlockedByRobots(t *testing.T) {
	resp := newTestResponse(http.StatusForbidden, nil, "RobotAccessControlException: blocked by robots.txt")
	err := classifyRefusal(resp)
	require.ErrorIs(t, err, ErrBlockedByRobots)
}

func TestClassifyRefusalNoMemento(t *testing.T) {
	resp := newTestResponse(http.StatusNotFound, nil, "")
	err := classifyRefusal(resp)
	require.ErrorIs(t, err, ErrNoMemento)
}

func TestClassifyRefusalRuntimeError(t *testing.T) {
	header := http.Header{}
	header.Set("X-Archive-Wayback-Runtime-Error", "RuntimeException: boom")
	resp := newTestResponse(http.StatusInternalServerError, header, "")
	err := classifyRefusal(resp)
	require.ErrorIs(t, err, ErrMementoPlayback)
}

func TestSameHostIgnoresWWWPrefix(t *testing.T) {
	require.True(t, sameHost("https://www.example.com/a", "https://example.com/a"))
	require.True(t, sameHost("https://example.com/a", "https://www2.example.com/a"))
	require.False(t, sameHost("https://example.com/a", "https://other.com/a"))
}

func TestExtractHistoricalHeaders(t *testing.T) {
	header := http.Header{}
	header.Set("X-Archive-Orig-Content-Type", "text/plain")
	header.Set("X-Archive-Orig-Cache-Control", "no-cache")
	header.Set("Content-Type", "text/html")
	header.Set("Content-Encoding", "gzip")

	got := extractHistoricalHeaders(header)
	require.Equal(t, "text/html", got.Get("Content-Type"))
	require.Equal(t, "no-cache", got.Get("Cache-Control"))
	require.Empty(t, got.Get("Content-Encoding"))
}

func TestDetectViewModeRedirect(t *testing.T) {
	currentDate := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	body := `<html><body>Got an HTTP 301 response at crawl time
	<a href="/web/20240115120000/https://example.com/new">redirecting</a>
	</body></html>`
	resp := newTestResponse(http.StatusOK, nil, body)

	target, err := detectViewModeRedirect(resp, currentDate)
	require.NoError(t, err)
	require.Equal(t, "https://web.archive.org/web/20240115120000/https://example.com/new", target)
}

func TestDetectViewModeRedirectNoRedirectText(t *testing.T) {
	resp := newTestResponse(http.StatusOK, nil, "<html><body>hello</body></html>")
	target, err := detectViewModeRedirect(resp, time.Now())
	require.NoError(t, err)
	require.Empty(t, target)
}

func TestCleanMementoLinksRewritesMementoRel(t *testing.T) {
	links := map[string]linkheader.Link{
		"memento":  {URL: "https://web.archive.org/web/20240115120000/https://example.com/"},
		"original": {URL: "https://example.com/"},
	}
	got := cleanMementoLinks(links, ModeOriginal)
	require.Equal(t, "https://web.archive.org/web/20240115120000id_/https://example.com/", got["memento"].URL)
	require.Equal(t, "https://example.com/", got["original"].URL)
}
