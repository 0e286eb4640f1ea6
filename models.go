// Package wayback is a client for the Internet Archive's Wayback Machine:
// paginating the CDX capture index for a URL, and fetching and playing
// back individual mementos (archived HTTP responses at a capture time).
package wayback

import (
	"net/http"
	"time"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/linkheader"
)

// Mode is a memento playback mode: the form the archived response body
// is returned in.
type Mode string

// Known playback modes and their URL suffixes. Callers may also pass an
// arbitrary string; unrecognized modes are forwarded unchanged rather
// than rejected.
const (
	ModeOriginal   Mode = "original"
	ModeView       Mode = "view"
	ModeJavaScript Mode = "javascript"
	ModeCSS        Mode = "css"
	ModeImage      Mode = "image"
)

// suffix returns the URL path suffix for a known mode, or the mode string
// itself, unchanged, for anything else.
func (m Mode) suffix() string {
	switch m {
	case ModeOriginal:
		return "id_"
	case ModeView:
		return ""
	case ModeJavaScript:
		return "js_"
	case ModeCSS:
		return "cs_"
	case ModeImage:
		return "im_"
	default:
		return string(m)
	}
}

// CaptureRecord is the parsed form of one CDX line.
type CaptureRecord struct {
	Key        string
	Timestamp  time.Time
	URL        string
	MimeType   string
	StatusCode int  // zero when StatusOK is false
	StatusOK   bool // false when the CDX status field was "-"
	Digest     string
	Length     int64
	LengthOK   bool // false when the CDX length field was "-"
	RawURL     string
	ViewURL    string
}

// Link is one entry from a parsed Link header, keyed by rel elsewhere.
type Link = linkheader.Link

// Memento is the result of a successful playback.
type Memento struct {
	URL          string
	Timestamp    time.Time
	Mode         Mode
	MementoURL   string
	StatusCode   int
	Headers      http.Header // historical headers only, see extractHistoricalHeaders
	Encoding     string
	Links        map[string]Link
	History      []*Memento
	DebugHistory []string

	response *Response
	closed   bool
}

// OK reports whether the memento's status code is in the 2xx range.
func (m *Memento) OK() bool {
	return m.StatusCode >= 200 && m.StatusCode < 300
}

// IsRedirect reports whether the memento's status code is in the 3xx
// range (a captured historical redirect).
func (m *Memento) IsRedirect() bool {
	return m.StatusCode >= 300 && m.StatusCode < 400
}

// Body reads and caches the memento's raw body bytes, releasing the
// underlying connection. Subsequent calls return the cached bytes.
func (m *Memento) Body() ([]byte, error) {
	if m.response == nil {
		return nil, nil
	}
	m.closed = true
	return m.response.Content()
}

// Text reads the body and decodes it per Encoding, defaulting to UTF-8
// when Encoding is empty or unrecognized.
func (m *Memento) Text() (string, error) {
	data, err := m.Body()
	if err != nil {
		return "", err
	}
	return decodeText(data, m.Encoding)
}

// Close releases the memento's underlying connection if its body has not
// been read. It is safe to call multiple times.
func (m *Memento) Close() error {
	if m.closed || m.response == nil {
		m.closed = true
		return nil
	}
	m.closed = true
	return m.response.Close()
}
