// Package mementourl parses and constructs Wayback Machine memento URLs
// of the form:
//
//	https://web.archive.org/web/<timestamp><mode>/<captured-url>
package mementourl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/waybacktime"
)

var pattern = regexp.MustCompile(`^http(?:s)?://web\.archive\.org/web/(\d+)(\w\w_)?/(.+)$`)

const template = "https://web.archive.org/web/%s%s/%s"

// Parsed holds the components extracted from a memento URL.
type Parsed struct {
	URL       string
	Timestamp time.Time
	Mode      string
}

// Parse extracts the captured URL, timestamp, and playback mode encoded
// in a memento URL. It returns an error if rawURL does not match the
// web.archive.org memento URL shape.
func Parse(rawURL string) (Parsed, error) {
	match := pattern.FindStringSubmatch(rawURL)
	if match == nil {
		return Parsed{}, fmt.Errorf("mementourl: %q is not a memento URL", rawURL)
	}

	ts, err := waybacktime.Parse(match[1])
	if err != nil {
		return Parsed{}, fmt.Errorf("mementourl: %q has an invalid timestamp: %w", rawURL, err)
	}

	return Parsed{
		URL:       cleanURLComponent(match[3]),
		Timestamp: ts,
		Mode:      match[2],
	}, nil
}

// cleanURLComponent repairs encoding issues with the captured URL
// component of a memento URL. The captured URL is percent-decoded only
// when it looks fully percent-encoded itself (starts with "http%3a" or
// "https%3a"), so a querystring embedded in an otherwise-plain URL is
// left alone.
func cleanURLComponent(component string) string {
	lower := strings.ToLower(component)
	if strings.HasPrefix(lower, "http%3a") || strings.HasPrefix(lower, "https%3a") {
		if decoded, err := url.QueryUnescape(component); err == nil {
			return decoded
		}
	}
	return component
}

// Format builds a memento URL for the given captured URL, timestamp, and
// playback mode (mode may be empty for the default replay mode).
func Format(capturedURL string, timestamp time.Time, mode string) string {
	return fmt.Sprintf(template, waybacktime.Format(timestamp), mode, capturedURL)
}

// WithMode returns memento URL rewritten to use the given playback mode.
// It returns an error if memento is not a valid memento URL.
func WithMode(memento string, mode string) (string, error) {
	parsed, err := Parse(memento)
	if err != nil {
		return "", err
	}
	return Format(parsed.URL, parsed.Timestamp, mode), nil
}
