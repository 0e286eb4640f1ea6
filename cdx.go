package wayback

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/mementourl"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/metrics"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/waybacktime"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

// SearchOptions configures a CDX search.
type SearchOptions struct {
	MatchType          string // "exact", "prefix", "host", "domain"
	Limit              int
	Offset             int
	From               time.Time
	To                 time.Time
	FilterField        []string
	Collapse           string
	FastLatest         bool
	ResolveRevisits    bool
	SkipMalformedResults bool
}

// DefaultSearchOptions returns the §4.4 defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		ResolveRevisits:      true,
		SkipMalformedResults: true,
	}
}

var (
	httpDefaultPort  = regexp.MustCompile(`^(http://[^:/]+):80(.*)$`)
	httpsDefaultPort = regexp.MustCompile(`^(https://[^:/]+):443(.*)$`)

	dataURLStart = regexp.MustCompile(`data:[\w]+/[\w]+;base64`)
	emailishURL  = regexp.MustCompile(`^https?://(<*)((mailto:)|([^/@:]*@))`)
	urlIsh       = regexp.MustCompile(`^[\w+\-]+://[^/?=&]+\.\w\w+(:\d+)?(/|$)`)
)

// isMalformedURL matches §4.4 step 5's suppression patterns.
func isMalformedURL(rawURL string) bool {
	if dataURLStart.MatchString(rawURL) {
		return true
	}
	if strings.HasPrefix(rawURL, "mailto:") || emailishURL.MatchString(rawURL) {
		return true
	}
	return !urlIsh.MatchString(rawURL)
}

func cleanDefaultPort(rawURL string) string {
	if m := httpDefaultPort.FindStringSubmatch(rawURL); m != nil {
		return m[1] + m[2]
	}
	if m := httpsDefaultPort.FindStringSubmatch(rawURL); m != nil {
		return m[1] + m[2]
	}
	return rawURL
}

// SearchIter is a lazy, resume-key-paged cursor over CDX search results.
type SearchIter struct {
	ctx     context.Context
	session *Session
	query   []queryParam

	lines         []string
	lineIndex     int
	lastLine      string
	done          bool
	count         int
	pendingErr    error
	skipMalformed bool
	logger        zerolog.Logger
}

// Search starts a CDX search for url with the given options.
func Search(ctx context.Context, session *Session, targetURL string, opts SearchOptions) *SearchIter {
	query := buildSearchQuery(targetURL, opts)
	return &SearchIter{
		ctx:           ctx,
		session:       session,
		query:         query,
		skipMalformed: opts.SkipMalformedResults,
		logger:        wblog.WithComponent("cdx"),
	}
}

func buildSearchQuery(targetURL string, o SearchOptions) []queryParam {
	query := []queryParam{{Key: "url", Value: targetURL}}
	if o.MatchType != "" {
		query = append(query, queryParam{Key: "matchType", Value: o.MatchType})
	}
	if o.Limit != 0 {
		query = append(query, queryParam{Key: "limit", Value: strconv.Itoa(o.Limit)})
	}
	if o.Offset != 0 {
		query = append(query, queryParam{Key: "offset", Value: strconv.Itoa(o.Offset)})
	}
	if !o.From.IsZero() {
		query = append(query, queryParam{Key: "from", Value: waybacktime.Format(o.From)})
	}
	if !o.To.IsZero() {
		query = append(query, queryParam{Key: "to", Value: waybacktime.Format(o.To)})
	}
	for _, f := range o.FilterField {
		query = append(query, queryParam{Key: "filter", Value: f})
	}
	if o.Collapse != "" {
		query = append(query, queryParam{Key: "collapse", Value: o.Collapse})
	}
	if o.FastLatest {
		query = append(query, queryParam{Key: "fastLatest", Value: "true"})
	}
	query = append(query, queryParam{Key: "resolveRevisits", Value: boolString(o.ResolveRevisits)})
	query = append(query, queryParam{Key: "showResumeKey", Value: "true"})
	return query
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

const cdxEndpoint = "https://web.archive.org/cdx/search/cdx"

// Count returns the number of records yielded so far. Once the iterator
// is exhausted, this is the total count.
func (it *SearchIter) Count() int {
	return it.count
}

// Next advances the iterator, returning the next record. ok is false
// (with a nil error) once the search is exhausted.
func (it *SearchIter) Next() (CaptureRecord, bool, error) {
	for {
		if it.pendingErr != nil {
			return CaptureRecord{}, false, it.pendingErr
		}

		for it.lineIndex < len(it.lines) {
			line := it.lines[it.lineIndex]
			it.lineIndex++

			if line == "" {
				// The next line (if any) is the resume key.
				if it.lineIndex < len(it.lines) {
					resumeKey := it.lines[it.lineIndex]
					it.query = append(copyQuery(it.query), queryParam{Key: "resumeKey", Value: resumeKey})
				}
				it.lines = nil
				it.lineIndex = 0
				break
			}
			if line == it.lastLine {
				continue
			}
			it.lastLine = line

			record, err := parseCDXLine(line, it.query)
			if err != nil {
				it.pendingErr = err
				return CaptureRecord{}, false, err
			}
			if it.skipMalformed && isMalformedURL(record.URL) {
				it.logger.Debug().Str("url", record.URL).Msg("skipping malformed CDX result")
				continue
			}
			it.count++
			return record, true, nil
		}

		if it.done {
			return CaptureRecord{}, false, nil
		}

		if err := it.fetchPage(); err != nil {
			it.pendingErr = err
			return CaptureRecord{}, false, err
		}
	}
}

func copyQuery(q []queryParam) []queryParam {
	out := make([]queryParam, len(q))
	copy(out, q)
	return out
}

func (it *SearchIter) fetchPage() error {
	u, err := buildURL(cdxEndpoint, it.query)
	if err != nil {
		return fmt.Errorf("wayback: building CDX query: %w", err)
	}

	cacheKey := u.String()
	var body []byte
	var status int
	if cached, ok := it.session.cache.Get(cacheKey); ok {
		metrics.CacheHits.Inc()
		it.logger.Debug().Str("url", cacheKey).Msg("serving CDX page from cache")
		body = cached
		status = http.StatusOK
	} else {
		metrics.CacheMisses.Inc()
		resp, err := it.session.send(it.ctx, http.MethodGet, u, http.Header{})
		if err != nil {
			it.logger.Error().Str("url", cacheKey).Err(err).Msg("fetching CDX page failed")
			return err
		}
		body, err = resp.Content()
		if err != nil {
			return err
		}
		status = resp.StatusCode
		if status < 400 {
			it.session.cache.Set(cacheKey, body, 10*time.Minute)
		}
	}

	if status >= 400 {
		text := string(body)
		switch {
		case strings.Contains(text, "AdministrativeAccessControlException"):
			return &Error{Sentinel: ErrBlockedSite, Operation: "search", Status: status}
		case strings.Contains(text, "RobotAccessControlException"):
			return &Error{Sentinel: ErrBlockedByRobots, Operation: "search", Status: status}
		default:
			return &Error{Sentinel: ErrUnexpectedResponseFormat, Operation: "search", Status: status, Message: text}
		}
	}

	lines := strings.Split(string(body), "\n")
	// Trim a single trailing empty element from the final newline so it
	// isn't mistaken for a resume-key marker.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	it.lines = lines
	it.lineIndex = 0
	if !hasResumeKeyMarker(lines) {
		it.done = true
	}
	return nil
}

// hasResumeKeyMarker reports whether the page body contains the blank
// line that precedes a resume key.
func hasResumeKeyMarker(lines []string) bool {
	for _, l := range lines {
		if l == "" {
			return true
		}
	}
	return false
}

// parseCDXLine parses one CDX record line per §4.4 steps 2-6.
func parseCDXLine(line string, query []queryParam) (CaptureRecord, error) {
	fields := strings.Split(line, " ")
	if len(fields) != 7 {
		if strings.Contains(line, "RobotAccessControlException") {
			return CaptureRecord{}, &Error{Sentinel: ErrBlockedByRobots, Operation: "search", Message: line}
		}
		return CaptureRecord{}, &Error{Sentinel: ErrUnexpectedResponseFormat, Operation: "search", Message: line}
	}

	key, tsRaw, rawURL, mimeType, statusRaw, digest, lengthRaw := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6]

	ts, err := waybacktime.Parse(tsRaw)
	if err != nil {
		return CaptureRecord{}, &Error{Sentinel: ErrUnexpectedResponseFormat, Operation: "search", Message: line, Err: err}
	}

	record := CaptureRecord{
		Key:       key,
		Timestamp: ts,
		URL:       cleanDefaultPort(rawURL),
		MimeType:  mimeType,
		Digest:    digest,
	}

	if statusRaw != "-" {
		status, err := strconv.Atoi(statusRaw)
		if err != nil {
			return CaptureRecord{}, &Error{Sentinel: ErrUnexpectedResponseFormat, Operation: "search", Message: line, Err: err}
		}
		record.StatusCode = status
		record.StatusOK = true
	}

	if lengthRaw != "-" {
		length, err := strconv.ParseInt(lengthRaw, 10, 64)
		if err != nil {
			return CaptureRecord{}, &Error{Sentinel: ErrUnexpectedResponseFormat, Operation: "search", Message: line, Err: err}
		}
		record.Length = length
		record.LengthOK = true
	}

	record.RawURL = mementourl.Format(record.URL, ts, "id_")
	record.ViewURL = mementourl.Format(record.URL, ts, "")

	return record, nil
}
