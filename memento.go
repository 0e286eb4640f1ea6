package wayback

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/linkheader"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/mementourl"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/waybacktime"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

const defaultTargetWindow = 24 * time.Hour

// mementoOptions holds the resolved (defaults-applied) controls for one
// GetMemento call.
type mementoOptions struct {
	mode              Mode
	exact             bool
	exactRedirects    bool
	exactRedirectsSet bool
	targetWindow      time.Duration
	followRedirects   bool
}

// MementoOption configures a GetMemento call.
type MementoOption func(*mementoOptions)

// WithMode sets the requested playback mode. Default: ModeOriginal.
func WithMode(mode Mode) MementoOption {
	return func(o *mementoOptions) { o.mode = mode }
}

// WithExact controls whether the first response must itself be the
// requested capture. When false, an archive redirect from it to a nearby
// capture is followed, subject to the target window. Default: true.
func WithExact(exact bool) MementoOption {
	return func(o *mementoOptions) { o.exact = exact }
}

// WithExactRedirects controls whether a followed archive redirect's
// target URL must exactly match the current URL (ignoring a leading
// www/wwwN subdomain). Defaults to whatever Exact resolves to.
func WithExactRedirects(exact bool) MementoOption {
	return func(o *mementoOptions) {
		o.exactRedirects = exact
		o.exactRedirectsSet = true
	}
}

// WithTargetWindow bounds how far in time a followed redirect's capture
// may be from the originally requested time. Default: 24h.
func WithTargetWindow(d time.Duration) MementoOption {
	return func(o *mementoOptions) { o.targetWindow = d }
}

// WithFollowRedirects controls whether archive and historical redirects
// are followed at all. Default: true.
func WithFollowRedirects(follow bool) MementoOption {
	return func(o *mementoOptions) { o.followRedirects = follow }
}

func resolveOptions(opts []MementoOption) mementoOptions {
	o := mementoOptions{
		mode:            ModeOriginal,
		exact:           true,
		followRedirects: true,
		targetWindow:    defaultTargetWindow,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.exactRedirectsSet {
		o.exactRedirects = o.exact
	}
	return o
}

var redirectPagePattern = regexp.MustCompile(`(?i)Got an? HTTP 3\d\d response at crawl time`)

// getMemento drives the playback state machine described in §4.5 for a
// single captured URL and timestamp.
func getMemento(ctx context.Context, session *Session, capturedURL string, timestamp time.Time, opts []MementoOption) (*Memento, error) {
	logger := wblog.WithComponent("memento")
	o := resolveOptions(opts)

	originallyRequested := timestamp
	requestURL := mementourl.Format(capturedURL, timestamp, o.mode.suffix())

	var history []*Memento
	var debugHistory []string
	seenURLs := map[string]bool{}
	previousWasMemento := false

	currentTargetURL := requestURL

	for {
		u, err := url.Parse(currentTargetURL)
		if err != nil {
			return nil, &Error{Sentinel: ErrInvalidMementoURL, Operation: "get_memento", Message: currentTargetURL, Err: err}
		}

		resp, err := session.send(ctx, http.MethodGet, u, http.Header{})
		if err != nil {
			return nil, err
		}

		parsed, parseErr := mementourl.Parse(currentTargetURL)
		var currentURL string
		var currentDate time.Time
		var currentMode string
		if parseErr == nil {
			currentURL = parsed.URL
			currentDate = parsed.Timestamp
			currentMode = parsed.Mode
		} else {
			currentURL = capturedURL
			currentDate = timestamp
			currentMode = o.mode.suffix()
		}

		linksByRel := linkheader.ByRel(resp.Links)
		if original, ok := linksByRel["original"]; ok {
			currentURL = original.URL
		}

		isMemento := resp.IsMemento()

		// View-mode disguised redirect detection (only needs body text,
		// so only read the body when the shape otherwise matches).
		if !isMemento && resp.StatusCode == http.StatusOK && resp.Header.Get("X-Archive-Src") != "" && currentMode == "" {
			target, detectErr := detectViewModeRedirect(resp, currentDate)
			if detectErr != nil {
				resp.Drain()
				return nil, detectErr
			}
			if target != "" {
				resp.Header.Set("Memento-Datetime", resp.Header.Get("Date"))
				resp.Header.Set("Location", target)
				isMemento = false // it's a synthetic archive redirect, not a memento
				resp.StatusCode = http.StatusFound
			}
		}

		if isMemento {
			memento := buildMemento(resp, currentURL, currentDate, o.mode)

			if !o.followRedirects {
				memento.History = history
				memento.DebugHistory = append(debugHistory, currentTargetURL)
				return memento, nil
			}

			if !memento.IsRedirect() {
				memento.History = history
				memento.DebugHistory = append(debugHistory, currentTargetURL)
				return memento, nil
			}

			// Historical redirect: per §4.5 step 4, falling through from
			// a memento response goes straight to the redirect-following
			// bookkeeping of step 6 — there is no refusal policy for a
			// memento that is itself a captured redirect, only the
			// circular-redirect check below.
			target, hasTarget := historicalRedirectTarget(resp, u)
			if !hasTarget {
				memento.History = history
				memento.DebugHistory = append(debugHistory, currentTargetURL)
				return memento, nil
			}

			previousWasMemento = true
			resp.Drain()
			if seenURLs[target] {
				logger.Warn().Str("url", target).Msg("circular redirect detected while following historical redirect")
				return nil, &Error{Sentinel: ErrMementoCircular, Operation: "get_memento", Message: target}
			}
			seenURLs[currentTargetURL] = true
			debugHistory = append(debugHistory, currentTargetURL)
			history = append(history, memento)
			currentTargetURL = target
			continue
		}

		// Not a memento: decide whether to follow an archive redirect.
		target, hasTarget := archiveRedirectTarget(resp, u)
		follow, refuseErr := decideFollow(hasTarget, len(history) > 0, previousWasMemento, o, resp, target, originallyRequested, currentURL)
		if !follow {
			resp.Drain()
			logger.Warn().Str("url", currentTargetURL).Err(refuseErr).Msg("memento playback refused")
			return nil, refuseErr
		}

		previousWasMemento = false
		resp.Drain()
		if seenURLs[target] {
			logger.Warn().Str("url", target).Msg("circular redirect detected while following archive redirect")
			return nil, &Error{Sentinel: ErrMementoCircular, Operation: "get_memento", Message: target}
		}
		seenURLs[currentTargetURL] = true
		debugHistory = append(debugHistory, currentTargetURL)
		currentTargetURL = target
	}
}

// decideFollow implements the §4.5 step-5 policy for whether to follow a
// candidate redirect target, including the target-window and
// exact-redirects checks. When it returns follow=false, err is the
// classified refusal error, including when there is no target at all.
func decideFollow(hasTarget bool, historyNonEmpty bool, previousWasMemento bool, o mementoOptions, resp *Response, target string, originallyRequested time.Time, currentURL string) (bool, error) {
	if !hasTarget {
		return false, classifyRefusal(resp)
	}

	shouldFollow := false
	if !historyNonEmpty && !o.exact {
		shouldFollow = true
	} else if historyNonEmpty && (previousWasMemento || !o.exactRedirects) {
		shouldFollow = true
	}
	if !shouldFollow {
		return false, classifyRefusal(resp)
	}

	targetParsed, err := mementourl.Parse(target)
	if err == nil {
		delta := targetParsed.Timestamp.Sub(originallyRequested)
		if delta < 0 {
			delta = -delta
		}
		if delta > o.targetWindow {
			return false, classifyRefusal(resp)
		}

		if o.exactRedirects {
			if !sameHost(currentURL, targetParsed.URL) {
				return false, classifyRefusal(resp)
			}
		}
	}

	return true, nil
}

var wwwPrefix = regexp.MustCompile(`(?i)^https?://(www\d?\.)?`)

func sameHost(a, b string) bool {
	return strings.EqualFold(wwwPrefix.ReplaceAllString(a, ""), wwwPrefix.ReplaceAllString(b, ""))
}

// classifyRefusal inspects a refused response's diagnostic headers and
// body to pick the right typed error, per §4.5 step 5.
func classifyRefusal(resp *Response) error {
	runtimeErr := resp.Header.Get("X-Archive-Wayback-Runtime-Error")
	body, _ := resp.Content()
	text := runtimeErr + "\n" + string(body)

	switch {
	case strings.Contains(text, "AdministrativeAccessControlException") || strings.Contains(text, "URL has been excluded"):
		return &Error{Sentinel: ErrBlockedSite, Operation: "get_memento", Status: resp.StatusCode}
	case strings.Contains(text, "RobotAccessControlException") || strings.Contains(text, "robots.txt"):
		return &Error{Sentinel: ErrBlockedByRobots, Operation: "get_memento", Status: resp.StatusCode}
	case runtimeErr != "":
		return &Error{Sentinel: ErrMementoPlayback, Operation: "get_memento", Status: resp.StatusCode, Message: runtimeErr}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Error{Sentinel: ErrMementoPlayback, Operation: "get_memento", Status: resp.StatusCode, Message: "refused close-enough match"}
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Sentinel: ErrNoMemento, Operation: "get_memento", Status: resp.StatusCode}
	default:
		return &Error{Sentinel: ErrMementoPlayback, Operation: "get_memento", Status: resp.StatusCode}
	}
}

// archiveRedirectTarget resolves the Location header of a non-memento
// redirect response against the request URL.
func archiveRedirectTarget(resp *Response, requestURL *url.URL) (string, bool) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", false
	}
	resolved, err := resolveReference(requestURL, loc)
	if err != nil {
		return "", false
	}
	return resolved, true
}

// historicalRedirectTarget resolves the Location header of a historical
// (memento) redirect response the same way, since in both cases it is
// where the loop should continue.
func historicalRedirectTarget(resp *Response, requestURL *url.URL) (string, bool) {
	return archiveRedirectTarget(resp, requestURL)
}

func resolveReference(base *url.URL, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(refURL).String(), nil
}

// detectViewModeRedirect implements §4.5's detection of disguised
// historical redirects in view mode: the Wayback Machine serves these as
// an ordinary 200 HTML page with JavaScript that performs the redirect
// client-side, rather than as a 3xx response.
func detectViewModeRedirect(resp *Response, currentDate time.Time) (string, error) {
	body, err := resp.Content()
	if err != nil {
		return "", err
	}
	text := string(body)
	if !redirectPagePattern.MatchString(text) {
		return "", nil
	}

	currentTimestamp := waybacktime.Format(currentDate)
	pattern := regexp.MustCompile(`(?is)<a\s(?:[^>\s]+\s)*href=("|')((?:(?:https?:)//[^/]+)?/web/` + regexp.QuoteMeta(currentTimestamp) + `/.*?)\1[\s>]`)
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return "", &Error{
			Sentinel: ErrMementoPlayback,
			Operation: "get_memento",
			Message: "server sent a view-mode response that looks like a redirect, but no redirect target could be found on the page",
		}
	}

	target := match[2]
	if strings.HasPrefix(target, "/") {
		base, _ := url.Parse("https://web.archive.org")
		if resp.URL != nil {
			base = resp.URL
		}
		resolved, err := resolveReference(base, target)
		if err != nil {
			return "", err
		}
		return resolved, nil
	}
	return target, nil
}

// buildMemento constructs a Memento from a classified memento response.
func buildMemento(resp *Response, capturedURL string, capturedTime time.Time, requestedMode Mode) *Memento {
	headers := extractHistoricalHeaders(resp.Header)
	links := cleanMementoLinks(linkheader.ByRel(resp.Links), requestedMode)

	return &Memento{
		URL:        capturedURL,
		Timestamp:  capturedTime,
		Mode:       requestedMode,
		MementoURL: mementourl.Format(capturedURL, capturedTime, requestedMode.suffix()),
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Encoding:   detectEncoding(resp.Header.Get("Content-Type")),
		Links:      links,
		response:   resp,
	}
}

// extractHistoricalHeaders implements the §6 "historical header
// extraction" rule: every header prefixed X-Archive-Orig- becomes a
// historical header with the prefix stripped; Content-Type is copied
// unprefixed; Content-Encoding is never synthesized.
func extractHistoricalHeaders(header http.Header) http.Header {
	const prefix = "X-Archive-Orig-"
	result := http.Header{}
	for name, values := range header {
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			stripped := name[len(prefix):]
			for _, v := range values {
				result.Add(stripped, v)
			}
		}
	}
	if ct := header.Get("Content-Type"); ct != "" {
		result.Set("Content-Type", ct)
	}
	return result
}

// cleanMementoLinks rewrites any link whose rel contains "memento" to use
// the currently-requested mode, since the server always returns view-mode
// link URLs regardless of what mode the current memento is in.
func cleanMementoLinks(links map[string]linkheader.Link, mode Mode) map[string]Link {
	result := make(map[string]Link, len(links))
	for key, link := range links {
		if strings.Contains(key, "memento") {
			if rewritten, err := mementourl.WithMode(link.URL, mode.suffix()); err == nil {
				link.URL = rewritten
			}
		}
		result[key] = link
	}
	return result
}
