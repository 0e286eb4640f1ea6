package wayback

import (
	"context"
	"time"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/mementourl"
)

// ClientConfig configures a Client. Zero values fall back to
// SessionConfig's defaults.
type ClientConfig struct {
	Session SessionConfig
}

// Client is the public façade: it owns a Session and exposes Search and
// GetMemento.
type Client struct {
	session *Session
	owned   bool
}

// NewClient constructs a Client that owns and will close its own Session.
func NewClient(cfg ClientConfig) *Client {
	return &Client{session: NewSession(cfg.Session), owned: true}
}

// NewClientWithSession constructs a Client around an existing Session
// that the caller owns; Close on the returned Client is a no-op for the
// session.
func NewClientWithSession(session *Session) *Client {
	return &Client{session: session, owned: false}
}

// Close releases the Client's owned Session, if any. Idempotent.
func (c *Client) Close() error {
	if c.owned && c.session != nil {
		return c.session.Close()
	}
	return nil
}

// Search starts a lazy CDX search for targetURL.
func (c *Client) Search(ctx context.Context, targetURL string, opts SearchOptions) *SearchIter {
	return Search(ctx, c.session, targetURL, opts)
}

// MementoTarget is anything GetMemento can resolve to a captured URL and
// timestamp: a plain URL plus timestamp, a CaptureRecord, or an
// already-complete memento playback URL.
type MementoTarget struct {
	URL       string
	Timestamp time.Time

	// Record, if set, is used instead of URL/Timestamp.
	Record *CaptureRecord
	// MementoURL, if set, is parsed to obtain URL/Timestamp and takes
	// precedence over Record and URL/Timestamp.
	MementoURL string
}

// resolve classifies a MementoTarget into a (capturedURL, timestamp)
// pair, per §9's "tagged union at the façade boundary" design note.
func (t MementoTarget) resolve() (string, time.Time, error) {
	switch {
	case t.MementoURL != "":
		parsed, err := mementourl.Parse(t.MementoURL)
		if err != nil {
			return "", time.Time{}, &Error{Sentinel: ErrInvalidMementoURL, Operation: "get_memento", Message: t.MementoURL, Err: err}
		}
		return parsed.URL, parsed.Timestamp, nil
	case t.Record != nil:
		return t.Record.URL, t.Record.Timestamp, nil
	case t.URL != "":
		if t.Timestamp.IsZero() {
			return "", time.Time{}, &Error{Sentinel: ErrInvalidMementoURL, Operation: "get_memento", Message: "timestamp is required when URL is not already a memento URL"}
		}
		return t.URL, t.Timestamp, nil
	default:
		return "", time.Time{}, &Error{Sentinel: ErrInvalidMementoURL, Operation: "get_memento", Message: "no URL provided"}
	}
}

// GetMemento fetches and plays back the memento described by target,
// applying the controls in opts.
func (c *Client) GetMemento(ctx context.Context, target MementoTarget, opts ...MementoOption) (*Memento, error) {
	capturedURL, timestamp, err := target.resolve()
	if err != nil {
		return nil, err
	}
	return getMemento(ctx, c.session, capturedURL, timestamp, opts)
}

// GetMementoURL is a convenience wrapper for the common case of a plain
// URL and timestamp.
func (c *Client) GetMementoURL(ctx context.Context, url string, timestamp time.Time, opts ...MementoOption) (*Memento, error) {
	return c.GetMemento(ctx, MementoTarget{URL: url, Timestamp: timestamp}, opts...)
}

// WithExactRedirectsDeprecated is the old "exact_redirects" spelling
// retained for source compatibility with earlier callers; it behaves
// identically to WithExactRedirects.
func WithExactRedirectsDeprecated(exact bool) MementoOption {
	return WithExactRedirects(exact)
}
