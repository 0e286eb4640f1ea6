// Package linkheader parses RFC 8288-style HTTP Link headers, in the
// loose "pretty much taken from requests" style the Wayback Machine
// actually emits: entries separated by commas followed by `<`, and
// unquoted or sloppily-quoted parameters.
package linkheader

import (
	"strings"
)

// Link is one parsed Link header entry: its target URL plus whatever
// parameters (rel, type, ...) accompanied it.
type Link struct {
	URL    string
	Params map[string]string
}

// Parse splits a raw Link header value into its entries.
func Parse(value string) []Link {
	var links []Link

	trimmed := strings.Trim(value, " '\"")
	if trimmed == "" {
		return links
	}

	for _, entry := range splitEntries(trimmed) {
		url, params, _ := cutAny(entry, ";")
		link := Link{
			URL:    strings.Trim(url, "<> '\""),
			Params: map[string]string{},
		}
		if params != "" {
			for _, param := range strings.Split(params, ";") {
				key, val, ok := strings.Cut(param, "=")
				if !ok {
					break
				}
				link.Params[strings.Trim(key, " '\"")] = strings.Trim(val, " '\"")
			}
		}
		links = append(links, link)
	}

	return links
}

// ByRel indexes a slice of Links by their "rel" parameter, falling back
// to the URL itself as the key when "rel" is absent, matching the
// mapping shape described for Memento.Links.
func ByRel(links []Link) map[string]Link {
	result := make(map[string]Link, len(links))
	for _, l := range links {
		key := l.Params["rel"]
		if key == "" {
			key = l.URL
		}
		result[key] = l
	}
	return result
}

// splitEntries splits on ", " sequences that are followed by "<", the
// same heuristic used upstream to tolerate commas inside parameter
// values.
func splitEntries(value string) []string {
	var entries []string
	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] == ',' {
			rest := strings.TrimLeft(value[i+1:], " ")
			if strings.HasPrefix(rest, "<") {
				entries = append(entries, value[start:i])
				start = i + 1
			}
		}
	}
	entries = append(entries, value[start:])
	return entries
}

func cutAny(s, sep string) (before, after string, found bool) {
	if idx := strings.Index(s, sep); idx >= 0 {
		return s[:idx], s[idx+1:], true
	}
	return s, "", false
}
