package wayback

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// detectEncoding implements the Content-Type based encoding sniffing
// described in §4.3: explicit charset parameter first, then a
// content-type-family default, then unknown.
func detectEncoding(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
		params = nil
	}
	if charset, ok := params["charset"]; ok && charset != "" {
		return strings.ToUpper(charset)
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return "ISO-8859-1"
	case mediaType == "application/json":
		return "utf-8"
	default:
		return ""
	}
}

// decodeText decodes data as the named encoding, defaulting to treating
// it as already-valid UTF-8 when the encoding is empty or not one this
// package special-cases.
func decodeText(data []byte, encoding string) (string, error) {
	switch strings.ToUpper(encoding) {
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	default:
		return string(data), nil
	}
}
