package llm

import "strings"

// parseDataURI splits a "data:<mediatype>;base64,<data>" URI into its media
// type and base64 payload. Returns ok=false for anything else, including
// plain http(s) URLs.
func parseDataURI(uri string) (mediaType, data string, ok bool) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", false
	}
	rest := uri[len(prefix):]

	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", false
	}

	meta := rest[:comma]
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "text/plain"
	}
	return mediaType, rest[comma+1:], true
}
