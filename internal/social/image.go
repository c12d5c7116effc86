package social

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// ValidImageRef reports whether s is an http(s) URL or a base64 data URI
// with an image media type.
func ValidImageRef(s string) bool {
	if strings.HasPrefix(s, "data:") {
		return validImageDataURI(s)
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validImageDataURI(s string) bool {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || payload == "" {
		return false
	}
	mediaType, params, _ := strings.Cut(meta, ";")
	if !strings.HasPrefix(mediaType, "image/") || len(mediaType) == len("image/") {
		return false
	}
	fields := strings.Split(params, ";")
	if fields[len(fields)-1] != "base64" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(payload)
	return err == nil
}
