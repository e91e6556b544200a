// Package repourl normalizes user-supplied repository and server addresses.
package repourl

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned when an address cannot be turned into an absolute URL.
var ErrInvalidURL = errors.New("invalid url")

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

// Normalize turns a host or URL string into an absolute URL, assuming https
// when no scheme is present.
func Normalize(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}
	if !schemePattern.MatchString(raw) {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// BaseURL returns scheme://host[:port] for u, dropping path, query and fragment.
func BaseURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// ExtractDomain returns the authority-only URL for raw, or "" when raw is not a URL.
func ExtractDomain(raw string) string {
	u, err := Normalize(raw)
	if err != nil {
		return ""
	}
	return BaseURL(u)
}

// ExtractPath returns the repository path of raw without surrounding slashes.
func ExtractPath(raw string) string {
	u, err := Normalize(raw)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}
