package links

import (
	"net/url"
	"strings"
)

// IsValidCode reports whether code is a non-empty ASCII alphanumeric
// string. No length bound is applied beyond non-emptiness.
func IsValidCode(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

// IsValidURL reports whether raw parses as an absolute http or https URL.
// Malformed input yields false, never an error.
func IsValidURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.TrimSpace(u.Host) != ""
}
