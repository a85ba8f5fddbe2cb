// Package security provides credential-safety helpers for logs and
// diagnostics output.
package security

import (
	"net/url"
	"strings"
)

// MaskSecret redacts a credential for logging, keeping just enough of
// the prefix to tell keys apart. Short values are fully redacted.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// MaskURL redacts the path and query of a URL, which for incoming
// webhooks carry the shared secret. Scheme and host stay readable.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "****"
	}
	masked := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		masked += "/****"
	}
	return masked
}

// Redact replaces any occurrence of the given secrets in s. Used before
// echoing upstream error bodies that may reflect request parameters.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "****")
	}
	return s
}
