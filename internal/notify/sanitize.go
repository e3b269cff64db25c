package notify

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips scripts and unsafe attributes from a rendered body.
func SanitizeHTML(body string) string {
	return htmlPolicy.Sanitize(body)
}

// sanitizeHeader removes CR and LF so values cannot inject headers.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	v = strings.ReplaceAll(v, "\n", "")
	return strings.TrimSpace(v)
}

func validateAddress(addr string) error {
	if _, err := mail.ParseAddress(addr); err != nil {
		return fmt.Errorf("invalid email address %q: %w", addr, err)
	}
	return nil
}
