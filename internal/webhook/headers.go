// Package webhook validates GitHub webhook deliveries: the header catalogue,
// the HMAC signature over the raw body, and body decoding.
package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GitHub delivery headers.
const (
	HeaderHookID       = "X-GitHub-Hook-ID"
	HeaderEvent        = "X-GitHub-Event"
	HeaderDelivery     = "X-GitHub-Delivery"
	HeaderSignature    = "X-Hub-Signature"
	HeaderSignature256 = "X-Hub-Signature-256"
	HeaderUserAgent    = "User-Agent"
	HeaderTargetType   = "X-GitHub-Hook-Installation-Target-Type"
	HeaderTargetID     = "X-GitHub-Hook-Installation-Target-ID"
)

var (
	// ErrMalformed marks a request with missing headers or an undecodable body.
	ErrMalformed = errors.New("malformed webhook request")
	// ErrUnauthorized marks a request whose signature does not verify.
	ErrUnauthorized = errors.New("webhook signature verification failed")
)

// RequiredHeaders returns the headers a delivery must carry. The event,
// delivery and user agent headers are always required; signed adds
// X-Hub-Signature-256. strict additionally requires the hook and
// installation target headers, and the legacy sha1 signature when signed.
func RequiredHeaders(strict, signed bool) []string {
	req := []string{HeaderEvent, HeaderDelivery, HeaderUserAgent}
	if signed {
		req = append(req, HeaderSignature256)
	}
	if strict {
		req = append(req, HeaderHookID, HeaderTargetType, HeaderTargetID)
		if signed {
			req = append(req, HeaderSignature)
		}
	}
	return req
}

// CheckHeaders reports every required header that is absent or blank.
func CheckHeaders(h http.Header, strict, signed bool) error {
	var missing []string
	for _, name := range RequiredHeaders(strict, signed) {
		if strings.TrimSpace(h.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing header(s) %s", ErrMalformed, strings.Join(missing, ", "))
	}
	return nil
}

// CheckUserAgent requires ua to contain prefix. An empty prefix accepts anything.
func CheckUserAgent(ua, prefix string) error {
	if prefix == "" || strings.Contains(ua, prefix) {
		return nil
	}
	return fmt.Errorf("%w: unexpected user agent %q", ErrMalformed, ua)
}
