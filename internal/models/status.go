package models

import "net/http"

// AcceptanceStatus is the outcome of handling one webhook submission.
type AcceptanceStatus int

const (
	// Accepted means the event was enqueued.
	Accepted AcceptanceStatus = iota
	// Malformed means a required header was missing or the body did not parse.
	Malformed
	// Unauthorized means the signature did not verify.
	Unauthorized
	// Overloaded means the relay queue was full.
	Overloaded
	// Unavailable means the relay has been closed.
	Unavailable
)

func (s AcceptanceStatus) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Malformed:
		return "malformed"
	case Unauthorized:
		return "unauthorized"
	case Overloaded:
		return "overloaded"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// StatusCode maps the outcome to an HTTP status. Signature failures share
// 400 with malformed requests so a probe learns nothing about the secret.
func (s AcceptanceStatus) StatusCode() int {
	switch s {
	case Accepted:
		return http.StatusAccepted
	case Malformed, Unauthorized:
		return http.StatusBadRequest
	case Overloaded, Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the sender should try the delivery again later.
func (s AcceptanceStatus) Retryable() bool {
	return s == Overloaded || s == Unavailable
}
