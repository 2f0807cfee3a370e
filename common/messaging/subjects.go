package messaging

import "strings"

// Subject names follow the pattern {domain}.{action}.{resource}.
const (
	// SubjectRelayEvents is the default base subject for relayed GitHub events.
	// Each event is published on SubjectRelayEvents + "." + kind.
	SubjectRelayEvents = "relay.events.github"
)

// EventSubject returns the subject an event of the given kind is published on.
// Example: relay.events.github.pull_request
func EventSubject(base, kind string) string {
	return base + "." + subjectToken(kind)
}

// WildcardSubject returns the subject matching every event under base.
func WildcardSubject(base string) string {
	return base + ".>"
}

// subjectToken makes kind usable as a single subject token. Separators and
// wildcards are replaced; an empty kind becomes "unknown".
func subjectToken(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, kind)
}
