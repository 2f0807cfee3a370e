package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/stormlightlabs/notifier/internal/models"
)

// MaxMessageLength is the chat backend's limit in characters.
const MaxMessageLength = 2000

const (
	fenceOpen  = "```json\n"
	fenceClose = "\n```"
	truncated  = "\n…"
)

// Header field caps. The event kind comes from an unsigned request header, so
// every field is bounded to keep the header well inside MaxMessageLength.
const (
	maxKindLen   = 64
	maxRepoLen   = 140
	maxActionLen = 64
	maxSenderLen = 64
)

// Format renders e as a header line and a fenced JSON block with sorted keys
// and two-space indentation. Output is deterministic for identical events and
// never exceeds MaxMessageLength characters; an oversized payload is cut and
// marked while the fence stays closed.
func Format(e *models.Event) string {
	header := formatHeader(e)
	body := formatPayload(e.Payload)

	prefix := header + "\n" + fenceOpen
	msg := prefix + body + fenceClose
	if utf8.RuneCountInString(msg) <= MaxMessageLength {
		return msg
	}

	budget := MaxMessageLength - utf8.RuneCountInString(prefix+truncated+fenceClose)
	return prefix + truncateRunes(body, budget) + truncated + fenceClose
}

func formatHeader(e *models.Event) string {
	kind := e.Kind
	if kind == "" {
		kind = "unknown"
	}
	parts := []string{"**" + clip(kind, maxKindLen) + "**"}
	if repo := e.Repository(); repo != "" {
		parts = append(parts, clip(repo, maxRepoLen))
	}
	if action := e.Action(); action != "" {
		parts = append(parts, clip(action, maxActionLen))
	}
	if sender := e.Sender(); sender != "" {
		parts = append(parts, "by "+clip(sender, maxSenderLen))
	}
	return strings.Join(parts, " · ")
}

// clip shortens s to n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncateRunes(s, n-1) + "…"
}

func formatPayload(payload any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Sprintf("%v", payload)
	}
	// a literal fence inside a string value would end the code block early
	return strings.ReplaceAll(strings.TrimSuffix(buf.String(), "\n"), "```", "``\u200b`")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
