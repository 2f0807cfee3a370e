package sender

import (
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var issueActions = []string{"opened", "edited", "closed", "reopened", "labeled", "assigned"}

// FakeIssuesPayload builds an issues event body shaped like GitHub's.
// A nil faker is seeded from the clock.
func FakeIssuesPayload(f *gofakeit.Faker) map[string]any {
	if f == nil {
		f = gofakeit.New(time.Now().UnixNano())
	}

	owner := f.Username()
	repo := f.Word() + "-" + f.Word()
	fullName := owner + "/" + repo
	number := f.Number(1, 5000)
	author := user(f, f.Username())

	return map[string]any{
		"action": f.RandomString(issueActions),
		"issue": map[string]any{
			"number":     number,
			"title":      f.HackerPhrase(),
			"body":       f.Sentence(16),
			"state":      "open",
			"html_url":   "https://github.com/" + fullName + "/issues/" + strconv.Itoa(number),
			"user":       author,
			"created_at": f.DateRange(time.Now().AddDate(0, -1, 0), time.Now()).UTC().Format(time.RFC3339),
		},
		"repository": map[string]any{
			"id":        f.Number(1000000, 99999999),
			"name":      repo,
			"full_name": fullName,
			"private":   f.Bool(),
			"html_url":  "https://github.com/" + fullName,
			"owner":     user(f, owner),
		},
		"sender": author,
	}
}

func user(f *gofakeit.Faker, login string) map[string]any {
	return map[string]any{
		"login":    login,
		"id":       f.Number(1, 9999999),
		"html_url": "https://github.com/" + login,
		"type":     "User",
	}
}
