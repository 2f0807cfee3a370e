package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/stormlightlabs/notifier/internal/sender"
)

var (
	sendURL   string
	sendKind  string
	sendCount int
)

var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Post signed sample webhook deliveries to a running relay",
	Long: `send-test generates realistic GitHub webhook payloads, signs them with the
configured webhook secret and posts them to the relay's /gh endpoint.`,
	Args: cobra.NoArgs,
	RunE: runSendTest,
}

func init() {
	sendTestCmd.Flags().StringVar(&sendURL, "url", "", "relay base URL (default: http://127.0.0.1:<server.port>)")
	sendTestCmd.Flags().StringVar(&sendKind, "kind", "issues", "event kind: issues or ping")
	sendTestCmd.Flags().IntVar(&sendCount, "count", 1, "number of deliveries")
	rootCmd.AddCommand(sendTestCmd)
}

func runSendTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := sendURL
	if url == "" {
		url = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}
	s := sender.New(url, cfg.Webhook.Secret)
	faker := gofakeit.New(time.Now().UnixNano())

	failed := 0
	for i := 1; i <= sendCount; i++ {
		status, err := s.Send(cmd.Context(), sendKind, samplePayload(faker, sendKind, s.HookID))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delivery %d/%d: %d %s\n", i, sendCount, status, http.StatusText(status))
		if status != http.StatusAccepted {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deliveries not accepted", failed, sendCount)
	}
	return nil
}

func samplePayload(f *gofakeit.Faker, kind, hookID string) map[string]any {
	if kind == "ping" {
		return map[string]any{
			"zen":     f.HackerPhrase(),
			"hook_id": hookID,
		}
	}
	return sender.FakeIssuesPayload(f)
}
