package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// Notifier sends run summaries and alerts to an external channel.
type Notifier interface {
	Notify(alerts []Alert) error
	NotifyRun(result *models.RunResult) error
}

// slackNotifier posts to a Slack incoming webhook.
type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that posts to the given Slack webhook URL.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify sends the given alerts. It returns nil without making a request if
// the alerts slice is empty.
func (s *slackNotifier) Notify(alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return s.post(buildAlertMessage(alerts))
}

// NotifyRun posts a summary of a finished run.
func (s *slackNotifier) NotifyRun(result *models.RunResult) error {
	if result == nil {
		return nil
	}
	return s.post(buildRunMessage(result))
}

func (s *slackNotifier) post(msg slackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func buildAlertMessage(alerts []Alert) slackMessage {
	blocks := []slackBlock{header("adt Alert Summary")}

	for i, alert := range alerts {
		if i > 0 {
			blocks = append(blocks, slackBlock{Type: "divider"})
		}
		text := fmt.Sprintf("%s *[%s]* %s\n_%s_",
			severityEmoji(alert.Severity),
			strings.ToUpper(string(alert.Severity)),
			alert.Message,
			alert.TriggeredAt.Format("2006-01-02 15:04 UTC"),
		)
		blocks = append(blocks, section(text))
	}

	return slackMessage{Blocks: blocks}
}

func buildRunMessage(result *models.RunResult) slackMessage {
	title := "adt run succeeded"
	emoji := "✅"
	if result.Status != models.RunSuccess {
		title = "adt run failed"
		emoji = "❌"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", emoji, result.Idea)
	fmt.Fprintf(&b, "Run `%s`\n", result.RunID)
	if result.Status == models.RunSuccess {
		passed := 0
		for _, rec := range result.Repairs {
			if rec.Outcome == models.FixPassed {
				passed++
			}
		}
		fmt.Fprintf(&b, "%d files generated, %d/%d tests passing", len(result.Generated), passed, len(result.Tests))
		if unresolved := result.Unresolved(); len(unresolved) > 0 {
			fmt.Fprintf(&b, "\nUnresolved: %s", strings.Join(unresolved, ", "))
		}
	} else {
		fmt.Fprintf(&b, "Error: %s", result.Message)
	}

	return slackMessage{Blocks: []slackBlock{header(title), section(b.String())}}
}

func header(text string) slackBlock {
	return slackBlock{Type: "header", Text: &slackText{Type: "plain_text", Text: text}}
}

func section(text string) slackBlock {
	return slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "❓"
	}
}
