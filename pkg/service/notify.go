package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/errors"
	"github.com/slack-go/slack"
)

type NotifyServiceArguments struct {
	SlackIncomingWebhookURL string
	HTTPClient              adaptor.HTTPClient
}

// NotifyService sends run summary to humans
type NotifyService struct {
	args *NotifyServiceArguments
}

func NewNotifyService(args *NotifyServiceArguments) *NotifyService {
	return &NotifyService{
		args: args,
	}
}

// Up to 5 committed values in slack message
const maxValueDisplaySlack = 5

func defang(s string) string {
	return strings.Replace(s, ".", "[.]", -1)
}

func (x *NotifyService) EmitToSlack(result *BatchResult) error {
	if x.args.HTTPClient == nil {
		return errors.New("HTTPClient is required in NotifyServiceArguments to emit Slack, but not set")
	}
	if x.args.SlackIncomingWebhookURL == "" {
		return errors.New("SlackIncomingWebhookURL is required in NotifyServiceArguments to emit Slack, but not set")
	}

	summary := result.Summary
	newField := func(title string, value interface{}) *slack.TextBlockObject {
		return slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*%s*\n%v", title, value), false, false)
	}

	status := ":white_check_mark: Published"
	if !summary.Published {
		status = ":warning: Not published"
	}
	title := fmt.Sprintf("IOC feed %s: %s", summary.Date, status)

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", title, true, false)),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Event* %s (id:%s)", result.Event.Info, result.Event.ID), false, false),
			[]*slack.TextBlockObject{
				newField("Objects", fmt.Sprintf("%d (errors: %d)", summary.Objects, summary.ObjectErrors)),
				newField("Candidates", summary.Candidates),
				newField("Committed", summary.Committed),
				newField("Skipped", summary.SkippedDuplicate+summary.SkippedEmpty),
				newField("Rejected", summary.Rejected),
				newField("Failed", summary.Failed),
			}, nil),
	}

	if summary.PublishError != "" || summary.LocationErrors > 0 || summary.TagErrors > 0 {
		blocks = append(blocks, slack.NewDividerBlock())
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", "*Errors*", false, false),
			[]*slack.TextBlockObject{
				newField("Locations", summary.LocationErrors),
				newField("Tags", summary.TagErrors),
				newField("Publish", summary.PublishError),
			}, nil))
	}

	if len(result.Committed) > 0 {
		var lines []string
		for i, v := range result.Committed {
			if i >= maxValueDisplaySlack {
				lines = append(lines, fmt.Sprintf("... and %d more", len(result.Committed)-i))
				break
			}
			lines = append(lines, "`"+defang(v)+"`")
		}

		blocks = append(blocks, slack.NewDividerBlock())
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", "*New indicators*\n"+strings.Join(lines, "\n"), false, false), nil, nil))
	}

	msg := slack.NewBlockMessage(blocks...)
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal slack message").With("msg", msg)
	}

	req, err := http.NewRequest("POST", x.args.SlackIncomingWebhookURL, bytes.NewBuffer(raw))
	if err != nil {
		return errors.Wrap(err, "Failed to create a new HTTP request to Slack")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.args.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "Failed to post message to slack in communication").With("msg", msg)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(resp.Body)
		return errors.New("Failed to post message to slack in API").
			With("msg", msg).With("code", resp.StatusCode).With("body", string(body))
	}

	return nil
}
