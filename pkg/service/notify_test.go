package service_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/mock"
	"github.com/m-mizutani/iocfeed/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResult(committed ...string) *service.BatchResult {
	return &service.BatchResult{
		Event: &iocfeed.Event{ID: "12", UUID: "b5a3d6a4-0000-4000-8000-000000000001", Info: testEventInfo},
		Summary: &iocfeed.Summary{
			Date:       "2020-12-03",
			EventID:    "12",
			Objects:    2,
			Candidates: len(committed),
			Committed:  len(committed),
			Published:  true,
		},
		Committed: committed,
	}
}

func TestEmitToSlack(t *testing.T) {
	t.Run("summary and defanged indicators", func(t *testing.T) {
		client := &mock.HTTPClient{RespCode: http.StatusOK, RespBody: "ok"}
		svc := service.NewNotifyService(&service.NotifyServiceArguments{
			SlackIncomingWebhookURL: "https://hooks.slack.com/services/xxx",
			HTTPClient:              client,
		})

		require.NoError(t, svc.EmitToSlack(newTestResult("10.0.0.1", "evil.example.com")))
		require.Equal(t, 1, len(client.Requests))
		assert.Equal(t, "https://hooks.slack.com/services/xxx", client.Requests[0].URL.String())
		assert.Equal(t, "application/json", client.Requests[0].Header.Get("Content-Type"))

		body := client.Bodies[0]
		assert.True(t, json.Valid([]byte(body)))
		assert.Contains(t, body, "10[.]0[.]0[.]1")
		assert.Contains(t, body, "evil[.]example[.]com")
		assert.NotContains(t, body, "evil.example.com")
		assert.Contains(t, body, "Published")
	})

	t.Run("indicators are truncated", func(t *testing.T) {
		client := &mock.HTTPClient{RespCode: http.StatusOK}
		svc := service.NewNotifyService(&service.NotifyServiceArguments{
			SlackIncomingWebhookURL: "https://hooks.slack.com/services/xxx",
			HTTPClient:              client,
		})

		var values []string
		for i := 0; i < 8; i++ {
			values = append(values, fmt.Sprintf("ioc%d", i))
		}
		require.NoError(t, svc.EmitToSlack(newTestResult(values...)))
		assert.Contains(t, client.Bodies[0], "ioc4")
		assert.NotContains(t, client.Bodies[0], "ioc5")
		assert.Contains(t, client.Bodies[0], "and 3 more")
	})

	t.Run("errors section when not published", func(t *testing.T) {
		client := &mock.HTTPClient{RespCode: http.StatusOK}
		svc := service.NewNotifyService(&service.NotifyServiceArguments{
			SlackIncomingWebhookURL: "https://hooks.slack.com/services/xxx",
			HTTPClient:              client,
		})

		result := newTestResult()
		result.Summary.Published = false
		result.Summary.PublishError = "MISP API error"
		require.NoError(t, svc.EmitToSlack(result))
		assert.Contains(t, client.Bodies[0], "Not published")
		assert.Contains(t, client.Bodies[0], "MISP API error")
	})

	t.Run("slack API error", func(t *testing.T) {
		client := &mock.HTTPClient{RespCode: http.StatusForbidden, RespBody: "invalid_token"}
		svc := service.NewNotifyService(&service.NotifyServiceArguments{
			SlackIncomingWebhookURL: "https://hooks.slack.com/services/xxx",
			HTTPClient:              client,
		})
		assert.Error(t, svc.EmitToSlack(newTestResult("ioc1")))
	})

	t.Run("no webhook URL", func(t *testing.T) {
		svc := service.NewNotifyService(&service.NotifyServiceArguments{HTTPClient: &mock.HTTPClient{}})
		assert.Error(t, svc.EmitToSlack(newTestResult("ioc1")))
	})
}
