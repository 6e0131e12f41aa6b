package service

import (
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/errors"
	"github.com/m-mizutani/iocfeed/pkg/logging"
)

var logger = logging.Logger

// SNSService is accessor to SNS
type SNSService struct {
	newSNS adaptor.SNSClientFactory
}

// NewSNSService is constructor of SNSService
func NewSNSService(newSNS adaptor.SNSClientFactory) *SNSService {
	return &SNSService{
		newSNS: newSNS,
	}
}

// IndicatorMessage is SNS message body of committed indicators
type IndicatorMessage struct {
	EventID   string   `json:"event_id"`
	EventUUID string   `json:"event_uuid"`
	Date      string   `json:"date"`
	Values    []string `json:"values"`
}

// indicatorChunkSize is max number of values in one SNS message
const indicatorChunkSize = 32

func extractSNSRegion(topicARN string) (string, error) {
	// topicARN sample: arn:aws:sns:us-east-1:111122223333:my-topic
	arnParts := strings.Split(topicARN, ":")

	if len(arnParts) != 6 {
		return "", errors.New("Invalid SNS topic ARN").With("ARN", topicARN)
	}

	return arnParts[3], nil
}

func publishSNS(client adaptor.SNSClient, topicARN string, msg interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "Fail to marshal message").With("msg", msg)
	}

	input := sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(raw)),
	}
	resp, err := client.Publish(&input)

	if err != nil {
		return errors.Wrap(err, "Fail to publish SNS message").With("input", input)
	}

	logger.Trace().Interface("resp", resp).Msg("Sent SNS message")

	return nil
}

// PublishIndicators sends committed values to SNS topic in chunks
func (x *SNSService) PublishIndicators(topicARN string, result *BatchResult) error {
	region, err := extractSNSRegion(topicARN)
	if err != nil {
		return err
	}

	client, err := x.newSNS(region)
	if err != nil {
		return errors.Wrap(err, "Failed to create SNS client").With("region", region)
	}

	values := result.Committed
	for i := 0; i < len(values); i += indicatorChunkSize {
		e := i + indicatorChunkSize
		if len(values) < e {
			e = len(values)
		}

		msg := &IndicatorMessage{
			EventID:   result.Event.ID,
			EventUUID: result.Event.UUID,
			Date:      result.Summary.Date,
			Values:    values[i:e],
		}
		if err := publishSNS(client, topicARN, msg); err != nil {
			return errors.Wrap(err, "Failed to publish indicators").With("i", i)
		}
	}

	return nil
}
