package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/m-mizutani/iocfeed/pkg/arguments"
	"github.com/m-mizutani/iocfeed/pkg/lambda"
	"github.com/m-mizutani/iocfeed/pkg/logging"
)

var logger = logging.Logger

// Handler is exported for test. Date of the run is time of the scheduled event, or now if not available.
func Handler(ctx context.Context, args *arguments.Arguments, event lambda.Event) error {
	now := time.Now().UTC()
	var scheduled events.CloudWatchEvent
	if err := event.Bind(&scheduled); err != nil {
		logger.Warn().Err(err).Msg("Event is not CloudWatchEvent, use current time")
	} else if !scheduled.Time.IsZero() {
		now = scheduled.Time.UTC()
	}

	batch, err := args.BatchService(now)
	if err != nil {
		return err
	}

	result, err := batch.Run(ctx)
	if err != nil {
		return err
	}

	args.ReportService().Report(result, now)
	logger.Info().Str("event_id", result.Event.ID).Str("summary", result.Summary.String()).Msg("Published feed")

	return nil
}

func main() {
	lambda.Run(Handler)
}
