package lambda

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/m-mizutani/iocfeed/pkg/arguments"
	"github.com/m-mizutani/iocfeed/pkg/errors"
	"github.com/m-mizutani/iocfeed/pkg/logging"
)

// Event is received event of Lambda Function
type Event struct {
	Origin interface{}
}

// Bind converts Origin to v via json marshal/unmarshal
func (x Event) Bind(v interface{}) error {
	raw, err := json.Marshal(x.Origin)
	if err != nil {
		return errors.Wrap(err, "Marshal lambda event")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "Unmarshal lambda event").With("raw", string(raw))
	}
	return nil
}

// Handler is callback function type of lambda.Run()
type Handler func(ctx context.Context, args *arguments.Arguments, event Event) error

// Run sets up Arguments and logging tools, then invoke handler with Arguments
func Run(handler Handler) {
	if err := errors.InitSentry(); err != nil {
		logging.Logger.Warn().Err(err).Msg("Sentry is not available")
	}

	lambda.Start(func(ctx context.Context, origin interface{}) error {
		defer errors.FlushSentry()

		args, err := arguments.New()
		if err == nil {
			err = handler(ctx, args, Event{Origin: origin})
		}

		if err != nil {
			errors.EmitSentry(err)

			var values map[string]interface{}
			if e, ok := err.(*errors.Error); ok {
				values = e.Values
			}
			logging.LogError(err, values)
			return err
		}
		return nil
	})
}
