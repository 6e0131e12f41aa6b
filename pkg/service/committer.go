package service

import (
	"context"

	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/errors"
)

// CommitServiceArguments is parameters of NewCommitService
type CommitServiceArguments struct {
	Client adaptor.MISPClient

	// AttributeType is iocfeed.AttributeTypeText if empty
	AttributeType string
	Category      string
}

// CommitService adds values to an event as attributes, one attempt per value
type CommitService struct {
	client   adaptor.MISPClient
	attrType string
	category string
}

func NewCommitService(args *CommitServiceArguments) *CommitService {
	attrType := args.AttributeType
	if attrType == "" {
		attrType = iocfeed.AttributeTypeText
	}
	return &CommitService{
		client:   args.Client,
		attrType: attrType,
		category: args.Category,
	}
}

// Commit submits value to event and classifies the result. It never returns error; failures are
// reported as outcome and the caller moves to next value.
func (x *CommitService) Commit(ctx context.Context, event *iocfeed.Event, value string) iocfeed.CommitOutcome {
	attr := &iocfeed.Attribute{
		Value:    value,
		Type:     x.attrType,
		Category: x.category,
	}

	err := x.client.AddAttribute(ctx, event.ID, attr)
	if err == nil {
		event.Attributes = append(event.Attributes, attr)
		logger.Debug().Str("value", value).Str("event_id", event.ID).Msg("Added attribute")
		return iocfeed.CommitOutcome{Kind: iocfeed.Committed}
	}

	outcome := classifyCommitError(err)
	log := logger.Warn()
	if outcome.Kind == iocfeed.Failed {
		log = logger.Error()
	}
	log.Str("value", value).Str("event_id", event.ID).Str("outcome", outcome.Kind.String()).
		Str("reason", outcome.Reason).Msg("Attribute not added")

	return outcome
}

func classifyCommitError(err error) iocfeed.CommitOutcome {
	var mispErr *adaptor.MISPError
	if !errors.As(err, &mispErr) {
		return iocfeed.CommitOutcome{Kind: iocfeed.Failed, Reason: err.Error()}
	}

	switch mispErr.Kind {
	case adaptor.MISPErrorDuplicate:
		return iocfeed.CommitOutcome{Kind: iocfeed.SkippedDuplicate, Reason: "already exists on event"}
	case adaptor.MISPErrorEmpty:
		return iocfeed.CommitOutcome{Kind: iocfeed.SkippedEmpty, Reason: "empty value"}
	case adaptor.MISPErrorForbidden:
		return iocfeed.CommitOutcome{Kind: iocfeed.RejectedForbidden, Reason: mispErr.Error()}
	default:
		return iocfeed.CommitOutcome{Kind: iocfeed.Failed, Reason: mispErr.Error()}
	}
}
