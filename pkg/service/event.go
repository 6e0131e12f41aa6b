package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/errors"
)

// EventServiceArguments is parameters of NewEventService
type EventServiceArguments struct {
	Client adaptor.MISPClient

	// Repository is optional. Event ID for an info is recorded to it if set.
	Repository adaptor.Repository
}

// EventService manages lifecycle of destination event
type EventService struct {
	client adaptor.MISPClient
	repo   adaptor.Repository
}

func NewEventService(args *EventServiceArguments) *EventService {
	return &EventService{
		client: args.Client,
		repo:   args.Repository,
	}
}

// GetOrCreate returns event with attributes whose info is meta.Info. The event is looked up by
// repository record, then by searching MISP, and created if not found. Error is fatal for the run.
func (x *EventService) GetOrCreate(ctx context.Context, meta *iocfeed.EventMeta) (*iocfeed.Event, error) {
	if event := x.lookupRecord(ctx, meta.Info); event != nil {
		return event, nil
	}

	events, err := x.client.SearchEvents(ctx, meta.Info)
	if err != nil {
		logger.Warn().Err(err).Str("info", meta.Info).Msg("Failed to search event, creating a new one")
	} else if len(events) > 0 {
		event, err := x.client.GetEvent(ctx, events[0].ID)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to get found event").With("event_id", events[0].ID)
		}
		logger.Info().Str("event_id", event.ID).Str("info", meta.Info).Msg("Found existing event")
		x.putRecord(event)
		return event, nil
	}

	created, err := x.client.AddEvent(ctx, &iocfeed.Event{
		UUID:         uuid.New().String(),
		Info:         meta.Info,
		Distribution: meta.Distribution,
		ThreatLevel:  meta.ThreatLevel,
		Analysis:     meta.Analysis,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create event").With("meta", meta)
	}
	logger.Info().Str("event_id", created.ID).Str("info", meta.Info).Msg("Created event")

	x.putRecord(created)
	return created, nil
}

func (x *EventService) lookupRecord(ctx context.Context, info string) *iocfeed.Event {
	if x.repo == nil {
		return nil
	}

	record, err := x.repo.GetEventRecord(info)
	if err != nil {
		logger.Warn().Err(err).Str("info", info).Msg("Failed to get event record")
		return nil
	}
	if record == nil {
		return nil
	}

	event, err := x.client.GetEvent(ctx, record.EventID)
	if err != nil {
		logger.Warn().Err(err).Interface("record", record).Msg("Recorded event is not available")
		return nil
	}
	return event
}

func (x *EventService) putRecord(event *iocfeed.Event) {
	if x.repo == nil {
		return
	}

	record := &iocfeed.EventRecord{
		Info:      event.Info,
		EventID:   event.ID,
		EventUUID: event.UUID,
		CreatedAt: time.Now().UTC().Unix(),
	}
	if err := x.repo.PutEventRecord(record); err != nil {
		logger.Warn().Err(err).Interface("record", record).Msg("Failed to put event record")
	}
}

// ApplyTags attaches tags to event one by one. A failed tag does not stop others.
// Tags already on the event are skipped. It returns tags failed to attach.
func (x *EventService) ApplyTags(ctx context.Context, event *iocfeed.Event, tags []string) []string {
	attached := make(map[string]struct{})
	for _, tag := range event.Tags {
		attached[tag] = struct{}{}
	}

	var failed []string
	for _, tag := range tags {
		if _, ok := attached[tag]; ok {
			continue
		}

		if err := x.client.AddTag(ctx, event.UUID, tag); err != nil {
			logger.Error().Err(err).Str("tag", tag).Str("event_id", event.ID).Msg("Failed to attach tag")
			failed = append(failed, tag)
			continue
		}

		event.Tags = append(event.Tags, tag)
		attached[tag] = struct{}{}
	}

	return failed
}

// Publish publishes event once without retry.
func (x *EventService) Publish(ctx context.Context, event *iocfeed.Event) error {
	if err := x.client.PublishEvent(ctx, event.ID); err != nil {
		return errors.Wrap(err, "Failed to publish event").With("event_id", event.ID)
	}
	event.Published = true
	return nil
}
