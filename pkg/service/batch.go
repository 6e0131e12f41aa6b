package service

import (
	"context"

	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/errors"
)

// BatchConfig is immutable configuration of a run
type BatchConfig struct {
	// Date is label of the run, e.g. "2020-12-03"
	Date       string                   `json:"date"`
	Locations  []iocfeed.SourceLocation `json:"locations"`
	DatePrefix string                   `json:"date_prefix"`
	Event      iocfeed.EventMeta        `json:"event"`
	Tags       []string                 `json:"tags"`
}

// BatchServiceArguments is parameters of NewBatchService
type BatchServiceArguments struct {
	Config    BatchConfig
	Source    *SourceService
	Extractor *Extractor
	Events    *EventService
	Committer *CommitService
}

// BatchService runs the pipeline once: event -> (list -> fetch -> extract -> admit -> commit)* -> tag -> publish
type BatchService struct {
	args *BatchServiceArguments
}

func NewBatchService(args *BatchServiceArguments) *BatchService {
	return &BatchService{
		args: args,
	}
}

// BatchResult is output of BatchService.Run
type BatchResult struct {
	Event     *iocfeed.Event
	Summary   *iocfeed.Summary
	Committed []string
}

type batchRun struct {
	event  *iocfeed.Event
	ledger *Ledger
	result *BatchResult
}

// Run executes the pipeline. Only failure of getting or creating event is returned as error.
// Other failures are counted in Summary and the run goes on to publish.
func (x *BatchService) Run(ctx context.Context) (*BatchResult, error) {
	cfg := &x.args.Config

	event, err := x.args.Events.GetOrCreate(ctx, &cfg.Event)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to prepare destination event").With("info", cfg.Event.Info)
	}

	run := &batchRun{
		event:  event,
		ledger: NewLedger(),
		result: &BatchResult{
			Event: event,
			Summary: &iocfeed.Summary{
				Date:    cfg.Date,
				EventID: event.ID,
			},
		},
	}
	run.ledger.Seed(event.AttributeValues())
	logger.Info().Str("event_id", event.ID).Int("existing", len(event.Attributes)).Msg("Event ready")

	for _, loc := range cfg.Locations {
		x.processLocation(ctx, run, loc)
	}

	summary := run.result.Summary
	failedTags := x.args.Events.ApplyTags(ctx, event, cfg.Tags)
	summary.TagErrors = len(failedTags)

	if err := x.args.Events.Publish(ctx, event); err != nil {
		logger.Error().Err(err).Str("event_id", event.ID).Msg("Publish failed")
		summary.PublishError = err.Error()
	} else {
		summary.Published = true
	}

	logger.Info().Interface("summary", summary).Msg("Run done")
	return run.result, nil
}

func (x *BatchService) processLocation(ctx context.Context, run *batchRun, loc iocfeed.SourceLocation) {
	summary := run.result.Summary
	summary.Locations++

	logger.Info().Str("location", loc.String()).Str("prefix", x.args.Config.DatePrefix).Msg("Scanning location")
	objects, err := x.args.Source.List(loc, x.args.Config.DatePrefix)
	if err != nil {
		summary.LocationErrors++
		logger.Error().Err(err).Str("location", loc.String()).Msg("Failed to list location, skip")
		return
	}
	if len(objects) == 0 {
		logger.Info().Str("location", loc.String()).Str("prefix", x.args.Config.DatePrefix).Msg("No files found")
		return
	}

	for _, obj := range objects {
		summary.Objects++
		if err := x.processObject(ctx, run, obj); err != nil {
			summary.ObjectErrors++
			log := logger.Error().Err(err).Str("object", obj.String())
			if e, ok := err.(*errors.Error); ok {
				for key, value := range e.Values {
					log = log.Interface(key, value)
				}
			}
			log.Msg("Failed to process object, skip")
		}
	}
}

func (x *BatchService) processObject(ctx context.Context, run *batchRun, obj *iocfeed.SourceObject) error {
	logger.Info().Str("object", obj.String()).Str("encoding", string(obj.Encoding)).Msg("Processing object")

	body, err := x.args.Source.Open(obj)
	if err != nil {
		return err
	}
	defer body.Close()

	summary := run.result.Summary
	reader := x.args.Extractor.NewReader(body)
	for candidate := reader.Read(); candidate != nil; candidate = reader.Read() {
		summary.Candidates++

		admitted, outcome := run.ledger.Decide(candidate.Value)
		if admitted {
			outcome = x.args.Committer.Commit(ctx, run.event, candidate.Value)
		}
		summary.Add(outcome)

		if outcome.Kind == iocfeed.Committed {
			run.result.Committed = append(run.result.Committed, candidate.Value)
		}
	}

	if err := reader.Error(); err != nil {
		return errors.Wrap(err, "Failed to extract candidates").With("object", obj.String())
	}
	return nil
}
