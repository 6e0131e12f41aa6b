package service

import (
	"time"

	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/metrics"
)

// ReportServiceArguments is parameters of NewReportService. All fields are optional.
type ReportServiceArguments struct {
	Repository     adaptor.Repository
	SNS            *SNSService
	TopicARN       string
	Notify         *NotifyService
	Metrics        *metrics.Recorder
	PushgatewayURL string
}

// ReportService delivers result of a run to configured destinations
type ReportService struct {
	args *ReportServiceArguments
}

func NewReportService(args *ReportServiceArguments) *ReportService {
	return &ReportService{
		args: args,
	}
}

// Report sends result to all configured destinations. A failed destination does not stop others
// and errors are returned only for logging; the run itself is already done.
func (x *ReportService) Report(result *BatchResult, now time.Time) []error {
	var errs []error
	report := func(name string, err error) {
		if err != nil {
			logger.Error().Err(err).Str("destination", name).Msg("Failed to report run result")
			errs = append(errs, err)
		}
	}

	if x.args.Repository != nil {
		report("repository", x.args.Repository.PutSummary(result.Summary, now))
	}
	if x.args.SNS != nil && x.args.TopicARN != "" && len(result.Committed) > 0 {
		report("sns", x.args.SNS.PublishIndicators(x.args.TopicARN, result))
	}
	if x.args.Metrics != nil {
		x.args.Metrics.Observe(result.Summary, now)
		if x.args.PushgatewayURL != "" {
			report("pushgateway", x.args.Metrics.Push(x.args.PushgatewayURL))
		}
	}
	if x.args.Notify != nil {
		report("slack", x.args.Notify.EmitToSlack(result))
	}

	return errs
}
