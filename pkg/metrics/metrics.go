package metrics

import (
	"time"

	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is job label of pushed metrics
const JobName = "iocfeed"

// Recorder holds gauges of the last run. Gauges are used instead of counters because values are
// pushed once per run to a pushgateway.
type Recorder struct {
	registry *prometheus.Registry

	Candidates  *prometheus.GaugeVec
	Objects     *prometheus.GaugeVec
	TagErrors   prometheus.Gauge
	Published   prometheus.Gauge
	LastRunTime prometheus.Gauge
}

func NewRecorder() *Recorder {
	x := &Recorder{
		registry: prometheus.NewRegistry(),
		Candidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iocfeed_candidates",
				Help: "Candidates of the last run by outcome",
			},
			[]string{"outcome"},
		),
		Objects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iocfeed_objects",
				Help: "Feed objects of the last run by status",
			},
			[]string{"status"},
		),
		TagErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iocfeed_tag_errors",
			Help: "Tags failed to attach in the last run",
		}),
		Published: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iocfeed_published",
			Help: "1 if event of the last run is published",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iocfeed_last_run_timestamp_seconds",
			Help: "Unix time of the last run",
		}),
	}

	x.registry.MustRegister(x.Candidates, x.Objects, x.TagErrors, x.Published, x.LastRunTime)
	return x
}

// Registry returns registry of the recorder
func (x *Recorder) Registry() *prometheus.Registry {
	return x.registry
}

// Observe sets gauges by run summary
func (x *Recorder) Observe(summary *iocfeed.Summary, now time.Time) {
	x.Candidates.WithLabelValues(iocfeed.Committed.String()).Set(float64(summary.Committed))
	x.Candidates.WithLabelValues(iocfeed.SkippedDuplicate.String()).Set(float64(summary.SkippedDuplicate))
	x.Candidates.WithLabelValues(iocfeed.SkippedEmpty.String()).Set(float64(summary.SkippedEmpty))
	x.Candidates.WithLabelValues(iocfeed.RejectedForbidden.String()).Set(float64(summary.Rejected))
	x.Candidates.WithLabelValues(iocfeed.Failed.String()).Set(float64(summary.Failed))

	x.Objects.WithLabelValues("ok").Set(float64(summary.Objects - summary.ObjectErrors))
	x.Objects.WithLabelValues("error").Set(float64(summary.ObjectErrors))

	x.TagErrors.Set(float64(summary.TagErrors))
	if summary.Published {
		x.Published.Set(1)
	} else {
		x.Published.Set(0)
	}
	x.LastRunTime.Set(float64(now.Unix()))
}

// Push sends gauges to pushgateway
func (x *Recorder) Push(url string) error {
	if err := push.New(url, JobName).Gatherer(x.registry).Push(); err != nil {
		return errors.Wrap(err, "Failed to push metrics").With("url", url)
	}
	return nil
}
