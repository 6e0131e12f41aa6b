package mock

import (
	"time"

	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
)

// Repository is mock of adaptor.Repository
type Repository struct {
	events    map[string]*iocfeed.EventRecord
	Summaries []*iocfeed.Summary
}

// NewRepository is constructor of mock.Repository
func NewRepository() *Repository {
	return &Repository{
		events: make(map[string]*iocfeed.EventRecord),
	}
}

var _ adaptor.Repository = &Repository{}

// GetEventRecord returns nil without error if not found, same as DynamoRepository
func (x *Repository) GetEventRecord(info string) (*iocfeed.EventRecord, error) {
	record, ok := x.events[info]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (x *Repository) PutEventRecord(record *iocfeed.EventRecord) error {
	copied := *record
	x.events[record.Info] = &copied
	return nil
}

func (x *Repository) PutSummary(summary *iocfeed.Summary, recordedAt time.Time) error {
	copied := *summary
	x.Summaries = append(x.Summaries, &copied)
	return nil
}
