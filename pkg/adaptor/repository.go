package adaptor

import (
	"fmt"
	"time"

	"github.com/guregu/dynamo"
	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/errors"
)

// Repository stores records of events and runs.
type Repository interface {
	GetEventRecord(info string) (*iocfeed.EventRecord, error)
	PutEventRecord(record *iocfeed.EventRecord) error
	PutSummary(summary *iocfeed.Summary, recordedAt time.Time) error
}

// NewDynamoRepository returns Repository backed by a DynamoDB table with pk/sk keys
func NewDynamoRepository(region, tableName string) (Repository, error) {
	ssn, err := newSession(region)
	if err != nil {
		return nil, err
	}

	return &DynamoRepository{
		table: dynamo.New(ssn).Table(tableName),
	}, nil
}

type DynamoRepository struct {
	table dynamo.Table
}

const (
	dynamoHashKey     = "pk"
	dynamoRangeKey    = "sk"
	eventRecordSKey   = "-"
	eventTimeToLive   = time.Hour * 24 * 90
	summaryTimeToLive = time.Hour * 24 * 30
)

type dynamoItem struct {
	PK        string `dynamo:"pk"`
	SK        string `dynamo:"sk"`
	ExpiresAt int64  `dynamo:"expires_at"`
}

type eventRecordItem struct {
	dynamoItem
	iocfeed.EventRecord
}

type summaryItem struct {
	dynamoItem
	iocfeed.Summary
	RecordedAt int64 `dynamo:"recorded_at"`
}

func makeEventRecordPKey(info string) string {
	return fmt.Sprintf("event/%s", info)
}

func makeSummaryPKey(summary *iocfeed.Summary) string {
	return fmt.Sprintf("run/%s", summary.Date)
}

func makeSummarySKey(recordedAt time.Time) string {
	return recordedAt.UTC().Format("20060102_150405")
}

func (x *DynamoRepository) GetEventRecord(info string) (*iocfeed.EventRecord, error) {
	pk := makeEventRecordPKey(info)

	var item eventRecordItem
	if err := x.table.Get(dynamoHashKey, pk).Range(dynamoRangeKey, dynamo.Equal, eventRecordSKey).One(&item); err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "Failed to get event record").With("pk", pk)
	}

	return &item.EventRecord, nil
}

func (x *DynamoRepository) PutEventRecord(record *iocfeed.EventRecord) error {
	item := &eventRecordItem{
		dynamoItem: dynamoItem{
			PK:        makeEventRecordPKey(record.Info),
			SK:        eventRecordSKey,
			ExpiresAt: time.Unix(record.CreatedAt, 0).Add(eventTimeToLive).Unix(),
		},
		EventRecord: *record,
	}

	if err := x.table.Put(item).Run(); err != nil {
		return errors.Wrap(err, "Failed to put event record").With("item", item)
	}
	return nil
}

func (x *DynamoRepository) PutSummary(summary *iocfeed.Summary, recordedAt time.Time) error {
	item := &summaryItem{
		dynamoItem: dynamoItem{
			PK:        makeSummaryPKey(summary),
			SK:        makeSummarySKey(recordedAt),
			ExpiresAt: recordedAt.Add(summaryTimeToLive).Unix(),
		},
		Summary:    *summary,
		RecordedAt: recordedAt.Unix(),
	}

	if err := x.table.Put(item).Run(); err != nil {
		return errors.Wrap(err, "Failed to put run summary").With("item", item)
	}
	return nil
}
