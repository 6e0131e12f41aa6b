package adaptor_test

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamoRepository(t *testing.T) {
	tableName, ok := os.LookupEnv("TEST_TABLE_NAME")
	if !ok {
		t.Skip("Skip test because TEST_TABLE_NAME is not set")
	}
	region, ok := os.LookupEnv("AWS_REGION")
	if !ok {
		t.Skip("Skip test because AWS_REGION is not set")
	}

	repo, err := adaptor.NewDynamoRepository(region, tableName)
	require.NoError(t, err)
	testRepository(t, repo)
}

func TestMockRepository(t *testing.T) {
	repo := mock.NewRepository()
	testRepository(t, repo)

	now := time.Now().UTC()
	require.NoError(t, repo.PutSummary(&iocfeed.Summary{Date: "2020-12-03", Committed: 3}, now))
	require.Equal(t, 2, len(repo.Summaries))
	assert.Equal(t, 3, repo.Summaries[1].Committed)
}

func testRepository(t *testing.T, repo adaptor.Repository) {
	info := "Daily S3 Threat Feed - " + uuid.New().String()

	t.Run("not found", func(t *testing.T) {
		record, err := repo.GetEventRecord(info)
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("put and get", func(t *testing.T) {
		record := &iocfeed.EventRecord{
			Info:      info,
			EventID:   "1234",
			EventUUID: uuid.New().String(),
			CreatedAt: time.Now().UTC().Unix(),
		}
		require.NoError(t, repo.PutEventRecord(record))

		got, err := repo.GetEventRecord(info)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record.EventID, got.EventID)
		assert.Equal(t, record.EventUUID, got.EventUUID)
		assert.Equal(t, record.CreatedAt, got.CreatedAt)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, repo.PutEventRecord(&iocfeed.EventRecord{Info: info, EventID: "5678"}))
		got, err := repo.GetEventRecord(info)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "5678", got.EventID)
	})

	t.Run("summary", func(t *testing.T) {
		summary := &iocfeed.Summary{Date: "2020-12-03", EventID: "5678", Committed: 2, Published: true}
		assert.NoError(t, repo.PutSummary(summary, time.Now().UTC()))
	})
}
