package arguments_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/arguments"
	"github.com/m-mizutani/iocfeed/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2020, 12, 3, 23, 30, 0, 0, time.UTC)

func TestBatchConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		args := &arguments.Arguments{SourceBuckets: "feed-bucket"}
		cfg, err := args.BatchConfig(testNow)
		require.NoError(t, err)

		assert.Equal(t, "2020-12-03", cfg.Date)
		assert.Equal(t, "2020-12-03/", cfg.DatePrefix)
		assert.Equal(t, []iocfeed.SourceLocation{{Bucket: "feed-bucket"}}, cfg.Locations)
		assert.Equal(t, "Daily S3 Threat Feed - 2020-12-03", cfg.Event.Info)
		assert.Equal(t, 0, cfg.Event.Distribution)
		assert.Equal(t, 2, cfg.Event.ThreatLevel)
		assert.Equal(t, 0, cfg.Event.Analysis)
		assert.Empty(t, cfg.Tags)
	})

	t.Run("configured", func(t *testing.T) {
		args := &arguments.Arguments{
			SourceBuckets:     "bucket-a, s3://bucket-b/intel",
			DatePrefix:        "daily/",
			EventInfo:         "Feed of %s",
			EventDistribution: "1",
			EventThreatLevel:  "3",
			EventAnalysis:     "2",
			EventTags:         "tlp:white,,feed:s3 ",
		}
		cfg, err := args.BatchConfig(testNow)
		require.NoError(t, err)

		assert.Equal(t, "daily/", cfg.DatePrefix)
		assert.Equal(t, []iocfeed.SourceLocation{
			{Bucket: "bucket-a"},
			{Bucket: "bucket-b", Prefix: "intel"},
		}, cfg.Locations)
		assert.Equal(t, "Feed of 2020-12-03", cfg.Event.Info)
		assert.Equal(t, 1, cfg.Event.Distribution)
		assert.Equal(t, 3, cfg.Event.ThreatLevel)
		assert.Equal(t, 2, cfg.Event.Analysis)
		assert.Equal(t, []string{"tlp:white", "feed:s3"}, cfg.Tags)
	})

	t.Run("fixed event info", func(t *testing.T) {
		args := &arguments.Arguments{SourceBuckets: "feed-bucket", EventInfo: "Threat feed"}
		cfg, err := args.BatchConfig(testNow)
		require.NoError(t, err)
		assert.Equal(t, "Threat feed", cfg.Event.Info)
	})

	t.Run("SOURCE_BUCKETS is required", func(t *testing.T) {
		args := &arguments.Arguments{SourceBuckets: " , "}
		_, err := args.BatchConfig(testNow)
		assert.Error(t, err)
	})

	t.Run("invalid integer", func(t *testing.T) {
		args := &arguments.Arguments{SourceBuckets: "feed-bucket", EventThreatLevel: "high"}
		_, err := args.BatchConfig(testNow)
		assert.Error(t, err)
	})
}

func TestMISPClient(t *testing.T) {
	t.Run("URL and key are required", func(t *testing.T) {
		_, err := (&arguments.Arguments{MISPURL: "https://misp.example.com"}).MISPClient()
		assert.Error(t, err)
	})

	t.Run("invalid verify flag", func(t *testing.T) {
		args := &arguments.Arguments{MISPURL: "https://misp.example.com", MISPKey: "k", MISPVerifyCert: "maybe"}
		_, err := args.MISPClient()
		assert.Error(t, err)
	})

	t.Run("client is created once", func(t *testing.T) {
		args := &arguments.Arguments{MISPURL: "https://misp.example.com", MISPKey: "k", MISPVerifyCert: "false", MISPRateLimit: "5"}
		c1, err := args.MISPClient()
		require.NoError(t, err)
		c2, err := args.MISPClient()
		require.NoError(t, err)
		assert.Equal(t, c1, c2)
	})
}

func TestBatchService(t *testing.T) {
	newS3, _ := mock.NewS3Mock()
	srv := mock.NewMISPServer("k")
	defer srv.Close()

	t.Run("invalid header policy", func(t *testing.T) {
		args := &arguments.Arguments{
			SourceBuckets: "feed-bucket",
			FeedHeader:    "first",
			MISPURL:       srv.URL,
			MISPKey:       "k",
			NewS3:         newS3,
		}
		_, err := args.BatchService(testNow)
		assert.Error(t, err)
	})

	t.Run("MISP is not configured", func(t *testing.T) {
		args := &arguments.Arguments{SourceBuckets: "feed-bucket", NewS3: newS3}
		_, err := args.BatchService(testNow)
		assert.Error(t, err)
	})

	t.Run("ok", func(t *testing.T) {
		args := &arguments.Arguments{
			SourceBuckets: "feed-bucket",
			FeedHeader:    "none",
			MISPURL:       srv.URL,
			MISPKey:       "k",
			NewS3:         newS3,
		}
		svc, err := args.BatchService(testNow)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestMISPKeyFromSecrets(t *testing.T) {
	const secretARN = "arn:aws:secretsmanager:ap-northeast-1:111122223333:secret:iocfeed-AbCdEf"
	srv := mock.NewMISPServer("secret-key")
	defer srv.Close()

	t.Run("key is read from secrets", func(t *testing.T) {
		newSM, smClient := mock.NewSecretsManagerMock()
		smClient.Secrets[secretARN] = `{"misp_key":"secret-key"}`
		args := &arguments.Arguments{MISPURL: srv.URL, SecretsARN: secretARN, NewSM: newSM}

		client, err := args.MISPClient()
		require.NoError(t, err)
		_, err = client.SearchEvents(context.Background(), "feed")
		require.NoError(t, err)

		assert.Equal(t, "ap-northeast-1", smClient.Region)
		require.Equal(t, 1, len(smClient.Inputs))
		assert.Equal(t, secretARN, aws.StringValue(smClient.Inputs[0].SecretId))
	})

	t.Run("MISP_KEY has priority", func(t *testing.T) {
		newSM, smClient := mock.NewSecretsManagerMock()
		args := &arguments.Arguments{MISPURL: srv.URL, MISPKey: "secret-key", SecretsARN: secretARN, NewSM: newSM}
		_, err := args.MISPClient()
		require.NoError(t, err)
		assert.Empty(t, smClient.Inputs)
	})

	t.Run("secret not found", func(t *testing.T) {
		newSM, _ := mock.NewSecretsManagerMock()
		args := &arguments.Arguments{MISPURL: srv.URL, SecretsARN: secretARN, NewSM: newSM}
		_, err := args.MISPClient()
		assert.Error(t, err)
	})

	t.Run("misp_key is not in secrets", func(t *testing.T) {
		newSM, smClient := mock.NewSecretsManagerMock()
		smClient.Secrets[secretARN] = `{"other":"x"}`
		args := &arguments.Arguments{MISPURL: srv.URL, SecretsARN: secretARN, NewSM: newSM}
		_, err := args.MISPClient()
		assert.Error(t, err)
	})

	t.Run("invalid ARN", func(t *testing.T) {
		args := &arguments.Arguments{MISPURL: srv.URL, SecretsARN: "iocfeed"}
		_, err := args.MISPClient()
		assert.Error(t, err)
	})
}
